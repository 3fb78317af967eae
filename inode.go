package qrfs

import (
	"bytes"
	"time"
)

// nameWidth is the fixed width of an inode's name field in the on-disk
// format (spec: "fixed-width character array of length 64, zero-padded").
const nameWidth = 64

// refWidth is the fixed width of an inode's reference array (spec: "128
// optional slots").
const refWidth = 128

// reference is one slot of an inode's 128-entry reference array: for a
// directory it names a child ino, for a file slot 0 names its data block.
// Present is a distinct presence bit, never conflated with Value==0.
type reference struct {
	Present bool
	Value   uint64
}

// Inode represents a directory entry or a regular file. The 64-byte name
// and 128-slot reference array are part of the binary format and are kept
// at these exact widths even though a slice would be more natural in
// memory, per the fixed-size-layout design note.
type Inode struct {
	name       [nameWidth]byte
	Attr       Attributes
	References [refWidth]reference
}

// newInode builds an inode with the given name, already null-padded/trimmed
// to the fixed width.
func newInode(name string, attr Attributes) *Inode {
	ino := &Inode{Attr: attr}
	ino.SetName(name)
	return ino
}

// Name returns the logical name: the stored bytes up to the first null.
func (i *Inode) Name() string {
	n := bytes.IndexByte(i.name[:], 0)
	if n < 0 {
		n = len(i.name)
	}
	return string(i.name[:n])
}

// SetName stores name into the fixed-width field, truncating if it is too
// long to fit (the arena never constructs names anywhere near 64 bytes in
// practice, but truncation rather than a panic keeps this a pure setter).
func (i *Inode) SetName(name string) {
	var buf [nameWidth]byte
	n := copy(buf[:], name)
	_ = n
	i.name = buf
}

// IsDir reports whether this inode is a directory.
func (i *Inode) IsDir() bool {
	return i.Attr.Kind == Directory
}

// FreeReferenceSlot returns the index of the first empty reference slot, or
// -1 if the reference array is full (the directory's "129th create" case
// from the spec's boundary behaviors).
func (i *Inode) FreeReferenceSlot() int {
	for idx, r := range i.References {
		if !r.Present {
			return idx
		}
	}
	return -1
}

// ReferenceIndexOf returns the index of the first reference slot holding
// value, or -1 if not present.
func (i *Inode) ReferenceIndexOf(value uint64) int {
	for idx, r := range i.References {
		if r.Present && r.Value == value {
			return idx
		}
	}
	return -1
}

// NewFileInode builds a regular-file inode with timestamps set to now and
// references[0] pointing at blockIndex. Shared by node.Create and by tests
// that exercise the arena directly.
func NewFileInode(name string, ino uint64, blockIndex int) *Inode {
	now := time.Now()
	in := newInode(name, Attributes{
		Ino:    ino,
		Kind:   RegularFile,
		Perm:   0o755,
		Nlink:  1,
		Blocks: 1,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
	})
	in.References[0] = reference{Present: true, Value: uint64(blockIndex)}
	return in
}

// NewDirInode builds a directory inode with empty references and
// timestamps set to now. Shared by node.Mkdir and by tests that exercise
// the arena directly.
func NewDirInode(name string, ino uint64) *Inode {
	now := time.Now()
	return newInode(name, Attributes{
		Ino:    ino,
		Kind:   Directory,
		Perm:   0o755,
		Nlink:  1,
		Blocks: 1,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
	})
}
