package qrfs

import (
	"context"
	"log"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// node is the per-inode adapter the go-fuse v2/fs tree API requires: one Go
// object embedding fs.Inode per live kernel-visible entry. The actual state
// lives entirely in the Disk arena; node only carries the ino that indexes
// into it, so entries reference each other by numeric ino rather than by
// pointer (no cyclic owning references between nodes).
type node struct {
	fs.Inode
	disk *Disk
	ino  uint64
}

var (
	_ fs.InodeEmbedder = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeReader    = (*node)(nil)
	_ fs.NodeWriter    = (*node)(nil)
	_ fs.NodeFsyncer   = (*node)(nil)
)

// fileHandle satisfies fs.FileHandle; qrfs never does anything handle-scoped
// (no per-fh offsets, no locking), so it carries only the ino it was opened
// for, which is always equal to the owning node's ino.
type fileHandle uint64

func childMode(a *Attributes) uint32 {
	return ModeToUnix(a.fsMode())
}

func (n *node) newChild(ctx context.Context, ino uint64, attr *Attributes) *fs.Inode {
	child := &node{disk: n.disk, ino: ino}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: childMode(attr), Ino: ino})
}

// Lookup resolves name within n via the arena's name search.
func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()
	log.Printf("qrfs: lookup(parent=%d, name=%q)", n.ino, name)

	child, ok := n.disk.FindChildByName(n.ino, name)
	if !ok {
		return nil, syscall.ENOENT
	}
	child.Attr.FillEntryOut(out)
	return n.newChild(ctx, child.Attr.Ino, &child.Attr), 0
}

// Getattr returns attributes of n's inode or ENOENT.
func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.disk.Lock()
	defer n.disk.Unlock()

	inode, ok := n.disk.GetInode(n.ino)
	if !ok {
		return syscall.ENOENT
	}
	inode.Attr.FillAttrOut(out)
	return 0
}

// Setattr overwrites only the provided fields among size, atime, mtime, gid
// and uid. mode, fh, chgtime, bkuptime are accepted but ignored. crtime and
// flags are part of the attribute record but are never changed here: the
// Linux FUSE setattr message carries no field for either, so they change
// only through the Disk API directly, never via a kernel-issued setattr.
func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	n.disk.Lock()
	defer n.disk.Unlock()

	inode, ok := n.disk.GetInode(n.ino)
	if !ok {
		return syscall.ENOENT
	}

	if in.Valid&fuse.FATTR_SIZE != 0 {
		inode.Attr.Size = in.Size
	}
	if in.Valid&fuse.FATTR_ATIME != 0 {
		inode.Attr.Atime = TimespecToTime(int64(in.Atime), in.Atimensec)
	}
	if in.Valid&fuse.FATTR_MTIME != 0 {
		inode.Attr.Mtime = TimespecToTime(int64(in.Mtime), in.Mtimensec)
	}
	if in.Valid&fuse.FATTR_UID != 0 {
		inode.Attr.Uid = in.Uid
	}
	if in.Valid&fuse.FATTR_GID != 0 {
		inode.Attr.Gid = in.Gid
	}

	inode.Attr.FillAttrOut(out)
	return 0
}

// Mkdir follows create's allocation discipline minus the block allocation:
// no free reference slot -> EIO, no free inode -> ENOSPC.
func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()
	log.Printf("qrfs: mkdir(parent=%d, name=%q)", n.ino, name)

	refSlot, ok := n.disk.FindFreeReferenceSlot(n.ino)
	if !ok {
		log.Printf("qrfs: mkdir: parent %d has no free reference slot", n.ino)
		return nil, syscall.EIO
	}
	ino, ok := n.disk.FindFreeIno()
	if !ok {
		return nil, syscall.ENOSPC
	}

	child := NewDirInode(name, ino)
	if err := n.disk.WriteInode(child); err != nil {
		return nil, syscall.EIO
	}
	n.disk.WriteReferenceInInode(n.ino, refSlot, ino)

	child.Attr.FillEntryOut(out)
	return n.newChild(ctx, ino, &child.Attr), 0
}

// Create acquires a reference slot, an ino and a block, in that order: no
// free reference slot -> EIO; no free ino or block -> ENOSPC.
func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()
	log.Printf("qrfs: create(parent=%d, name=%q)", n.ino, name)

	refSlot, ok := n.disk.FindFreeReferenceSlot(n.ino)
	if !ok {
		log.Printf("qrfs: create: parent %d has no free reference slot", n.ino)
		return nil, nil, 0, syscall.EIO
	}
	ino, ok := n.disk.FindFreeIno()
	if !ok {
		return nil, nil, 0, syscall.ENOSPC
	}
	blockIndex, ok := n.disk.FindFreeBlock()
	if !ok {
		return nil, nil, 0, syscall.ENOSPC
	}

	child := NewFileInode(name, ino, blockIndex)
	child.Attr.Flags = flags

	if err := n.disk.WriteInode(child); err != nil {
		return nil, nil, 0, syscall.EIO
	}
	if err := n.disk.WriteBlockBytes(blockIndex, nil); err != nil {
		return nil, nil, 0, syscall.EIO
	}
	n.disk.WriteReferenceInInode(n.ino, refSlot, ino)

	child.Attr.FillEntryOut(out)
	return n.newChild(ctx, ino, &child.Attr), fileHandle(ino), 0, 0
}

// Unlink resolves name in n; EISDIR if it names a directory, else clears
// the inode, the block at index ino-1 (the index Read and Write use), and
// the parent's reference. The block recorded in references[0] is not read
// here: Create fills it with the first free block, which need not be ino-1,
// and that block is left allocated.
func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	n.disk.Lock()
	defer n.disk.Unlock()
	log.Printf("qrfs: unlink(parent=%d, name=%q)", n.ino, name)

	child, ok := n.disk.FindChildByName(n.ino, name)
	if !ok {
		return syscall.EIO
	}
	if child.IsDir() {
		return syscall.EISDIR
	}

	ino := child.Attr.Ino
	n.disk.ClearInode(ino)
	n.disk.ClearBlock(int(ino - 1))
	n.disk.ClearReferenceInInode(n.ino, ino)
	return 0
}

// Rmdir resolves name, clears the parent's reference and the inode. It does
// not recursively delete children and does not check emptiness, leaving
// their inodes to become orphaned slots reachable only by ino — the
// original arena's behavior, preserved rather than hardened here.
func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	n.disk.Lock()
	defer n.disk.Unlock()
	log.Printf("qrfs: rmdir(parent=%d, name=%q)", n.ino, name)

	child, ok := n.disk.FindChildByName(n.ino, name)
	if !ok {
		return syscall.EIO
	}

	ino := child.Attr.Ino
	n.disk.ClearReferenceInInode(n.ino, ino)
	n.disk.ClearInode(ino)
	return 0
}

// Open succeeds if the inode exists, else ENOSYS.
func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()

	if _, ok := n.disk.GetInode(n.ino); !ok {
		return nil, 0, syscall.ENOSYS
	}
	return fileHandle(n.ino), fuse.FOPEN_KEEP_CACHE, 0
}

// Read returns the entire byte buffer of the block at index ino-1; offset
// and size are ignored, so every read sees the whole block regardless of
// the caller's requested range. Missing block -> EIO.
func (n *node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()

	data, ok := n.disk.GetBlockBytes(int(n.ino - 1))
	if !ok {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(data), 0
}

// Write replaces the block at index ino-1 with data, sets size, and
// replies with len(data); offset is ignored and prior contents are
// discarded wholesale rather than patched in place. Missing inode ->
// ENOENT.
func (n *node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()

	inode, ok := n.disk.GetInode(n.ino)
	if !ok {
		return 0, syscall.ENOENT
	}

	index := int(n.ino - 1)
	if err := n.disk.WriteBlockBytes(index, data); err != nil {
		panic(err) // oversize write is a fatal arena-layer error
	}
	inode.Attr.Size = uint64(len(data))
	inode.Attr.Mtime = time.Now()
	return uint32(len(data)), 0
}

// dirStream implements fs.DirStream over a pre-built snapshot of entries;
// readdir offsets are non-functional by design, so the arena always hands
// back every entry in one call rather than honoring a cursor. Iterated
// under go-fuse's SingleThreaded scheduling, so pos needs no synchronization.
type dirStream struct {
	entries []fuse.DirEntry
	pos     int
}

func (s *dirStream) HasNext() bool {
	return s.pos < len(s.entries)
}

func (s *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	i := s.pos
	s.pos++
	if i >= len(s.entries) {
		return fuse.DirEntry{}, syscall.ENOENT
	}
	return s.entries[i], 0
}

func (s *dirStream) Close() {}

// Readdir emits synthetic "." and ".." for ino==1, then one entry per
// present child, skipping any child whose ino==1. Missing parent -> ENOENT.
// Offsets are always the full listing in one call; there is no cursor to
// resume from.
func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.disk.Lock()
	defer n.disk.Unlock()

	parent, ok := n.disk.GetInode(n.ino)
	if !ok {
		return nil, syscall.ENOENT
	}

	dirMode := childMode(&parent.Attr)
	var entries []fuse.DirEntry
	if n.ino == 1 {
		entries = append(entries,
			fuse.DirEntry{Ino: 1, Name: ".", Mode: dirMode},
			fuse.DirEntry{Ino: 1, Name: "..", Mode: dirMode},
		)
	}
	for _, ref := range parent.References {
		if !ref.Present || ref.Value == 1 {
			continue
		}
		child, ok := n.disk.GetInode(ref.Value)
		if !ok {
			continue
		}
		entries = append(entries, fuse.DirEntry{
			Ino:  ref.Value,
			Name: child.Name(),
			Mode: childMode(&child.Attr),
		})
	}
	return &dirStream{entries: entries}, 0
}

// Fsync unconditionally replies ENOSYS.
func (n *node) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	return syscall.ENOSYS
}
