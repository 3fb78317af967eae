package qrfs

import (
	"io/fs"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// TimespecToTime converts a raw (seconds, nanoseconds) pair off the wire —
// the form the FUSE kernel protocol and this package's own binary codec
// both use for timestamps — into a time.Time, routed through
// unix.NsecToTimespec/Timespec.Unix the way a POSIX-facing layer normalizes
// Timespec pairs rather than hand-rolling the nanosecond arithmetic.
func TimespecToTime(sec int64, nsec uint32) time.Time {
	ts := unix.NsecToTimespec(sec*int64(time.Second) + int64(nsec))
	s, ns := ts.Unix()
	return time.Unix(s, ns).UTC()
}

// Kind distinguishes the two kernel-level entry types this filesystem ever
// produces. Other kernel-defined kinds (symlinks, devices, ...) are never
// produced by qrfs and round-trip only as these two values.
type Kind byte

const (
	RegularFile Kind = iota + 1
	Directory
)

func (k Kind) String() string {
	switch k {
	case RegularFile:
		return "RegularFile"
	case Directory:
		return "Directory"
	default:
		return "Unknown"
	}
}

// Attributes is the full attribute record carried by every inode: POSIX
// metadata plus the four timestamps the original kernel bridge tracks.
type Attributes struct {
	Ino    uint64
	Size   uint64
	Blocks uint64

	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Crtime time.Time

	Kind  Kind
	Perm  uint32 // permission bits only, e.g. 0o755
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Rdev  uint32
	Flags uint32
}

func (a *Attributes) fillAttr(attr *fuse.Attr) {
	attr.Ino = a.Ino
	attr.Size = a.Size
	attr.Blocks = a.Blocks
	attr.Mode = ModeToUnix(a.fsMode())
	attr.Nlink = a.Nlink
	attr.Rdev = a.Rdev
	attr.Owner = fuse.Owner{Uid: a.Uid, Gid: a.Gid}
	attr.SetTimes(&a.Atime, &a.Mtime, &a.Ctime)
}

// FillAttrOut translates the attribute record into a fuse.AttrOut, the
// go-fuse v2/fs wire type, the same role the teacher's FillAttr plays for
// the low-level fuse.Attr.
func (a *Attributes) FillAttrOut(out *fuse.AttrOut) {
	a.fillAttr(&out.Attr)
}

// FillEntryOut is the lookup/create/mkdir counterpart of FillAttrOut: it also
// sets the node ID and a fresh "now" TTL (spec: replies carry a TTL of "now",
// i.e. entries are not cached beyond the current tick), matching the
// teacher's fillEntry.
func (a *Attributes) FillEntryOut(out *fuse.EntryOut) {
	out.NodeId = a.Ino
	a.fillAttr(&out.Attr)
	out.SetEntryTimeout(0)
	out.SetAttrTimeout(0)
}

func (a *Attributes) fsMode() fs.FileMode {
	m := fs.FileMode(a.Perm & 0777)
	if a.Kind == Directory {
		m |= fs.ModeDir
	}
	return m
}
