package qrfs

import (
	"io/fs"
)

// qrfs only ever produces two kernel-level kinds (Directory, RegularFile); the
// permission-bit conversion still follows linux stat conventions.
// based on: https://golang.org/src/os/stat_linux.go

const (
	S_IFMT  = 0xf000
	S_IFREG = 0x8000
	S_IFDIR = 0x4000

	S_ISVTX = 0x200
	S_ISGID = 0x400
	S_ISUID = 0x800
)

// UnixToMode converts a raw unix mode (type bits + permission bits) into an fs.FileMode.
func UnixToMode(mode uint32) fs.FileMode {
	res := fs.FileMode(mode & 0777)

	if mode&S_IFDIR == S_IFDIR {
		res |= fs.ModeDir
	}

	if mode&S_ISGID == S_ISGID {
		res |= fs.ModeSetgid
	}
	if mode&S_ISUID == S_ISUID {
		res |= fs.ModeSetuid
	}
	if mode&S_ISVTX == S_ISVTX {
		res |= fs.ModeSticky
	}

	return res
}

// ModeToUnix is the inverse of UnixToMode.
func ModeToUnix(mode fs.FileMode) uint32 {
	res := uint32(mode.Perm())

	if mode&fs.ModeDir == fs.ModeDir {
		res |= S_IFDIR
	} else {
		res |= S_IFREG
	}

	if mode&fs.ModeSetgid == fs.ModeSetgid {
		res |= S_ISGID
	}
	if mode&fs.ModeSetuid == fs.ModeSetuid {
		res |= S_ISUID
	}
	if mode&fs.ModeSticky == fs.ModeSticky {
		res |= S_ISVTX
	}

	return res
}
