package qrfs_test

import (
	"io/fs"
	"testing"

	"github.com/qrfs/qrfs"
)

func TestModeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		mode fs.FileMode
	}{
		{"dir", fs.ModeDir | 0o755},
		{"file", 0o644},
		{"setuid file", fs.ModeSetuid | 0o755},
		{"setgid dir", fs.ModeDir | fs.ModeSetgid | 0o750},
		{"sticky dir", fs.ModeDir | fs.ModeSticky | 0o777},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unix := qrfs.ModeToUnix(tc.mode)
			got := qrfs.UnixToMode(unix)
			if got != tc.mode {
				t.Fatalf("round trip = %v, want %v", got, tc.mode)
			}
		})
	}
}

func TestUnixToModeFileType(t *testing.T) {
	if m := qrfs.UnixToMode(qrfs.S_IFDIR | 0o755); m&fs.ModeDir == 0 {
		t.Fatal("S_IFDIR did not set fs.ModeDir")
	}
	if m := qrfs.UnixToMode(qrfs.S_IFREG | 0o644); m&fs.ModeDir != 0 {
		t.Fatal("S_IFREG incorrectly set fs.ModeDir")
	}
}
