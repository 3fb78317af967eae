package qrfs_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/qrfs/qrfs"
)

func TestDumpListsChildrenSortedByName(t *testing.T) {
	disk := openFresh(t, qrfs.WithMaxFiles(16))
	createFile(t, disk, 1, "zeta")
	createFile(t, disk, 1, "alpha")
	mkdirChild(t, disk, 1, "middle")

	var buf bytes.Buffer
	if err := qrfs.Dump(&buf, disk); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	out := buf.String()
	alphaIdx := strings.Index(out, "alpha")
	middleIdx := strings.Index(out, "middle")
	zetaIdx := strings.Index(out, "zeta")
	if alphaIdx < 0 || middleIdx < 0 || zetaIdx < 0 {
		t.Fatalf("dump missing expected entries:\n%s", out)
	}
	if !(alphaIdx < middleIdx && middleIdx < zetaIdx) {
		t.Fatalf("dump entries not sorted by name:\n%s", out)
	}
	if !strings.HasPrefix(out, ". (ino=1, dir)") {
		t.Fatalf("dump does not start with root entry:\n%s", out)
	}
}
