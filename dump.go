package qrfs

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/btree"
)

// nameItem orders a directory's children by name so the dump is
// deterministic and diff-friendly across runs of the same arena state.
type nameItem struct {
	name string
	ino  uint64
}

func (n nameItem) Less(than btree.Item) bool {
	return n.name < than.(nameItem).name
}

// Dump writes a human-readable tree of the arena to w, starting from the
// root inode. This is the readable companion to the binary backing files,
// in the spirit of the informal println! traces original_source/fsck's
// tooling produced during development.
func Dump(w io.Writer, disk *Disk) error {
	fmt.Fprintf(w, ". (ino=1, dir)\n")
	return dumpDir(w, disk, 1, 1)
}

func dumpDir(w io.Writer, disk *Disk, ino uint64, depth int) error {
	parent, ok := disk.GetInode(ino)
	if !ok {
		return fmt.Errorf("qrfs: dump: inode %d missing", ino)
	}

	tree := btree.New(32)
	for _, ref := range parent.References {
		if !ref.Present || ref.Value == 1 {
			continue
		}
		if _, ok := disk.GetInode(ref.Value); !ok {
			continue
		}
		tree.ReplaceOrInsert(nameItem{name: disk.slots[ref.Value-1].Name(), ino: ref.Value})
	}

	indent := strings.Repeat("  ", depth)
	var walkErr error
	tree.Ascend(func(item btree.Item) bool {
		ni := item.(nameItem)
		child, _ := disk.GetInode(ni.ino)
		if child.IsDir() {
			fmt.Fprintf(w, "%s%s/ (ino=%d, dir)\n", indent, ni.name, ni.ino)
			if err := dumpDir(w, disk, ni.ino, depth+1); err != nil {
				walkErr = err
				return false
			}
			return true
		}
		fmt.Fprintf(w, "%s%s (ino=%d, file, size=%d)\n", indent, ni.name, ni.ino, child.Attr.Size)
		return true
	})
	return walkErr
}
