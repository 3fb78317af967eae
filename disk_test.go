package qrfs_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/qrfs/qrfs"
)

func openFresh(t *testing.T, opts ...qrfs.Option) *qrfs.Disk {
	t.Helper()
	disk, err := qrfs.Open(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return disk
}

func TestBootstrapRoot(t *testing.T) {
	disk := openFresh(t)
	root, ok := disk.GetInode(1)
	if !ok {
		t.Fatal("root inode missing")
	}
	if !root.IsDir() {
		t.Fatal("root inode is not a directory")
	}
	if root.Name() != "." {
		t.Fatalf("root name = %q, want %q", root.Name(), ".")
	}
}

// createFile mirrors node.Create's allocation discipline directly against
// the arena, without a live FUSE mount: free reference slot, free ino, free
// block, in that order.
func createFile(t *testing.T, disk *qrfs.Disk, parent uint64, name string) *qrfs.Inode {
	t.Helper()
	refSlot, ok := disk.FindFreeReferenceSlot(parent)
	if !ok {
		t.Fatalf("createFile(%q): no free reference slot", name)
	}
	ino, ok := disk.FindFreeIno()
	if !ok {
		t.Fatalf("createFile(%q): no free ino", name)
	}
	blockIndex, ok := disk.FindFreeBlock()
	if !ok {
		t.Fatalf("createFile(%q): no free block", name)
	}

	inode := qrfs.NewFileInode(name, ino, blockIndex)
	if err := disk.WriteInode(inode); err != nil {
		t.Fatalf("WriteInode: %v", err)
	}
	if err := disk.WriteBlockBytes(blockIndex, nil); err != nil {
		t.Fatalf("WriteBlockBytes: %v", err)
	}
	disk.WriteReferenceInInode(parent, refSlot, ino)
	return inode
}

func mkdirChild(t *testing.T, disk *qrfs.Disk, parent uint64, name string) *qrfs.Inode {
	t.Helper()
	refSlot, ok := disk.FindFreeReferenceSlot(parent)
	if !ok {
		t.Fatalf("mkdirChild(%q): no free reference slot", name)
	}
	ino, ok := disk.FindFreeIno()
	if !ok {
		t.Fatalf("mkdirChild(%q): no free ino", name)
	}

	inode := qrfs.NewDirInode(name, ino)
	if err := disk.WriteInode(inode); err != nil {
		t.Fatalf("WriteInode: %v", err)
	}
	disk.WriteReferenceInInode(parent, refSlot, ino)
	return inode
}

func TestCreateThenLookupByName(t *testing.T) {
	disk := openFresh(t)
	created := createFile(t, disk, 1, "f")

	found, ok := disk.FindChildByName(1, "f")
	if !ok {
		t.Fatal("FindChildByName: not found")
	}
	if found.Attr.Ino != created.Attr.Ino {
		t.Fatalf("found ino = %d, want %d", found.Attr.Ino, created.Attr.Ino)
	}
}

func TestCreateUnlinkRoundTrip(t *testing.T) {
	disk := openFresh(t)
	created := createFile(t, disk, 1, "f")
	ino := created.Attr.Ino
	blockIndex := int(ino - 1)

	disk.ClearInode(ino)
	disk.ClearBlock(blockIndex)
	disk.ClearReferenceInInode(1, ino)

	if _, ok := disk.GetInode(ino); ok {
		t.Fatal("inode still present after unlink")
	}
	if _, ok := disk.GetBlockBytes(blockIndex); ok {
		t.Fatal("block still present after unlink")
	}
	if _, ok := disk.FindChildByName(1, "f"); ok {
		t.Fatal("parent still references unlinked child")
	}

	// The freed slots must be reusable by a subsequent create.
	second := createFile(t, disk, 1, "g")
	if second.Attr.Ino != ino {
		t.Fatalf("second create got ino %d, want reused ino %d", second.Attr.Ino, ino)
	}
}

func TestMkdirRmdirRoundTrip(t *testing.T) {
	disk := openFresh(t)
	dir := mkdirChild(t, disk, 1, "d")
	ino := dir.Attr.Ino

	disk.ClearReferenceInInode(1, ino)
	disk.ClearInode(ino)

	if _, ok := disk.GetInode(ino); ok {
		t.Fatal("directory inode still present after rmdir")
	}
	if _, ok := disk.FindChildByName(1, "d"); ok {
		t.Fatal("parent still references removed directory")
	}
}

func TestWriteThenReadBlock(t *testing.T) {
	disk := openFresh(t)
	created := createFile(t, disk, 1, "f")
	blockIndex := int(created.Attr.Ino - 1)

	data := []byte("hello qrfs")
	if err := disk.WriteBlockBytes(blockIndex, data); err != nil {
		t.Fatalf("WriteBlockBytes: %v", err)
	}
	got, ok := disk.GetBlockBytes(blockIndex)
	if !ok {
		t.Fatal("block missing after write")
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read back %q, want %q", got, data)
	}
}

func TestWriteBlockOversizeIsError(t *testing.T) {
	disk := openFresh(t)
	oversized := make([]byte, disk.BlockSize()+1)
	if err := disk.WriteBlockBytes(0, oversized); !errors.Is(err, qrfs.ErrBlockTooLarge) {
		t.Fatalf("WriteBlockBytes(oversized) = %v, want ErrBlockTooLarge", err)
	}
}

func TestReferenceSlotExhaustion(t *testing.T) {
	disk := openFresh(t, qrfs.WithMaxFiles(200))
	// Fill all 128 reference slots of root; a 129th create in a full
	// directory should report no free reference slot (EIO at the node layer).
	for i := 0; i < 128; i++ {
		createFile(t, disk, 1, string(rune('a'+i%26))+string(rune('A'+i/26)))
	}
	if _, ok := disk.FindFreeReferenceSlot(1); ok {
		t.Fatal("expected root's reference array to report full")
	}
}

func TestFindFreeInoExclusiveBound(t *testing.T) {
	// FindFreeIno iterates [0, max_files-1), leaving the final slot
	// permanently unreachable — a quirk of the original arena preserved here.
	disk := openFresh(t, qrfs.WithMaxFiles(3))
	// Slot 0 (ino=1) is root. Slots [0, len-1) = [0, 2) means only index 1
	// (ino=2) is reachable via FindFreeIno; index 2 (ino=3) never is.
	ino, ok := disk.FindFreeIno()
	if !ok || ino != 2 {
		t.Fatalf("FindFreeIno = (%d, %v), want (2, true)", ino, ok)
	}
	createFile(t, disk, 1, "only")
	if _, ok := disk.FindFreeIno(); ok {
		t.Fatal("expected no further ino free (last slot is unreachable by design)")
	}
}

func TestOpenExistingRequiresBackingFiles(t *testing.T) {
	if _, err := qrfs.OpenExisting(t.TempDir()); !errors.Is(err, qrfs.ErrMissingBackingFile) {
		t.Fatalf("OpenExisting(empty dir) = %v, want ErrMissingBackingFile", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	disk, err := qrfs.Open(dir, qrfs.WithMaxFiles(8))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	createFile(t, disk, 1, "f")
	mkdirChild(t, disk, 1, "d")
	if err := disk.WriteBlockBytes(1, []byte("payload")); err != nil {
		t.Fatalf("WriteBlockBytes: %v", err)
	}
	if err := disk.WriteToDisk(); err != nil {
		t.Fatalf("WriteToDisk: %v", err)
	}

	reopened, err := qrfs.OpenExisting(dir, qrfs.WithMaxFiles(8))
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}

	f, ok := reopened.FindChildByName(1, "f")
	if !ok {
		t.Fatal("file missing after reopen")
	}
	d, ok := reopened.FindChildByName(1, "d")
	if !ok {
		t.Fatal("directory missing after reopen")
	}
	if !d.IsDir() {
		t.Fatal("reopened child 'd' is not a directory")
	}
	blockIndex := int(f.Attr.Ino - 1)
	got, ok := reopened.GetBlockBytes(blockIndex)
	if !ok || !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("reopened block = %q, %v, want %q, true", got, ok, "payload")
	}
}

func TestShrunkImageIsRejected(t *testing.T) {
	dir := t.TempDir()
	probe, err := qrfs.Open(dir, qrfs.WithMaxFiles(4))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	blockSize := int64(probe.BlockSize())

	bigDisk, err := qrfs.Open(dir, qrfs.WithMaxFiles(4), qrfs.WithMemorySize(blockSize*9))
	if err != nil {
		t.Fatalf("Open big: %v", err)
	}
	if err := bigDisk.WriteToDisk(); err != nil {
		t.Fatalf("WriteToDisk: %v", err)
	}

	_, err = qrfs.OpenExisting(dir, qrfs.WithMaxFiles(4), qrfs.WithMemorySize(blockSize*4))
	if !errors.Is(err, qrfs.ErrShrunkImage) {
		t.Fatalf("OpenExisting(shrunk) = %v, want ErrShrunkImage", err)
	}
}
