package qrfs

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxFiles is the default inode slot count for a fresh arena.
	DefaultMaxFiles = 1024
	// DefaultMemorySize is the default total image size for a fresh arena (1 GiB).
	DefaultMemorySize = int64(1) << 30

	inodeFileName = "inode.qrfs"
	diskFileName  = "disco.qrfs"
)

// Disk is the arena: the top-level container owning every inode and block.
// It is the sole shared mutable resource in the system; the kernel bridge
// is configured single-threaded, so the mutex below is belt-and-suspenders
// over that structural guarantee, not a substitute for it — grounded on the
// same caution the teacher takes with its Superblock's inoIdxL around the
// lazy inode-ref cache.
type Disk struct {
	mu sync.Mutex

	rootPath      string
	maxFiles      int
	blockSize     int
	memorySize    int64
	blockQuantity int

	slots  []*Inode
	blocks []MemoryBlock
}

// Option configures a Disk at construction time, mirroring the teacher's
// Option func(sb *Superblock) error pattern (options.go).
type Option func(*Disk) error

// WithMaxFiles overrides max_files; used by tests to exercise capacity
// exhaustion without allocating a full 1024-slot arena.
func WithMaxFiles(n int) Option {
	return func(d *Disk) error {
		if n <= 0 {
			return fmt.Errorf("qrfs: max files must be positive")
		}
		d.maxFiles = n
		return nil
	}
}

// WithMemorySize overrides memory_size_in_bytes; used by tests for the same
// reason as WithMaxFiles.
func WithMemorySize(n int64) Option {
	return func(d *Disk) error {
		if n <= 0 {
			return fmt.Errorf("qrfs: memory size must be positive")
		}
		d.memorySize = n
		return nil
	}
}

// newDisk applies options and derives block_size/block_quantity, without
// touching the backing files. Shared setup between the mount tool's
// create-or-load path (Open) and the check/export tool's load-only path
// (OpenExisting).
func newDisk(rootPath string, opts ...Option) (*Disk, error) {
	d := &Disk{rootPath: rootPath, maxFiles: DefaultMaxFiles, memorySize: DefaultMemorySize}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.blockSize = d.maxFiles * inodeFootprint
	d.blockQuantity = int(d.memorySize/int64(d.blockSize)) - 1
	if d.blockQuantity < 1 {
		return nil, fmt.Errorf("qrfs: memory size %d too small for block size %d", d.memorySize, d.blockSize)
	}
	return d, nil
}

// Open constructs the arena rooted at rootPath: if both backing files exist
// and are non-empty it deserializes them, otherwise it creates fresh files
// and bootstraps the root inode.
func Open(rootPath string, opts ...Option) (*Disk, error) {
	d, err := newDisk(rootPath, opts...)
	if err != nil {
		return nil, err
	}

	log.Printf("qrfs: opening arena at %s (max_files=%d block_size=%d block_quantity=%d)",
		rootPath, d.maxFiles, d.blockSize, d.blockQuantity)

	existing, err := backingFilesPresent(rootPath)
	if err != nil {
		return nil, err
	}
	if existing {
		if err := d.load(); err != nil {
			return nil, err
		}
		log.Printf("qrfs: loaded existing arena, %d inode slots, %d blocks", len(d.slots), len(d.blocks))
		return d, nil
	}

	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, err
	}
	for _, name := range []string{inodeFileName, diskFileName} {
		f, err := os.OpenFile(filepath.Join(rootPath, name), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		f.Close()
	}
	d.slots = make([]*Inode, d.maxFiles)
	d.blocks = make([]MemoryBlock, d.blockQuantity)
	d.bootstrapRoot()
	log.Printf("qrfs: created fresh arena with root inode")
	return d, nil
}

// OpenExisting loads the arena from rootPath's two backing files and fails
// with ErrMissingBackingFile if either is absent, rather than bootstrapping
// a fresh one. This is the check/export tool's entry point: it must refuse
// to run against a mount point that hasn't been initialized yet, unlike
// Open's create-or-load behavior used by the mount tool.
func OpenExisting(rootPath string, opts ...Option) (*Disk, error) {
	d, err := newDisk(rootPath, opts...)
	if err != nil {
		return nil, err
	}

	existing, err := backingFilesPresent(rootPath)
	if err != nil {
		return nil, err
	}
	if !existing {
		return nil, ErrMissingBackingFile
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func backingFilesPresent(rootPath string) (bool, error) {
	inodeInfo, err := os.Stat(filepath.Join(rootPath, inodeFileName))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	diskInfo, err := os.Stat(filepath.Join(rootPath, diskFileName))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inodeInfo.Size() > 0 && diskInfo.Size() > 0, nil
}

func (d *Disk) bootstrapRoot() {
	now := time.Now()
	root := newInode(".", Attributes{
		Ino:    1,
		Kind:   Directory,
		Perm:   0o755,
		Nlink:  1,
		Blocks: 1,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
		Crtime: now,
	})
	d.slots[0] = root
}

// MaxFiles, BlockSize and BlockQuantity expose the arena's fixed capacity,
// used by the check/export tool's check report and by tests.
func (d *Disk) MaxFiles() int      { return d.maxFiles }
func (d *Disk) BlockSize() int     { return d.blockSize }
func (d *Disk) BlockQuantity() int { return d.blockQuantity }
func (d *Disk) RootPath() string   { return d.rootPath }

// FindFreeIno returns the first index i in [0, max_files-1) whose slot is
// empty, as ino = i+1. The upper bound is deliberately exclusive of the
// final slot, matching the original arena's own bounds — the last slot is
// permanently unreachable by this search, a quirk preserved rather than
// quietly fixed.
func (d *Disk) FindFreeIno() (uint64, bool) {
	for i := 0; i < len(d.slots)-1; i++ {
		if d.slots[i] == nil {
			return uint64(i + 1), true
		}
	}
	return 0, false
}

// FindFreeBlock returns the first index in [0, block_quantity-1) whose
// block is empty. Same exclusive-bound preservation as FindFreeIno.
func (d *Disk) FindFreeBlock() (int, bool) {
	for i := 0; i < len(d.blocks)-1; i++ {
		if !d.blocks[i].Present {
			return i, true
		}
	}
	return 0, false
}

// FindFreeReferenceSlot returns the first empty reference slot of the inode
// at ino. It panics if ino does not exist: the arena's callers always
// resolve the parent first, so a missing parent here is an invariant
// violation, not a client-facing error.
func (d *Disk) FindFreeReferenceSlot(ino uint64) (int, bool) {
	inode := d.mustGetInode(ino, "find free reference slot")
	idx := inode.FreeReferenceSlot()
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// WriteInode stores inode at slot ino-1, overwriting any previous value.
// It rejects (without mutating) an inode whose footprint would exceed
// block_size — unreachable in practice since inodeFootprint is derived to
// fit block_size by construction, but the check is cheap and guards the
// invariant explicitly rather than relying on it implicitly.
func (d *Disk) WriteInode(inode *Inode) error {
	if inodeFootprint > d.blockSize {
		return ErrInodeTooLarge
	}
	d.slots[inode.Attr.Ino-1] = inode
	return nil
}

// ClearInode empties the slot at ino-1.
func (d *Disk) ClearInode(ino uint64) {
	d.slots[ino-1] = nil
}

// ClearBlock empties the block at index.
func (d *Disk) ClearBlock(index int) {
	d.blocks[index] = MemoryBlock{}
}

// ClearReferenceInInode locates the first reference slot of ino holding
// refValue and empties it. Fatal if ino is absent or the reference is not
// present: both indicate a caller passed a reference that was never
// actually recorded, an invariant violation rather than a usage error to
// recover from.
func (d *Disk) ClearReferenceInInode(ino uint64, refValue uint64) {
	inode := d.mustGetInode(ino, "clear reference in inode")
	idx := inode.ReferenceIndexOf(refValue)
	if idx < 0 {
		panic(fmt.Sprintf("qrfs: reference %d not found in inode %d", refValue, ino))
	}
	inode.References[idx] = reference{}
}

// WriteReferenceInInode overwrites reference slot refIndex of ino. Fatal if
// ino is absent.
func (d *Disk) WriteReferenceInInode(ino uint64, refIndex int, value uint64) {
	inode := d.mustGetInode(ino, "write reference in inode")
	inode.References[refIndex] = reference{Present: true, Value: value}
}

// GetInode returns the inode at ino, or nil, false if absent.
func (d *Disk) GetInode(ino uint64) (*Inode, bool) {
	if ino < 1 || int(ino) > len(d.slots) {
		return nil, false
	}
	inode := d.slots[ino-1]
	if inode == nil {
		return nil, false
	}
	return inode, true
}

func (d *Disk) mustGetInode(ino uint64, op string) *Inode {
	inode, ok := d.GetInode(ino)
	if !ok {
		panic(fmt.Sprintf("qrfs: %s: inode %d does not exist", op, ino))
	}
	return inode
}

// FindChildByName iterates parent's reference array; for each present
// reference it looks up the child inode (fatal if absent) and compares its
// null-trimmed name against name. Returns the first match.
func (d *Disk) FindChildByName(parentIno uint64, name string) (*Inode, bool) {
	parent := d.mustGetInode(parentIno, "find child by name")
	for _, ref := range parent.References {
		if !ref.Present {
			continue
		}
		child := d.mustGetInode(ref.Value, "find child by name (child)")
		if child.Name() == name {
			return child, true
		}
	}
	return nil, false
}

// GetBlockBytes returns the byte buffer at index, or nil, false if empty.
func (d *Disk) GetBlockBytes(index int) ([]byte, bool) {
	if index < 0 || index >= len(d.blocks) {
		return nil, false
	}
	b := d.blocks[index]
	if !b.Present {
		return nil, false
	}
	return b.Data, true
}

// WriteBlockBytes replaces the block at index with a copy of content.
// Rejects with ErrBlockTooLarge if content exceeds block_size.
func (d *Disk) WriteBlockBytes(index int, content []byte) error {
	if len(content) > d.blockSize {
		return ErrBlockTooLarge
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	d.blocks[index] = MemoryBlock{Present: true, Data: buf}
	return nil
}

// Lock/Unlock expose the arena's mutex so the request handler can hold
// exclusive access for the duration of one operation.
func (d *Disk) Lock()   { d.mu.Lock() }
func (d *Disk) Unlock() { d.mu.Unlock() }
