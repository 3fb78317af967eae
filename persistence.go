package qrfs

import (
	"bufio"
	"log"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// load deserializes both backing files into d.slots/d.blocks, padding up to
// the configured capacities and failing with ErrShrunkImage if the existing
// snapshot holds more blocks than the configured block_quantity allows.
func (d *Disk) load() error {
	inodeFile, err := os.Open(filepath.Join(d.rootPath, inodeFileName))
	if err != nil {
		return err
	}
	defer inodeFile.Close()
	slots, err := unmarshalSuperblock(bufio.NewReader(inodeFile))
	if err != nil {
		return err
	}

	diskFile, err := os.Open(filepath.Join(d.rootPath, diskFileName))
	if err != nil {
		return err
	}
	defer diskFile.Close()
	blocks, err := unmarshalBlocks(bufio.NewReader(diskFile))
	if err != nil {
		return err
	}

	if len(blocks) > d.blockQuantity {
		return ErrShrunkImage
	}
	if len(slots) > d.maxFiles {
		return ErrShrunkImage
	}

	d.slots = make([]*Inode, d.maxFiles)
	copy(d.slots, slots)
	d.blocks = make([]MemoryBlock, d.blockQuantity)
	copy(d.blocks, blocks)
	return nil
}

// WriteToDisk serializes the superblock and the block array to inode.qrfs
// and disco.qrfs respectively. Both files are replaced atomically via
// renameio (temp file + rename) rather than truncated in place, so a crash
// mid-flush cannot leave a half-written pair behind — the one place this
// expansion strengthens the teacher's own "opened write-only and
// overwritten" behavior without adding journaling. Errors are logged and
// returned to the caller, which treats a flush failure as terminal to the
// flush itself, not to the process.
func (d *Disk) WriteToDisk() error {
	if err := d.writeInodeFile(); err != nil {
		log.Printf("qrfs: failed to write %s: %s", inodeFileName, err)
		return err
	}
	if err := d.writeDiskFile(); err != nil {
		log.Printf("qrfs: failed to write %s: %s", diskFileName, err)
		return err
	}
	log.Printf("qrfs: flushed arena to disk (%s, %s)", inodeFileName, diskFileName)
	return nil
}

func (d *Disk) writeInodeFile() error {
	path := filepath.Join(d.rootPath, inodeFileName)
	w, err := renameio.NewPendingFile(path)
	if err != nil {
		return err
	}
	defer w.Cleanup()
	bw := bufio.NewWriter(w)
	if err := marshalSuperblock(bw, d.slots); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return w.CloseAtomicallyReplace()
}

func (d *Disk) writeDiskFile() error {
	path := filepath.Join(d.rootPath, diskFileName)
	w, err := renameio.NewPendingFile(path)
	if err != nil {
		return err
	}
	defer w.Cleanup()
	if err := marshalBlocks(w, d.blocks); err != nil {
		return err
	}
	return w.CloseAtomicallyReplace()
}
