package qrfs

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// On-disk layout constants. Unlike the teacher's squashfs.Superblock, which
// reflects over a struct of directly binary.Read-able fixed-width fields,
// qrfs's collections carry an explicit presence bit per optional slot so a
// zero value is never confused with an absent one, so the codec walks each
// field by hand instead of leaning on reflect for the variable/optional
// parts. reflect is only a good fit for a struct of plain fixed-width
// primitives; Attributes embeds four time.Time values, which binary.Read
// cannot decode directly, so this is written out explicitly rather than
// forced through reflect.
const (
	inodeMagic = "QRFI"
	blockMagic = "QRFD"
	formatVers = 1

	// attributesSize is the encoded size, in bytes, of one Attributes value:
	// 3 uint64 (ino, size, blocks) + 4 timestamps (int64 sec + int32 nsec
	// each) + 1 kind byte + 6 uint32 fields (perm, nlink, uid, gid, rdev,
	// flags).
	attributesSize = 3*8 + 4*(8+4) + 1 + 6*4

	// inodeRecordSize is the fixed on-disk footprint of one inode slot's
	// body: the 64-byte name, the attribute record, and the 128-slot
	// reference array (1 presence byte + 8 value bytes each).
	inodeRecordSize = nameWidth + attributesSize + refWidth*(1+8)

	// inodeFootprint is inodeRecordSize plus the slot's own presence byte:
	// the per-slot byte cost that determines the arena's derived block_size.
	inodeFootprint = 1 + inodeRecordSize
)

var order = binary.LittleEndian

func writeTimestamp(w io.Writer, t time.Time) error {
	if err := binary.Write(w, order, int64(t.Unix())); err != nil {
		return err
	}
	return binary.Write(w, order, int32(t.Nanosecond()))
}

func readTimestamp(r io.Reader) (time.Time, error) {
	var sec int64
	var nsec int32
	if err := binary.Read(r, order, &sec); err != nil {
		return time.Time{}, err
	}
	if err := binary.Read(r, order, &nsec); err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, int64(nsec)).UTC(), nil
}

func writeAttributes(w io.Writer, a Attributes) error {
	for _, v := range []uint64{a.Ino, a.Size, a.Blocks} {
		if err := binary.Write(w, order, v); err != nil {
			return err
		}
	}
	for _, t := range []time.Time{a.Atime, a.Mtime, a.Ctime, a.Crtime} {
		if err := writeTimestamp(w, t); err != nil {
			return err
		}
	}
	if err := binary.Write(w, order, byte(a.Kind)); err != nil {
		return err
	}
	for _, v := range []uint32{a.Perm, a.Nlink, a.Uid, a.Gid, a.Rdev, a.Flags} {
		if err := binary.Write(w, order, v); err != nil {
			return err
		}
	}
	return nil
}

func readAttributes(r io.Reader) (Attributes, error) {
	var a Attributes
	vals := make([]uint64, 3)
	for i := range vals {
		if err := binary.Read(r, order, &vals[i]); err != nil {
			return a, err
		}
	}
	a.Ino, a.Size, a.Blocks = vals[0], vals[1], vals[2]

	times := make([]*time.Time, 4)
	times[0], times[1], times[2], times[3] = &a.Atime, &a.Mtime, &a.Ctime, &a.Crtime
	for _, t := range times {
		v, err := readTimestamp(r)
		if err != nil {
			return a, err
		}
		*t = v
	}

	var kind byte
	if err := binary.Read(r, order, &kind); err != nil {
		return a, err
	}
	a.Kind = Kind(kind)

	u32s := make([]*uint32, 6)
	u32s[0], u32s[1], u32s[2], u32s[3], u32s[4], u32s[5] = &a.Perm, &a.Nlink, &a.Uid, &a.Gid, &a.Rdev, &a.Flags
	for _, p := range u32s {
		if err := binary.Read(r, order, p); err != nil {
			return a, err
		}
	}
	return a, nil
}

func writeInodeSlot(w io.Writer, slot *Inode) error {
	if slot == nil {
		if err := binary.Write(w, order, byte(0)); err != nil {
			return err
		}
		var zero [inodeRecordSize]byte
		_, err := w.Write(zero[:])
		return err
	}
	if err := binary.Write(w, order, byte(1)); err != nil {
		return err
	}
	if _, err := w.Write(slot.name[:]); err != nil {
		return err
	}
	if err := writeAttributes(w, slot.Attr); err != nil {
		return err
	}
	for _, ref := range slot.References {
		present := byte(0)
		if ref.Present {
			present = 1
		}
		if err := binary.Write(w, order, present); err != nil {
			return err
		}
		if err := binary.Write(w, order, ref.Value); err != nil {
			return err
		}
	}
	return nil
}

func readInodeSlot(r io.Reader) (*Inode, error) {
	var present byte
	if err := binary.Read(r, order, &present); err != nil {
		return nil, err
	}
	if present == 0 {
		var discard [inodeRecordSize]byte
		_, err := io.ReadFull(r, discard[:])
		return nil, err
	}

	ino := &Inode{}
	if _, err := io.ReadFull(r, ino.name[:]); err != nil {
		return nil, err
	}
	attr, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	ino.Attr = attr

	for i := range ino.References {
		var p byte
		if err := binary.Read(r, order, &p); err != nil {
			return nil, err
		}
		var v uint64
		if err := binary.Read(r, order, &v); err != nil {
			return nil, err
		}
		ino.References[i] = reference{Present: p != 0, Value: v}
	}
	return ino, nil
}

// marshalSuperblock writes the length-prefixed sequence of optional inodes
// to w: this is the inode.qrfs format.
func marshalSuperblock(w io.Writer, slots []*Inode) error {
	if _, err := io.WriteString(w, inodeMagic); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(formatVers)); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(len(slots))); err != nil {
		return err
	}
	for _, s := range slots {
		if err := writeInodeSlot(w, s); err != nil {
			return err
		}
	}
	return nil
}

// unmarshalSuperblock reads the inode.qrfs format back into a slot slice.
func unmarshalSuperblock(r io.Reader) ([]*Inode, error) {
	magic := make([]byte, len(inodeMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != inodeMagic {
		return nil, ErrInvalidFile
	}
	var vers, count uint32
	if err := binary.Read(r, order, &vers); err != nil {
		return nil, err
	}
	if vers != formatVers {
		return nil, fmt.Errorf("qrfs: unsupported inode table version %d", vers)
	}
	if err := binary.Read(r, order, &count); err != nil {
		return nil, err
	}
	slots := make([]*Inode, count)
	for i := range slots {
		s, err := readInodeSlot(r)
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}
	return slots, nil
}

// marshalBlocks writes the length-prefixed sequence of optional byte
// buffers to w: this is the disco.qrfs format.
func marshalBlocks(w io.Writer, blocks []MemoryBlock) error {
	if _, err := io.WriteString(w, blockMagic); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(formatVers)); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(len(blocks))); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for _, b := range blocks {
		present := byte(0)
		if b.Present {
			present = 1
		}
		if err := binary.Write(bw, order, present); err != nil {
			return err
		}
		if err := binary.Write(bw, order, uint32(len(b.Data))); err != nil {
			return err
		}
		if len(b.Data) > 0 {
			if _, err := bw.Write(b.Data); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// unmarshalBlocks reads the disco.qrfs format back into a block slice.
func unmarshalBlocks(r io.Reader) ([]MemoryBlock, error) {
	magic := make([]byte, len(blockMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != blockMagic {
		return nil, ErrInvalidFile
	}
	var vers, count uint32
	if err := binary.Read(r, order, &vers); err != nil {
		return nil, err
	}
	if vers != formatVers {
		return nil, fmt.Errorf("qrfs: unsupported disk image version %d", vers)
	}
	if err := binary.Read(r, order, &count); err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)
	blocks := make([]MemoryBlock, count)
	for i := range blocks {
		var present byte
		if err := binary.Read(br, order, &present); err != nil {
			return nil, err
		}
		var length uint32
		if err := binary.Read(br, order, &length); err != nil {
			return nil, err
		}
		var data []byte
		if length > 0 {
			data = make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, err
			}
		}
		blocks[i] = MemoryBlock{Present: present != 0, Data: data}
	}
	return blocks, nil
}
