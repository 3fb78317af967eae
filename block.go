package qrfs

// MemoryBlock is a single optional byte buffer. Empty blocks carry no
// buffer; allocated blocks hold exactly one byte sequence whose length is
// the current file size of the owning inode.
type MemoryBlock struct {
	Present bool
	Data    []byte
}
