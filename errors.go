package qrfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrInvalidFile is returned when a backing file's signature is not recognized.
	ErrInvalidFile = errors.New("invalid file, qrfs signature not found")

	// ErrMissingBackingFile is returned when check/export is asked to run against a
	// mount point missing either inode.qrfs or disco.qrfs.
	ErrMissingBackingFile = errors.New("missing qrfs backing file")

	// ErrShrunkImage is returned when an existing disco.qrfs holds more blocks than
	// the configured memory_block_quantity allows.
	ErrShrunkImage = errors.New("existing disk image is larger than configured capacity")

	// ErrBlockTooLarge is returned when content written to a block exceeds block_size.
	ErrBlockTooLarge = errors.New("content exceeds block size")

	// ErrInodeTooLarge is returned when an inode's on-disk footprint exceeds block_size.
	ErrInodeTooLarge = errors.New("inode exceeds block size")
)
