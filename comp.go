package qrfs

import (
	"io"
)

// CompressFunc streams src through a compressor into dst. Optional
// compressors register themselves via RegisterCompressor from build-tag
// gated files (comp_zstd.go, comp_xz.go), the same pattern the teacher uses
// for its own pluggable block decompressors (comp.go/comp_zstd.go/
// comp_xz.go), just aimed at qrfsck's export bundle instead of squashfs
// block storage.
type CompressFunc func(dst io.Writer, src io.Reader) error

var compressors = map[string]CompressFunc{
	"none": func(dst io.Writer, src io.Reader) error {
		_, err := io.Copy(dst, src)
		return err
	},
}

// RegisterCompressor makes a named compressor available to the export
// command's -compress flag.
func RegisterCompressor(name string, fn CompressFunc) {
	compressors[name] = fn
}

// LookupCompressor returns the named compressor, if registered.
func LookupCompressor(name string) (CompressFunc, bool) {
	fn, ok := compressors[name]
	return fn, ok
}

// CompressorNames lists every registered compressor name.
func CompressorNames() []string {
	names := make([]string, 0, len(compressors))
	for name := range compressors {
		names = append(names, name)
	}
	return names
}
