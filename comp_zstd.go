//go:build zstd

package qrfs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	RegisterCompressor("zstd", func(dst io.Writer, src io.Reader) error {
		w, err := zstd.NewWriter(dst)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
}
