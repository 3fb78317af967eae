//go:build xz

package qrfs

import (
	"io"

	"github.com/ulikunitz/xz"
)

func init() {
	RegisterCompressor("xz", func(dst io.Writer, src io.Reader) error {
		w, err := xz.NewWriter(dst)
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
