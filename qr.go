package qrfs

import (
	"crypto/sha256"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/orcaman/writerseeker"
)

// RenderQRCode is the seam the check/export tool renders backing-file
// contents through. The original system treats QR-code generation as an
// out-of-scope external collaborator, and no QR-encoding library is
// available to this implementation; a real deployment wires a third-party
// QR encoder in here. What's built in its place is explicitly
// NOT a QR code: a deterministic checksum grid (payload length in the top
// row, a SHA-256 digest tiled below it) that lets `qrfsck export` produce a
// stable, diffable image artifact per run without pretending to implement
// the QR standard.
func RenderQRCode(data []byte) (image.Image, error) {
	const cell = 8
	const gridW, gridH = 33, 33

	img := image.NewGray(image.Rect(0, 0, gridW*cell, gridH*cell))
	digest := sha256.Sum256(data)

	bit := func(x, y int) bool {
		if y == 0 {
			// Top row: payload length, least significant bit first.
			return uint64(len(data))>>uint(x)&1 != 0
		}
		idx := (y*gridW + x) % len(digest)
		return digest[idx]&(1<<uint(x%8)) != 0
	}

	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			c := color.Gray{Y: 255}
			if bit(x, y) {
				c = color.Gray{Y: 0}
			}
			for dy := 0; dy < cell; dy++ {
				for dx := 0; dx < cell; dx++ {
					img.SetGray(x*cell+dx, y*cell+dy, c)
				}
			}
		}
	}
	return img, nil
}

// EncodeQRPNG renders data's placeholder QR image straight into an
// in-memory writerseeker.WriterSeeker, so the caller decides where to
// persist the bytes (a file, a cpio entry, ...) without an intermediate
// temp file.
func EncodeQRPNG(data []byte) (io.Reader, error) {
	img, err := RenderQRCode(data)
	if err != nil {
		return nil, err
	}
	var buf writerseeker.WriterSeeker
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Reader(), nil
}
