// Command qrfsck validates a QrFS arena's two backing files, dumps them in
// human-readable form, and bundles an exportable archive of the arena plus
// QR-code renders of both backing files.
//
// Usage:
//
//	qrfsck check <mount-point>
//	qrfsck export [-export <dir>] [-compress name] <mount-point>
//
// With no subcommand, qrfsck <mount-point> runs check then export against
// the mount point itself, matching original_source/fsck/src/main.rs's
// single combined pass.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cavaliercoder/go-cpio"
	"github.com/mattn/go-isatty"

	"github.com/qrfs/qrfs"
)

const usage = `qrfsck - validate and export a QrFS arena

Usage:
  qrfsck check <mount-point>
  qrfsck export [-export <dir>] [-compress name] <mount-point>
  qrfsck <mount-point>          (check, then export beside the mount point)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		if len(os.Args) != 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(1)
		}
		runCheck(os.Args[2])
	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		outDir := fs.String("export", "", "output directory for the export bundle (defaults to the mount point)")
		compress := fs.String("compress", "none", "compressor for the export bundle: "+fmt.Sprint(qrfs.CompressorNames()))
		fs.Parse(os.Args[2:])
		if fs.NArg() != 1 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(1)
		}
		runExport(fs.Arg(0), *outDir, *compress)
	default:
		// Legacy single-positional form: check, then export beside the
		// mount point, exactly as original_source/fsck/src/main.rs does in
		// one unconditional pass.
		if len(os.Args) != 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(1)
		}
		mountPoint := os.Args[1]
		runCheck(mountPoint)
		runExport(mountPoint, "", "none")
	}
}

// runCheck validates that both backing files exist and structurally
// decode, refusing to run at all if either is absent, then reports the
// result either as a colorless, machine-readable line (when stdout is
// piped) or a short tabular summary (when stdout is a terminal).
func runCheck(mountPoint string) {
	disk, err := qrfs.OpenExisting(mountPoint)
	interactive := isatty.IsTerminal(os.Stdout.Fd())
	if err != nil {
		if interactive {
			fmt.Printf("qrfsck: check FAILED for %s: %s\n", mountPoint, err)
		} else {
			fmt.Printf("FAIL\t%s\t%s\n", mountPoint, err)
		}
		os.Exit(1)
	}

	if interactive {
		fmt.Println("QrFS Valido!")
		fmt.Printf("  mount point   : %s\n", mountPoint)
		fmt.Printf("  max files     : %d\n", disk.MaxFiles())
		fmt.Printf("  block size    : %d\n", disk.BlockSize())
		fmt.Printf("  block count   : %d\n", disk.BlockQuantity())
	} else {
		fmt.Printf("OK\t%s\tmax_files=%d\tblock_size=%d\tblock_quantity=%d\n",
			mountPoint, disk.MaxFiles(), disk.BlockSize(), disk.BlockQuantity())
	}
}

// runExport reproduces original_source/fsck's unconditional QR rendering of
// both backing files, adds the human-readable dump, and bundles all of it
// into a single export.cpio (optionally compressed) in outDir (or beside
// mountPoint if outDir is empty).
func runExport(mountPoint, outDir, compress string) {
	disk, err := qrfs.OpenExisting(mountPoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qrfsck: export: %s\n", err)
		os.Exit(1)
	}

	if outDir == "" {
		outDir = mountPoint
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "qrfsck: export: %s\n", err)
		os.Exit(1)
	}

	compressFn, ok := qrfs.LookupCompressor(compress)
	if !ok {
		fmt.Fprintf(os.Stderr, "qrfsck: export: unknown compressor %q (have %v)\n", compress, qrfs.CompressorNames())
		os.Exit(1)
	}

	bundle, err := buildBundle(mountPoint, disk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qrfsck: export: %s\n", err)
		os.Exit(1)
	}

	archivePath := filepath.Join(outDir, "export.cpio")
	if compress != "none" {
		archivePath += "." + compress
	}
	out, err := os.Create(archivePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qrfsck: export: %s\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := compressFn(out, bundle); err != nil {
		fmt.Fprintf(os.Stderr, "qrfsck: export: compress: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("qrfsck: wrote %s\n", archivePath)
}

// buildBundle assembles dump.txt, the two backing files, and two QR-code
// renders into a cpio archive, mirroring distr1-distri's initrdWriter use
// of cavaliercoder/go-cpio (one WriteHeader + one Write per member).
func buildBundle(mountPoint string, disk *qrfs.Disk) (io.Reader, error) {
	var buf bytes.Buffer
	wr := cpio.NewWriter(&buf)

	var dumpBuf bytes.Buffer
	if err := qrfs.Dump(&dumpBuf, disk); err != nil {
		return nil, err
	}
	if err := addCPIOEntry(wr, "dump.txt", dumpBuf.Bytes()); err != nil {
		return nil, err
	}

	for _, name := range []string{"inode.qrfs", "disco.qrfs"} {
		data, err := os.ReadFile(filepath.Join(mountPoint, name))
		if err != nil {
			return nil, err
		}
		if err := addCPIOEntry(wr, name, data); err != nil {
			return nil, err
		}

		png, err := qrfs.EncodeQRPNG(data)
		if err != nil {
			return nil, err
		}
		pngBytes, err := io.ReadAll(png)
		if err != nil {
			return nil, err
		}
		pngName := name[:len(name)-len(filepath.Ext(name))] + ".png"
		if err := addCPIOEntry(wr, pngName, pngBytes); err != nil {
			return nil, err
		}
	}

	if err := wr.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func addCPIOEntry(wr *cpio.Writer, name string, data []byte) error {
	if err := wr.WriteHeader(&cpio.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}); err != nil {
		return err
	}
	_, err := wr.Write(data)
	return err
}
