// Command qrfs-mount attaches a QrFS arena to a host directory. The backing
// files (inode.qrfs, disco.qrfs) live in that same directory, which is why
// the mount is passed -o nonempty: without it the kernel bridge refuses to
// mount over a directory that already holds files.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/qrfs/qrfs"
)

const usage = `qrfs-mount - attach a QrFS arena to a host directory

Usage:
  qrfs-mount <mount-point>

The mount point doubles as the arena's backing-file directory: inode.qrfs
and disco.qrfs are created there if absent, or loaded if present.
`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	mountPoint := os.Args[1]

	disk, err := qrfs.Open(mountPoint)
	if err != nil {
		log.Fatalf("qrfs-mount: failed to open arena: %s", err)
	}

	server, err := qrfs.Mount(mountPoint, disk)
	if err != nil {
		log.Fatalf("qrfs-mount: failed to mount: %s", err)
	}
	log.Printf("qrfs-mount: mounted on %s", mountPoint)

	if err := qrfs.Serve(context.Background(), server); err != nil {
		log.Printf("qrfs-mount: serve: %s", err)
	}

	if err := disk.WriteToDisk(); err != nil {
		log.Printf("qrfs-mount: failed to flush arena on shutdown: %s", err)
		return
	}
	log.Printf("qrfs-mount: clean shutdown")
}
