package qrfs

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sync/errgroup"
)

// Mount attaches disk's root inode to mountPoint via the kernel bridge. The
// scheduling model is single-threaded cooperative: one request is serviced
// at a time, so SingleThreaded is always set. The mount tool passes -o
// nonempty to the kernel bridge, since the backing files already live in
// the mount point directory.
func Mount(mountPoint string, disk *Disk) (*fuse.Server, error) {
	root := &node{disk: disk, ino: 1}
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			SingleThreaded: true,
			Options:        []string{"nonempty"},
			FsName:         "qrfs",
			Name:           "qrfs",
		},
	}
	return fs.Mount(mountPoint, root, opts)
}

// Serve runs the mounted server until it is unmounted or the process
// receives SIGINT/SIGTERM, joining the server loop and the signal watcher
// with an errgroup the way distr1-distri's fuse.Mount/join pair does. On
// return — by either path — the caller performs the lifecycle's one and
// only flush: there is no autosave and no incremental flush while mounted.
func Serve(ctx context.Context, server *fuse.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Wait()
		cancel() // unmounted from outside: stop the signal watcher too
		return nil
	})
	g.Go(func() error {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		select {
		case <-sigc:
			log.Printf("qrfs: received shutdown signal, unmounting")
			return server.Unmount()
		case <-ctx.Done():
			return nil
		}
	})
	return g.Wait()
}
