package fuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/containerd/log"

	"github.com/example/handlefs/pkg/client"
)

// MountOptions contains options for mounting the filesystem
type MountOptions struct {
	MountPoint string

	// ServerAddr is the file server address
	ServerAddr string

	ReadOnly   bool
	AllowOther bool

	// CacheTimeout bounds both the client caches and the kernel's
	// attribute and entry caching
	CacheTimeout time.Duration

	// Debug logs every FUSE message at debug level
	Debug bool
}

// Mount mounts the export served at options.ServerAddr and serves it until
// ctx is done or the filesystem is unmounted.
func Mount(ctx context.Context, options MountOptions) error {
	if options.MountPoint == "" {
		return errors.New("mount point is required")
	}

	config := client.DefaultConfig()
	config.ServerAddress = options.ServerAddr
	config.CacheTTL = options.CacheTimeout

	log.G(ctx).WithField("server", options.ServerAddr).Info("connecting to file server")
	nfsClient, err := client.NewClient(config)
	if err != nil {
		return err
	}
	defer nfsClient.Close()

	rootHandle, err := nfsClient.GetRootFileHandle(ctx)
	if err != nil {
		return fmt.Errorf("failed to get root handle: %w", err)
	}

	mountOpts := []fuse.MountOption{
		fuse.FSName("handlefs"),
		fuse.Subtype("handlefs"),
	}
	if options.ReadOnly {
		mountOpts = append(mountOpts, fuse.ReadOnly())
	}
	if options.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}
	if options.Debug {
		fuse.Debug = func(msg interface{}) {
			log.G(ctx).Debug(msg)
		}
	}

	log.G(ctx).WithField("mountpoint", options.MountPoint).Info("mounting filesystem")
	conn, err := fuse.Mount(options.MountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("failed to mount: %w", err)
	}
	defer conn.Close()

	served := make(chan error, 1)
	go func() {
		served <- fs.Serve(conn, NewNFSFS(nfsClient, rootHandle, options.CacheTimeout))
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	log.G(ctx).Info("unmounting filesystem")
	if err := Unmount(options.MountPoint); err != nil {
		return fmt.Errorf("failed to unmount %s: %w", options.MountPoint, err)
	}
	return <-served
}

// Unmount unmounts the filesystem
func Unmount(mountPoint string) error {
	return fuse.Unmount(mountPoint)
}
