package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/example/handlefs/pkg/cli"
	"github.com/example/handlefs/pkg/fuse"
)

type mountOptions struct {
	fuse fuse.MountOptions
	log  cli.LogOptions
}

func newMountCommand() *cobra.Command {
	opts := mountOptions{
		fuse: fuse.MountOptions{
			ServerAddr:   "localhost:2049",
			CacheTimeout: time.Second,
		},
		log: cli.LogOptions{Level: "info", Format: "text"},
	}

	cmd := &cobra.Command{
		Use:           "nfs-fuse [OPTIONS] MOUNTPOINT",
		Short:         "Mount a remote export with FUSE",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.log.Configure(); err != nil {
				return err
			}
			opts.fuse.MountPoint = args[0]
			if err := os.MkdirAll(opts.fuse.MountPoint, 0o755); err != nil {
				return fmt.Errorf("failed to create mount point: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := fuse.Mount(ctx, opts.fuse); err != nil {
				return err
			}
			log.G(ctx).WithField("mountpoint", opts.fuse.MountPoint).Info("unmounted")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.fuse.ServerAddr, "server", "s", opts.fuse.ServerAddr, "Server address")
	flags.BoolVar(&opts.fuse.ReadOnly, "readonly", false, "Mount read-only")
	flags.BoolVar(&opts.fuse.AllowOther, "allow-other", false, "Allow other users to access the mount")
	flags.DurationVar(&opts.fuse.CacheTimeout, "cache-timeout", opts.fuse.CacheTimeout, "Attribute and entry cache lifetime")
	flags.BoolVar(&opts.fuse.Debug, "debug", false, "Log every FUSE message at debug level")
	opts.log.InstallFlags(flags)
	return cmd
}

func main() {
	if err := newMountCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
