package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/handlefs/pkg/cli"
	"github.com/example/handlefs/pkg/fs"
	"github.com/example/handlefs/pkg/fs/local"
)

type gethandleOptions struct {
	export string
	log    cli.LogOptions
}

func newGethandleCommand() *cobra.Command {
	opts := gethandleOptions{export: ".", log: cli.LogOptions{Level: "warn"}}

	cmd := &cobra.Command{
		Use:           "gethandle [OPTIONS] [PATH]",
		Short:         "Print the kernel file handle of a path inside an export",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.log.Configure(); err != nil {
				return err
			}
			p := "/"
			if len(args) > 0 {
				p = args[0]
			}
			return runGethandle(cmd, opts.export, p)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.export, "export", "e", opts.export, "Exported directory")
	opts.log.InstallFlags(flags)
	return cmd
}

func runGethandle(cmd *cobra.Command, export, p string) error {
	ctx := cmd.Context()
	fileSystem, err := local.NewLocalFS(export)
	if err != nil {
		return err
	}
	defer fileSystem.Close()

	inode, err := fileSystem.RootInode(ctx)
	if err != nil {
		return err
	}
	for _, name := range strings.Split(p, "/") {
		if name == "" || name == "." {
			continue
		}
		if inode, err = fileSystem.Lookup(ctx, inode, name); err != nil {
			return err
		}
	}

	info, err := fileSystem.GetAttr(ctx, inode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Export:     %s (mount id %d)\n", fileSystem.Root(), fileSystem.MountID())
	fmt.Fprintf(out, "Path:       %s\n", p)
	fmt.Fprintf(out, "Handle:     %s\n", inode)
	fmt.Fprintf(out, "Length:     %d of %d\n", len(inode), fs.MaxHandleSize)
	fmt.Fprintf(out, "Type:       %s\n", info.Type)
	fmt.Fprintf(out, "Mode:       %o\n", info.Perm())
	fmt.Fprintf(out, "Owner:      %d:%d\n", info.Uid, info.Gid)
	fmt.Fprintf(out, "Size:       %d\n", info.Size)
	fmt.Fprintf(out, "File ID:    %d\n", info.FileID)
	fmt.Fprintf(out, "Generation: %d\n", info.Generation)
	fmt.Fprintf(out, "Modified:   %s\n", info.ModifyTime)
	return nil
}

func main() {
	if err := newGethandleCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
