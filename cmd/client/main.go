package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/cli"
	"github.com/example/handlefs/pkg/client"
)

type clientOptions struct {
	server  string
	timeout time.Duration
	uid     uint32
	gid     uint32
	log     cli.LogOptions
}

func (o *clientOptions) connect() (*client.Client, error) {
	if err := o.log.Configure(); err != nil {
		return nil, err
	}
	config := client.DefaultConfig()
	config.ServerAddress = o.server
	config.Timeout = o.timeout
	config.Credentials = &api.Credentials{Uid: o.uid, Gid: o.gid, Groups: []uint32{o.gid}}
	return client.NewClient(config)
}

// withClient resolves the path argument and runs fn with the client and
// the handle the path resolved to.
func (o *clientOptions) withClient(fn func(cmd *cobra.Command, c *client.Client, handle []byte) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := o.connect()
		if err != nil {
			return err
		}
		defer c.Close()

		p := "/"
		if len(args) > 0 {
			p = args[0]
		}
		handle, err := c.LookupPath(cmd.Context(), p)
		if err != nil {
			return err
		}
		return fn(cmd, c, handle)
	}
}

func newClientCommand() *cobra.Command {
	opts := clientOptions{log: cli.LogOptions{Level: "warn", Format: "text"}}
	defaults := client.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "handlefs-client",
		Short:         "Query a handle-based file server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.server, "server", "s", defaults.ServerAddress, "Server address")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Timeout of a single call")
	flags.Uint32Var(&opts.uid, "uid", defaults.Credentials.Uid, "User ID sent with requests")
	flags.Uint32Var(&opts.gid, "gid", defaults.Credentials.Gid, "Group ID sent with requests")
	opts.log.InstallFlags(flags)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "root",
			Short: "Print the root file handle",
			Args:  cobra.NoArgs,
			RunE: opts.withClient(func(cmd *cobra.Command, c *client.Client, handle []byte) error {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(handle))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "getattr PATH",
			Short: "Print the attributes of PATH",
			Args:  cobra.ExactArgs(1),
			RunE: opts.withClient(func(cmd *cobra.Command, c *client.Client, handle []byte) error {
				attrs, err := c.GetAttr(cmd.Context(), handle)
				if err != nil {
					return err
				}
				printAttributes(cmd.OutOrStdout(), handle, attrs)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "lookup PATH",
			Short: "Print the file handle of PATH",
			Args:  cobra.ExactArgs(1),
			RunE: opts.withClient(func(cmd *cobra.Command, c *client.Client, handle []byte) error {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(handle))
				return nil
			}),
		},
		&cobra.Command{
			Use:     "ls [PATH]",
			Aliases: []string{"readdir"},
			Short:   "List a directory",
			Args:    cobra.MaximumNArgs(1),
			RunE: opts.withClient(func(cmd *cobra.Command, c *client.Client, handle []byte) error {
				entries, err := c.ReadDir(cmd.Context(), handle)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, entry := range entries {
					attrs := entry.Attributes
					if attrs == nil {
						attrs = &api.FileAttributes{}
					}
					fmt.Fprintf(w, "%d\t%s\t%o\t%d:%d\t%d\t%s\n",
						entry.FileId, attrs.Type, attrs.Mode&0o7777, attrs.Uid, attrs.Gid, attrs.Size, entry.Name)
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:   "readlink PATH",
			Short: "Print the target of a symbolic link",
			Args:  cobra.ExactArgs(1),
			RunE: opts.withClient(func(cmd *cobra.Command, c *client.Client, handle []byte) error {
				target, err := c.Readlink(cmd.Context(), handle)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			}),
		},
		newMkdirCommand(&opts),
		newRemoveCommand(&opts),
	)
	return cmd
}

func newMkdirCommand(opts *clientOptions) *cobra.Command {
	var mode uint32
	cmd := &cobra.Command{
		Use:   "mkdir DIR NAME",
		Short: "Create directory NAME inside DIR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(func(cmd *cobra.Command, c *client.Client, dir []byte) error {
				handle, attrs, err := c.Mkdir(cmd.Context(), dir, args[1], &api.FileAttributes{Mode: mode})
				if err != nil {
					return err
				}
				printAttributes(cmd.OutOrStdout(), handle, attrs)
				return nil
			})(cmd, args[:1])
		},
	}
	cmd.Flags().Uint32VarP(&mode, "mode", "m", 0o755, "Permission bits of the new directory")
	return cmd
}

func newRemoveCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm DIR NAME",
		Aliases: []string{"remove"},
		Short:   "Remove NAME from DIR",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(func(cmd *cobra.Command, c *client.Client, dir []byte) error {
				return c.Remove(cmd.Context(), dir, args[1])
			})(cmd, args[:1])
		},
	}
}

func printAttributes(w io.Writer, handle []byte, attrs *api.FileAttributes) {
	if attrs == nil {
		fmt.Fprintf(w, "Handle:\t%s\n", hex.EncodeToString(handle))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Handle:\t%s\n", hex.EncodeToString(handle))
	fmt.Fprintf(tw, "Type:\t%s\n", attrs.Type)
	fmt.Fprintf(tw, "Mode:\t%o\n", attrs.Mode&0o7777)
	fmt.Fprintf(tw, "Links:\t%d\n", attrs.Nlink)
	fmt.Fprintf(tw, "Owner:\t%d:%d\n", attrs.Uid, attrs.Gid)
	fmt.Fprintf(tw, "Size:\t%d\n", attrs.Size)
	fmt.Fprintf(tw, "File ID:\t%d\n", attrs.Fileid)
	fmt.Fprintf(tw, "Generation:\t%d\n", attrs.Generation)
	if attrs.Mtime != nil {
		fmt.Fprintf(tw, "Modified:\t%s\n", time.Unix(attrs.Mtime.Seconds, int64(attrs.Mtime.Nano)))
	}
	if attrs.Ctime != nil {
		fmt.Fprintf(tw, "Changed:\t%s\n", time.Unix(attrs.Ctime.Seconds, int64(attrs.Ctime.Nano)))
	}
	tw.Flush()
}

func main() {
	cmd := newClientCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
