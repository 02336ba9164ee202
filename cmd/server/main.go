package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/containerd/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/example/handlefs/pkg/cli"
	"github.com/example/handlefs/pkg/fs/local"
	"github.com/example/handlefs/pkg/server"
)

type serverOptions struct {
	configFile string
	config     *server.Config
	flags      *pflag.FlagSet
}

func installConfigFlags(config *server.Config, flags *pflag.FlagSet) {
	flags.StringVar(&config.ListenAddress, "listen", config.ListenAddress, "Network address to listen on")
	flags.StringVar(&config.ExportPath, "export", config.ExportPath, "Directory to export")
	flags.IntVar(&config.MaxConcurrent, "max-concurrent", config.MaxConcurrent, "Maximum concurrent requests")
	flags.IntVar(&config.MaxReadSize, "max-read-size", config.MaxReadSize, "Largest read served in one request, in bytes")
	flags.IntVar(&config.MaxConnections, "max-connections", config.MaxConnections, "Maximum client connections, 0 for no limit")
	flags.IntVar(&config.RequestTimeout, "timeout", config.RequestTimeout, "Request timeout in seconds")
	flags.BoolVar(&config.EnableRootSquash, "root-squash", config.EnableRootSquash, "Map root callers to the anonymous user")
	flags.Uint32Var(&config.AnonUID, "anon-uid", config.AnonUID, "Anonymous user ID")
	flags.Uint32Var(&config.AnonGID, "anon-gid", config.AnonGID, "Anonymous group ID")
	flags.StringVar(&config.MetricsAddress, "metrics-address", config.MetricsAddress, "Address of the Prometheus endpoint, empty to disable")
	flags.StringVarP(&config.LogLevel, "log-level", "l", config.LogLevel, `Set the logging level ("debug"|"info"|"warn"|"error")`)
	flags.StringVar(&config.LogFormat, "log-format", config.LogFormat, `Set the logging format ("text"|"json")`)
}

func newServerCommand() *cobra.Command {
	opts := serverOptions{config: server.DefaultConfig()}

	cmd := &cobra.Command{
		Use:           "handlefs-server [OPTIONS]",
		Short:         "Serve a local directory over the handle-based file service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.flags = cmd.Flags()
			config, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, config)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Server configuration file (TOML)")
	installConfigFlags(opts.config, flags)
	return cmd
}

// loadConfig reads the config file, if any, and applies the flags given
// on the command line on top of it.
func loadConfig(opts serverOptions) (*server.Config, error) {
	if opts.configFile == "" {
		return opts.config, opts.config.Validate()
	}

	config, err := server.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	installConfigFlags(config, overrides)
	var setErr error
	opts.flags.Visit(func(f *pflag.Flag) {
		if overrides.Lookup(f.Name) == nil || setErr != nil {
			return
		}
		setErr = overrides.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return nil, setErr
	}
	return config, config.Validate()
}

func runServer(ctx context.Context, config *server.Config) error {
	logOpts := cli.LogOptions{Level: config.LogLevel, Format: config.LogFormat}
	if err := logOpts.Configure(); err != nil {
		return err
	}
	if config.ExportPath == "" {
		return errors.New("export path is required")
	}

	fileSystem, err := local.NewLocalFS(config.ExportPath)
	if err != nil {
		return fmt.Errorf("failed to open export %s: %w", config.ExportPath, err)
	}
	defer fileSystem.Close()

	nfsServer, err := server.NewNFSServer(config, fileSystem)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return nfsServer.Start(ctx)
	})

	if config.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", nfsServer.MetricsHandler())
		metricsServer := &http.Server{
			Addr:              config.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.G(ctx).WithField("address", config.MetricsAddress).Info("metrics endpoint starting")
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.G(ctx).WithField("export", config.ExportPath).Info("file server stopped")
	return err
}

func main() {
	cmd := newServerCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
