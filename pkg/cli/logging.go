// Package cli holds what the command line tools share.
package cli

import (
	"fmt"
	"os"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// LogOptions are the logging flags of every binary.
type LogOptions struct {
	Level  string
	Format string
}

// InstallFlags adds --log-level and --log-format to flags.
func (o *LogOptions) InstallFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.Level, "log-level", "l", o.Level, `Set the logging level ("debug"|"info"|"warn"|"error"|"fatal")`)
	flags.StringVar(&o.Format, "log-format", o.Format, `Set the logging format ("text"|"json")`)
}

// Configure applies the options to the logger behind log.G.
func (o *LogOptions) Configure() error {
	logger := log.L.Logger

	if o.Level != "" {
		level, err := logrus.ParseLevel(o.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		logger.SetLevel(level)
	}

	switch o.Format {
	case "", string(log.TextFormat):
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: log.RFC3339NanoFixed,
		})
	case string(log.JSONFormat):
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: log.RFC3339NanoFixed,
		})
	default:
		return fmt.Errorf("unknown log format %q", o.Format)
	}
	logger.SetOutput(os.Stderr)
	return nil
}
