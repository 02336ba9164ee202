package cli

import (
	"testing"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogOptions(t *testing.T) {
	logger := log.L.Logger
	level, formatter := logger.GetLevel(), logger.Formatter
	t.Cleanup(func() {
		logger.SetLevel(level)
		logger.SetFormatter(formatter)
	})

	opts := LogOptions{Level: "info", Format: "text"}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.InstallFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log-level", "debug", "--log-format", "json"}))

	require.NoError(t, opts.Configure())
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	require.NoError(t, (&LogOptions{Level: "warn"}).Configure())
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	assert.Error(t, (&LogOptions{Level: "loud"}).Configure())
	assert.Error(t, (&LogOptions{Format: "xml"}).Configure())
}
