package cli_test

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshnode/meshnode-go/internal/cli"
	"github.com/meshnode/meshnode-go/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cli.ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLoggerVerbose(t *testing.T) {
	var buf bytes.Buffer
	l, err := cli.NewLogger(&buf, "", true)
	require.NoError(t, err)
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l, err = cli.NewLogger(&buf, "warn", true)
	require.NoError(t, err)
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "node.env")
	require.NoError(t, os.WriteFile(env, []byte("MESHTASTIC_HOST=from-file\nMESHTASTIC_REGION=EU\n"), 0o600))

	var f cli.Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse([]string{"-env-file", env, "-host", "10.0.0.5"}))

	cfg, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Connection.Host)
	assert.Equal(t, "EU", cfg.Desired.Region)
}

func TestOpenCapture(t *testing.T) {
	quiet := slog.New(slog.DiscardHandler)

	c, err := cli.OpenCapture("", quiet)
	require.NoError(t, err)
	assert.Nil(t, c.Logger)
	assert.NoError(t, c.Close())

	path := filepath.Join(t.TempDir(), "session.mlog")
	c, err = cli.OpenCapture(path, quiet)
	require.NoError(t, err)
	assert.NotNil(t, c.Logger)
	require.NoError(t, c.Close())
	assert.FileExists(t, path)

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	_, err = cli.OpenCapture(filepath.Join(blocker, "x.mlog"), quiet)
	assert.Error(t, err)
}

func TestDialerWithoutDiscovery(t *testing.T) {
	quiet := slog.New(slog.DiscardHandler)

	d, target, err := cli.Dialer(context.Background(), config.Connection{Host: "10.0.0.5"}, true, quiet)
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.Equal(t, "tcp 10.0.0.5", target)

	_, target, err = cli.Dialer(context.Background(), config.Connection{Serial: "/dev/ttyUSB0"}, false, quiet)
	require.NoError(t, err)
	assert.Equal(t, "serial /dev/ttyUSB0", target)
}
