package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshnode/meshnode-go/pkg/channel"
	"github.com/meshnode/meshnode-go/pkg/config"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := config.Load(config.Options{
		EnvFile: filepath.Join(t.TempDir(), "missing.env"),
		Lookup:  env(nil),
	})
	require.NoError(t, err)
	assert.True(t, cfg.Desired.Empty())
	assert.False(t, cfg.Connection.UseTCP())
	assert.Equal(t, "serial (auto-detect)", cfg.Connection.String())
}

func TestLoadPrecedence(t *testing.T) {
	file := writeFile(t, "node.yaml", `
connection:
  serial: /dev/ttyUSB0
region: US
role: CLIENT
owner:
  long: From File
  short: FILE
channel:
  index: 2
  name: Ops
  psk: QUJDREVGRw==
`)
	dotenv := writeFile(t, ".env", "MESHTASTIC_REGION=EU433\nMESHTASTIC_DEVICE_ROLE=ROUTER\nMESHTASTIC_OWNER_SHORT=DOT\n")

	cfg, err := config.Load(config.Options{
		File:    file,
		EnvFile: dotenv,
		Lookup: env(map[string]string{
			config.KeyRegion:    "EU",
			config.KeyOwnerLong: "",
		}),
		Overrides: map[string]string{
			config.KeyHost: "192.168.1.50",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "EU", cfg.Desired.Region, "environment beats .env and file")
	assert.Equal(t, "ROUTER", cfg.Desired.Role, ".env beats file")
	require.NotNil(t, cfg.Desired.Owner)
	assert.Equal(t, "From File", cfg.Desired.Owner.Long, "empty values never override")
	assert.Equal(t, "DOT", cfg.Desired.Owner.Short)

	assert.True(t, cfg.Connection.UseTCP())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Connection.Serial)

	require.NotNil(t, cfg.Desired.Channel)
	assert.Equal(t, 2, cfg.Desired.Channel.Index)
	assert.Equal(t, "Ops", cfg.Desired.Channel.Spec.Name)
	assert.Equal(t, channel.PassphraseKey, cfg.Desired.Channel.Spec.Passphrase.Kind)
}

func TestBuild(t *testing.T) {
	cfg, err := config.Build(map[string]string{
		config.KeyPositionBroadcast: "Yes",
		config.KeyWifiSSID:          "camp",
		config.KeyWifiPSK:           "secret",
		config.KeyChannelPSK:        "random",
		config.KeyVerbose:           "1",
	})
	require.NoError(t, err)

	d := cfg.Desired
	require.NotNil(t, d.PositionBroadcast)
	assert.True(t, *d.PositionBroadcast)
	assert.Equal(t, &config.Network{SSID: "camp", PSK: "secret"}, d.Network)
	require.NotNil(t, d.Channel)
	assert.Equal(t, 0, d.Channel.Index)
	assert.True(t, d.Channel.Spec.Passphrase.Generated)
	assert.True(t, cfg.Verbose)
	assert.Nil(t, d.Owner)
}

func TestBuildPositionOff(t *testing.T) {
	cfg, err := config.Build(map[string]string{config.KeyPositionBroadcast: "false"})
	require.NoError(t, err)
	require.NotNil(t, cfg.Desired.PositionBroadcast)
	assert.False(t, *cfg.Desired.PositionBroadcast)
}

func TestBuildInvalidChannelIndex(t *testing.T) {
	for _, idx := range []string{"x", "-1", "8"} {
		_, err := config.Build(map[string]string{
			config.KeyChannelName:  "Ops",
			config.KeyChannelIndex: idx,
		})
		assert.Error(t, err, idx)
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := config.Load(config.Options{File: filepath.Join(t.TempDir(), "nope.yaml"), Lookup: env(nil)})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "region: [unterminated")
	_, err = config.Load(config.Options{File: bad, Lookup: env(nil)})
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", "yes", "on", " On "} {
		assert.True(t, config.ParseBool(s), s)
	}
	for _, s := range []string{"", "0", "false", "no", "off", "enabled"} {
		assert.False(t, config.ParseBool(s), s)
	}
}
