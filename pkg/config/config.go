package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/meshnode/meshnode-go/pkg/channel"
)

// DefaultEnvFile is the .env file read when none is given.
const DefaultEnvFile = ".env"

// Options selects the configuration sources.
type Options struct {
	// File is an optional YAML configuration file.
	File string

	// EnvFile is a .env file. Empty means DefaultEnvFile. A missing file is
	// ignored.
	EnvFile string

	// Overrides holds values from command-line flags, keyed like the
	// environment.
	Overrides map[string]string

	// Lookup reads the process environment. Nil means os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Connection selects the link to the node. Host takes precedence over
// Serial; with neither set a serial port is detected.
type Connection struct {
	Serial string
	Host   string
}

// UseTCP reports whether the node is reached over TCP.
func (c Connection) UseTCP() bool { return c.Host != "" }

// String describes the connection for logs.
func (c Connection) String() string {
	switch {
	case c.Host != "":
		return "tcp " + c.Host
	case c.Serial != "":
		return "serial " + c.Serial
	default:
		return "serial (auto-detect)"
	}
}

// Owner is the desired node identity. Empty names are left unchanged.
type Owner struct {
	Long  string
	Short string
}

// Network holds the desired Wi-Fi credentials.
type Network struct {
	SSID string
	PSK  string
}

// Channel is the desired configuration of one slot by index.
type Channel struct {
	Index int
	Spec  channel.Spec
}

// Desired is the configuration the node should converge to. Nil or empty
// fields leave the matching section alone.
type Desired struct {
	Owner             *Owner
	Region            string
	Role              string
	PositionBroadcast *bool
	Network           *Network
	Channel           *Channel
}

// Empty reports whether no section is populated.
func (d Desired) Empty() bool {
	return d.Owner == nil && d.Region == "" && d.Role == "" &&
		d.PositionBroadcast == nil && d.Network == nil && d.Channel == nil
}

// Config is the fully resolved configuration.
type Config struct {
	Connection Connection
	Desired    Desired
	Verbose    bool
}

// Load layers the sources in opts and builds the configuration.
func Load(opts Options) (*Config, error) {
	values := make(map[string]string)

	if opts.File != "" {
		f, err := LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		merge(values, f.values())
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	default:
		merge(values, dotenv)
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, k := range Keys {
		if v, ok := lookup(k); ok {
			merge(values, map[string]string{k: v})
		}
	}

	merge(values, opts.Overrides)
	return Build(values)
}

// merge copies non-empty values from src into dst.
func merge(dst, src map[string]string) {
	for k, v := range src {
		if v = strings.TrimSpace(v); v != "" {
			dst[k] = v
		}
	}
}

// Build converts keyed values into a Config. Values are validated only as
// far as their shape; region and role names are checked when applied.
func Build(values map[string]string) (*Config, error) {
	get := func(k string) string { return strings.TrimSpace(values[k]) }

	cfg := &Config{
		Connection: Connection{Serial: get(KeySerial), Host: get(KeyHost)},
		Verbose:    ParseBool(get(KeyVerbose)),
	}
	d := &cfg.Desired

	if long, short := get(KeyOwnerLong), get(KeyOwnerShort); long != "" || short != "" {
		d.Owner = &Owner{Long: long, Short: short}
	}
	d.Region = get(KeyRegion)
	d.Role = get(KeyDeviceRole)
	if v := get(KeyPositionBroadcast); v != "" {
		on := ParseBool(v)
		d.PositionBroadcast = &on
	}
	if ssid := get(KeyWifiSSID); ssid != "" {
		d.Network = &Network{SSID: ssid, PSK: get(KeyWifiPSK)}
	}

	if name, psk := get(KeyChannelName), get(KeyChannelPSK); name != "" || psk != "" {
		index := 0
		if v := get(KeyChannelIndex); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil || i < 0 || i >= channel.MaxSlots {
				return nil, fmt.Errorf("%s: invalid channel index %q", KeyChannelIndex, v)
			}
			index = i
		}
		pass, err := channel.ResolvePassphrase(psk)
		if err != nil {
			return nil, err
		}
		d.Channel = &Channel{Index: index, Spec: channel.Spec{Name: name, Passphrase: pass}}
	}
	return cfg, nil
}

// ParseBool accepts 1, true, yes and on in any case. Everything else is
// false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
