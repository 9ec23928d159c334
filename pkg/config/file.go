package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration file layout.
//
//	connection:
//	  host: 192.168.1.50
//	region: EU868
//	owner:
//	  long: Base Camp
//	  short: BASE
//	role: ROUTER
//	position_broadcast: true
//	wifi:
//	  ssid: camp
//	  psk: secret
//	channel:
//	  index: 1
//	  name: Ops
//	  psk: random
type File struct {
	Connection struct {
		Serial string `yaml:"serial"`
		Host   string `yaml:"host"`
	} `yaml:"connection"`

	Region string `yaml:"region"`

	Owner struct {
		Long  string `yaml:"long"`
		Short string `yaml:"short"`
	} `yaml:"owner"`

	Role              string `yaml:"role"`
	PositionBroadcast *bool  `yaml:"position_broadcast"`

	Wifi struct {
		SSID string `yaml:"ssid"`
		PSK  string `yaml:"psk"`
	} `yaml:"wifi"`

	Channel struct {
		Index *int   `yaml:"index"`
		Name  string `yaml:"name"`
		PSK   string `yaml:"psk"`
	} `yaml:"channel"`

	Verbose bool `yaml:"verbose"`
}

// ParseFile parses YAML configuration.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// values flattens the file into keyed values.
func (f *File) values() map[string]string {
	v := map[string]string{
		KeySerial:      f.Connection.Serial,
		KeyHost:        f.Connection.Host,
		KeyRegion:      f.Region,
		KeyOwnerLong:   f.Owner.Long,
		KeyOwnerShort:  f.Owner.Short,
		KeyDeviceRole:  f.Role,
		KeyWifiSSID:    f.Wifi.SSID,
		KeyWifiPSK:     f.Wifi.PSK,
		KeyChannelName: f.Channel.Name,
		KeyChannelPSK:  f.Channel.PSK,
	}
	if f.PositionBroadcast != nil {
		v[KeyPositionBroadcast] = strconv.FormatBool(*f.PositionBroadcast)
	}
	if f.Channel.Index != nil {
		v[KeyChannelIndex] = strconv.Itoa(*f.Channel.Index)
	}
	if f.Verbose {
		v[KeyVerbose] = "1"
	}
	return v
}
