package config

// Recognised keys.
const (
	KeySerial            = "MESHTASTIC_SERIAL"
	KeyHost              = "MESHTASTIC_HOST"
	KeyRegion            = "MESHTASTIC_REGION"
	KeyOwnerLong         = "MESHTASTIC_OWNER_LONG"
	KeyOwnerShort        = "MESHTASTIC_OWNER_SHORT"
	KeyChannelName       = "MESHTASTIC_CHANNEL_NAME"
	KeyChannelPSK        = "MESHTASTIC_CHANNEL_PSK"
	KeyChannelIndex      = "MESHTASTIC_CHANNEL_INDEX"
	KeyDeviceRole        = "MESHTASTIC_DEVICE_ROLE"
	KeyPositionBroadcast = "MESHTASTIC_POSITION_BROADCAST"
	KeyWifiSSID          = "MESHTASTIC_WIFI_SSID"
	KeyWifiPSK           = "MESHTASTIC_WIFI_PSK"
	KeyVerbose           = "MESHTASTIC_VERBOSE"
)

// Keys lists every recognised key.
var Keys = []string{
	KeySerial,
	KeyHost,
	KeyRegion,
	KeyOwnerLong,
	KeyOwnerShort,
	KeyChannelName,
	KeyChannelPSK,
	KeyChannelIndex,
	KeyDeviceRole,
	KeyPositionBroadcast,
	KeyWifiSSID,
	KeyWifiPSK,
	KeyVerbose,
}
