package protocol

// GATT identifiers advertised by the glasses. Relays subscribe with
// these; the host itself never opens a BLE session.
const (
	ServiceUUID      = "19b10000-e8f2-537e-4f6c-d104768a1214"
	AudioDataUUID    = "19b10001-e8f2-537e-4f6c-d104768a1214"
	AudioControlUUID = "19b10002-e8f2-537e-4f6c-d104768a1214"
	PhotoDataUUID    = "19b10005-e8f2-537e-4f6c-d104768a1214"
	PhotoControlUUID = "19b10006-e8f2-537e-4f6c-d104768a1214"

	// Standard services.
	BatteryServiceUUID = "180f"
	BatteryLevelUUID   = "2a19"
	DeviceInfoUUID     = "180a"
)

// CharacteristicChannel maps a data characteristic UUID to its logical
// channel code, for relays that forward raw notifications.
func CharacteristicChannel(uuid string) (Channel, bool) {
	switch uuid {
	case PhotoDataUUID:
		return ChannelPhoto, true
	case AudioDataUUID:
		return ChannelAudio, true
	case BatteryLevelUUID:
		return ChannelBattery, true
	}
	return 0, false
}
