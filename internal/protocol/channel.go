package protocol

import "fmt"

// Channel identifies one logical stream between device and host. Relay
// bridges prefix every forwarded notification with the channel code so
// the host can demultiplex without knowing GATT characteristic handles.
type Channel byte

const (
	ChannelPhoto   Channel = 0x01
	ChannelAudio   Channel = 0x02
	ChannelBattery Channel = 0x03

	// Control channels flow host to device.
	ChannelPhotoControl Channel = 0x11
	ChannelAudioControl Channel = 0x12

	// ChannelAssistantAudio carries synthesized speech host to device.
	ChannelAssistantAudio Channel = 0x20
)

func (c Channel) String() string {
	switch c {
	case ChannelPhoto:
		return "photo"
	case ChannelAudio:
		return "audio"
	case ChannelBattery:
		return "battery"
	case ChannelPhotoControl:
		return "photo-ctrl"
	case ChannelAudioControl:
		return "audio-ctrl"
	case ChannelAssistantAudio:
		return "assistant-audio"
	default:
		return fmt.Sprintf("channel(0x%02x)", byte(c))
	}
}

// Inbound reports whether notifications on c flow from device to host.
func (c Channel) Inbound() bool {
	switch c {
	case ChannelPhoto, ChannelAudio, ChannelBattery:
		return true
	}
	return false
}

// Control reports whether c carries host-to-device command bytes.
func (c Channel) Control() bool {
	return c == ChannelPhotoControl || c == ChannelAudioControl
}
