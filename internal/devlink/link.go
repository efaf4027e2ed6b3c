package devlink

import (
	"github.com/arjy0/lumina/internal/protocol"
	"github.com/arjy0/lumina/internal/reassembly"
)

// Link is one transport path to a device: a WebSocket relay, a serial
// dongle, or an MQTT bridge. A device has at most one active link; a
// newly attached link replaces the previous one.
type Link interface {
	// DeviceID identifies the device on the far end.
	DeviceID() string
	// Kind names the transport for logs and the API ("websocket",
	// "serial", "mqtt").
	Kind() string
	// Send writes one host-to-device frame: a control byte on a control
	// channel, or a synthesized speech chunk on the assistant channel.
	Send(ch protocol.Channel, payload []byte) error
}

// Sinks receive what the dispatcher produces. Photo and Audio are
// invoked one at a time per device, in completion order.
type Sinks struct {
	Photo   func(deviceID string, completed reassembly.Completed)
	Audio   func(deviceID string, completed reassembly.Completed)
	Battery func(deviceID string, level uint8)
}

// DeviceState is a snapshot of one attached device for the API.
type DeviceState struct {
	DeviceID           string `json:"device_id"`
	LinkKind           string `json:"link_kind"`
	BatteryLevel       int    `json:"battery_level"` // -1 until the first battery notification
	PendingPhoto       int    `json:"pending_photo_bytes"`
	PendingAudio       int    `json:"pending_audio_bytes"`
	SequenceViolations uint64 `json:"sequence_violations"`
	WatchdogDiscards   uint64 `json:"watchdog_discards"`
}
