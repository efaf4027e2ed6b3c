// Package protocol implements the Lumina wire format: notification
// framing on the photo and audio channels, the single-byte control
// commands, and the GATT identifiers relays subscribe to.
package protocol

import (
	"encoding/binary"
)

const (
	// SeqHeaderSize is the size of the little-endian chunk counter that
	// prefixes sequenced notifications.
	SeqHeaderSize = 2
	// MaxChunkPayload is the largest data payload the device places in
	// one notification after the counter.
	MaxChunkPayload = 200
	// MaxNotificationSize bounds a full notification (counter + payload).
	MaxNotificationSize = SeqHeaderSize + MaxChunkPayload
)

// FrameKind classifies one raw notification from the device.
type FrameKind int

const (
	// FrameMalformed marks notifications too short to carry the counter.
	FrameMalformed FrameKind = iota
	// FrameChunk is a sequence-numbered data fragment.
	FrameChunk
	// FrameDirect is a whole payload delivered in a single notification
	// with no counter; the first bytes are the JPEG SOI marker.
	FrameDirect
	// FrameEnd is the FF FF end-of-transmission sentinel.
	FrameEnd
)

func (k FrameKind) String() string {
	switch k {
	case FrameChunk:
		return "chunk"
	case FrameDirect:
		return "direct"
	case FrameEnd:
		return "end"
	default:
		return "malformed"
	}
}

// Frame is one classified notification.
type Frame struct {
	Kind FrameKind
	// Seq is the chunk counter. Valid for FrameChunk; FrameDirect
	// synthesizes 0 so both paths share the sequencer.
	Seq uint16
	// Payload holds the data bytes: everything after the counter for a
	// chunk, the entire notification for a direct payload.
	Payload []byte
}

// Classify inspects one raw notification and splits it into kind,
// counter and payload. Pure function, no state, data is not copied.
//
// Rules, checked in order: FF FF is the end sentinel, FF D8 opens a
// direct payload (the whole notification is image data), anything else
// is a sequenced chunk with a little-endian uint16 counter in front.
func Classify(data []byte) Frame {
	if len(data) < SeqHeaderSize {
		return Frame{Kind: FrameMalformed}
	}
	if data[0] == 0xFF && data[1] == 0xFF {
		return Frame{Kind: FrameEnd}
	}
	if data[0] == 0xFF && data[1] == 0xD8 {
		return Frame{Kind: FrameDirect, Payload: data}
	}
	return Frame{
		Kind:    FrameChunk,
		Seq:     binary.LittleEndian.Uint16(data[:SeqHeaderSize]),
		Payload: data[SeqHeaderSize:],
	}
}

// EncodeChunk builds a sequenced notification from a counter and a
// payload slice. Used by relay simulators and tests; the device firmware
// produces the same layout.
func EncodeChunk(seq uint16, payload []byte) []byte {
	out := make([]byte, SeqHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(out[:SeqHeaderSize], seq)
	copy(out[SeqHeaderSize:], payload)
	return out
}

// EndSentinel returns a fresh end-of-transmission marker.
func EndSentinel() []byte {
	return []byte{0xFF, 0xFF}
}
