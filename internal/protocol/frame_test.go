package protocol

import (
	"bytes"
	"testing"
)

func TestClassifySentinel(t *testing.T) {
	frame := Classify([]byte{0xFF, 0xFF})

	if frame.Kind != FrameEnd {
		t.Errorf("Expected kind end, got %s", frame.Kind)
	}

	if len(frame.Payload) != 0 {
		t.Errorf("Expected no payload on sentinel, got %d bytes", len(frame.Payload))
	}

	// The rule is first-two-bytes; trailing bytes do not change it.
	frame = Classify([]byte{0xFF, 0xFF, 0x01, 0x02})
	if frame.Kind != FrameEnd {
		t.Errorf("Expected kind end with trailing bytes, got %s", frame.Kind)
	}
}

func TestClassifyDirectPayload(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	frame := Classify(data)

	if frame.Kind != FrameDirect {
		t.Errorf("Expected kind direct, got %s", frame.Kind)
	}

	if frame.Seq != 0 {
		t.Errorf("Expected synthesized sequence 0, got %d", frame.Seq)
	}

	if !bytes.Equal(frame.Payload, data) {
		t.Error("Expected direct payload to be the whole notification")
	}
}

func TestClassifyChunk(t *testing.T) {
	frame := Classify([]byte{0x00, 0x00, 'H', 'e'})

	if frame.Kind != FrameChunk {
		t.Errorf("Expected kind chunk, got %s", frame.Kind)
	}

	if frame.Seq != 0 {
		t.Errorf("Expected sequence 0, got %d", frame.Seq)
	}

	if string(frame.Payload) != "He" {
		t.Errorf("Expected payload He, got %q", frame.Payload)
	}

	// Counter is little-endian.
	frame = Classify([]byte{0x34, 0x12, 0xAA})
	if frame.Seq != 0x1234 {
		t.Errorf("Expected sequence 0x1234, got 0x%04x", frame.Seq)
	}
}

func TestClassifyChunkEmptyPayload(t *testing.T) {
	frame := Classify([]byte{0x03, 0x00})

	if frame.Kind != FrameChunk {
		t.Errorf("Expected kind chunk, got %s", frame.Kind)
	}

	if len(frame.Payload) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(frame.Payload))
	}
}

func TestClassifyMalformed(t *testing.T) {
	if frame := Classify(nil); frame.Kind != FrameMalformed {
		t.Errorf("Expected malformed for nil input, got %s", frame.Kind)
	}

	if frame := Classify([]byte{0xFF}); frame.Kind != FrameMalformed {
		t.Errorf("Expected malformed for one byte, got %s", frame.Kind)
	}
}

func TestEncodeChunkRoundTrip(t *testing.T) {
	payload := []byte("segment")
	frame := Classify(EncodeChunk(42, payload))

	if frame.Kind != FrameChunk {
		t.Errorf("Expected kind chunk, got %s", frame.Kind)
	}

	if frame.Seq != 42 {
		t.Errorf("Expected sequence 42, got %d", frame.Seq)
	}

	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("Expected payload %q, got %q", payload, frame.Payload)
	}
}

func TestEndSentinelClassifies(t *testing.T) {
	if frame := Classify(EndSentinel()); frame.Kind != FrameEnd {
		t.Errorf("Expected kind end, got %s", frame.Kind)
	}
}

func TestChannelCodes(t *testing.T) {
	if !ChannelPhoto.Inbound() || !ChannelAudio.Inbound() || !ChannelBattery.Inbound() {
		t.Error("Expected data channels to be inbound")
	}

	if ChannelPhotoControl.Inbound() {
		t.Error("Expected control channel to not be inbound")
	}

	if !ChannelPhotoControl.Control() || !ChannelAudioControl.Control() {
		t.Error("Expected control channels to report Control")
	}

	if ChannelPhoto.String() != "photo" {
		t.Errorf("Expected photo, got %s", ChannelPhoto.String())
	}

	if ch, ok := CharacteristicChannel(PhotoDataUUID); !ok || ch != ChannelPhoto {
		t.Errorf("Expected photo channel for photo data characteristic, got %v %v", ch, ok)
	}

	if _, ok := CharacteristicChannel(PhotoControlUUID); ok {
		t.Error("Expected no data channel for a control characteristic")
	}
}
