package serialbridge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/arjy0/lumina/internal/protocol"
)

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "too short",
			data:    []byte{0xC0, 0xDE},
			wantErr: ErrFrameTooShort,
		},
		{
			name:    "invalid magic",
			data:    []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			wantErr: ErrInvalidMagic,
		},
		{
			name: "incomplete frame",
			// Length says 5 payload bytes but only 2 are present.
			data:    []byte{0xC0, 0xDE, 0x01, 0x05, 0x00, 0x01, 0x02},
			wantErr: ErrIncompleteFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeFrame(t *testing.T) {
	testCases := []struct {
		name    string
		channel protocol.Channel
		payload []byte
	}{
		{
			name:    "empty payload",
			channel: protocol.ChannelPhoto,
			payload: []byte{},
		},
		{
			name:    "battery level",
			channel: protocol.ChannelBattery,
			payload: []byte{87},
		},
		{
			name:    "full notification",
			channel: protocol.ChannelAudio,
			payload: make([]byte, protocol.MaxNotificationSize),
		},
		{
			name:    "max size payload",
			channel: protocol.ChannelAssistantAudio,
			payload: make([]byte, MaxFramePayload),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := EncodeFrame(tc.channel, tc.payload)
			if err != nil {
				t.Fatalf("EncodeFrame() error = %v", err)
			}
			if len(encoded) != frameHeaderSize+len(tc.payload)+frameChecksumSize {
				t.Errorf("encoded length = %d, want %d",
					len(encoded), frameHeaderSize+len(tc.payload)+frameChecksumSize)
			}

			frame, remaining, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if frame.Channel != tc.channel {
				t.Errorf("decoded channel = %v, want %v", frame.Channel, tc.channel)
			}
			if !bytes.Equal(frame.Payload, tc.payload) {
				t.Errorf("decoded payload = %v, want %v", frame.Payload, tc.payload)
			}
			if len(remaining) != 0 {
				t.Errorf("remaining bytes = %d, want 0", len(remaining))
			}
		})
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	payload := make([]byte, MaxFramePayload+1)
	_, err := EncodeFrame(protocol.ChannelPhoto, payload)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("EncodeFrame() error = %v, want %v", err, ErrPayloadTooLarge)
	}
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	encoded, err := EncodeFrame(protocol.ChannelPhoto, []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	encoded[len(encoded)-1] ^= 0xFF

	_, _, err = DecodeFrame(encoded)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("DecodeFrame() error = %v, want %v", err, ErrChecksumMismatch)
	}
}

func TestDecodeFrameWithRemaining(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	encoded, _ := EncodeFrame(protocol.ChannelAudio, payload)

	extra := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	dataWithExtra := append(encoded, extra...)

	frame, remaining, err := DecodeFrame(dataWithExtra)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("decoded payload = %v, want %v", frame.Payload, payload)
	}
	if !bytes.Equal(remaining, extra) {
		t.Errorf("remaining = %v, want %v", remaining, extra)
	}
}

func TestFletcher16(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty",
			data: []byte{},
			want: 0x0000,
		},
		{
			name: "single byte",
			data: []byte{0x01},
			want: 0x0101,
		},
		{
			name: "two bytes",
			data: []byte{0x01, 0x02},
			want: 0x0403,
		},
		{
			name: "three bytes",
			data: []byte{10, 20, 30},
			want: 0x643C,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fletcher16(tt.data); got != tt.want {
				t.Errorf("Fletcher16(%v) = %04x, want %04x", tt.data, got, tt.want)
			}
		})
	}
}
