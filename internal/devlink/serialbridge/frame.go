package serialbridge

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/arjy0/lumina/internal/protocol"
)

const (
	// FrameMagic starts every bridge frame on the wire.
	FrameMagic uint16 = 0xC0DE
	// MaxFramePayload bounds a frame payload. Device notifications top
	// out at 202 bytes; assistant audio chunks are up to 1 KiB.
	MaxFramePayload = 1024
	// frameHeaderSize is magic (2) + channel (1) + length (2).
	frameHeaderSize = 5
	// frameChecksumSize is the Fletcher-16 trailer.
	frameChecksumSize = 2
	// MinFrameSize is the smallest well-formed frame (empty payload).
	MinFrameSize = frameHeaderSize + frameChecksumSize
)

var (
	ErrFrameTooShort    = errors.New("frame too short")
	ErrInvalidMagic     = errors.New("invalid frame magic")
	ErrPayloadTooLarge  = errors.New("payload exceeds maximum size")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrIncompleteFrame  = errors.New("incomplete frame")
)

// Frame is one decoded bridge frame: a channel code and the raw
// notification or control bytes it carries.
type Frame struct {
	Channel protocol.Channel
	Payload []byte
}

// Fletcher16 computes the checksum used by the frame trailer.
func Fletcher16(data []byte) uint16 {
	var sum1, sum2 uint8
	for _, b := range data {
		sum1 = (sum1 + b) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return uint16(sum2)<<8 | uint16(sum1)
}

// EncodeFrame wraps a channel and payload in a bridge frame.
// Frame format: [0xC0DE (2 bytes BE)][channel (1 byte)][length (2 bytes LE)]
// [payload][Fletcher-16 over channel+length+payload (2 bytes BE)]
func EncodeFrame(ch protocol.Channel, payload []byte) ([]byte, error) {
	if len(payload) > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, frameHeaderSize+len(payload)+frameChecksumSize)
	binary.BigEndian.PutUint16(frame[0:2], FrameMagic)
	frame[2] = byte(ch)
	binary.LittleEndian.PutUint16(frame[3:5], uint16(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	checksum := Fletcher16(frame[2 : frameHeaderSize+len(payload)])
	binary.BigEndian.PutUint16(frame[frameHeaderSize+len(payload):], checksum)

	return frame, nil
}

// DecodeFrame decodes the first frame in data. It returns the frame,
// the remaining bytes after it, and an error when decoding failed.
// ErrIncompleteFrame means more bytes are needed; other errors mean the
// data at the front is not a valid frame.
func DecodeFrame(data []byte) (*Frame, []byte, error) {
	if len(data) < MinFrameSize {
		return nil, data, ErrFrameTooShort
	}

	if binary.BigEndian.Uint16(data[0:2]) != FrameMagic {
		return nil, data, ErrInvalidMagic
	}

	payloadLen := int(binary.LittleEndian.Uint16(data[3:5]))
	if payloadLen > MaxFramePayload {
		return nil, data, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	total := frameHeaderSize + payloadLen + frameChecksumSize
	if len(data) < total {
		return nil, data, ErrIncompleteFrame
	}

	checksumOffset := frameHeaderSize + payloadLen
	received := binary.BigEndian.Uint16(data[checksumOffset : checksumOffset+2])
	if computed := Fletcher16(data[2:checksumOffset]); computed != received {
		return nil, data, fmt.Errorf("%w: expected %04x, got %04x",
			ErrChecksumMismatch, computed, received)
	}

	frame := &Frame{
		Channel: protocol.Channel(data[2]),
		Payload: make([]byte, payloadLen),
	}
	copy(frame.Payload, data[frameHeaderSize:checksumOffset])

	return frame, data[total:], nil
}
