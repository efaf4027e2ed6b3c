package protocol

import (
	"errors"
	"fmt"
)

// Photo control values, written to the device as one signed byte.
const (
	PhotoSingleShot = -1
	PhotoStop       = 0
	// IntervalMin and IntervalMax bound an interval-capture request in
	// seconds. The device substitutes its configured cadence; the value
	// only selects the mode.
	IntervalMin = 5
	IntervalMax = 300
)

// Audio control values.
const (
	AudioStop         = 0
	AudioStartVoice   = 1
	AudioStartCommand = 2
)

var (
	ErrIntervalOutOfRange = errors.New("interval outside 5..300 seconds")
	// ErrIntervalUnencodable marks intervals above 127, which cannot be
	// represented in the signed control byte.
	ErrIntervalUnencodable = errors.New("interval does not fit the signed control byte")
	ErrUnknownPhotoControl = errors.New("unknown photo control value")
	ErrUnknownAudioControl = errors.New("unknown audio control value")
)

// ValidateInterval checks an interval-capture period in seconds against
// the protocol contract.
func ValidateInterval(seconds int) error {
	if seconds < IntervalMin || seconds > IntervalMax {
		return fmt.Errorf("%w: %d", ErrIntervalOutOfRange, seconds)
	}
	return nil
}

// EncodePhotoControl validates v (-1 single shot, 0 stop, 5..300
// interval seconds) and returns the control byte to write.
func EncodePhotoControl(v int) ([]byte, error) {
	switch {
	case v == PhotoSingleShot, v == PhotoStop:
	case v >= IntervalMin && v <= IntervalMax:
		if v > 127 {
			return nil, fmt.Errorf("%w: %d", ErrIntervalUnencodable, v)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhotoControl, v)
	}
	return []byte{byte(int8(v))}, nil
}

// EncodeAudioControl validates v (0 stop, 1 start voice activation,
// 2 start command recording) and returns the control byte to write.
func EncodeAudioControl(v int) ([]byte, error) {
	switch v {
	case AudioStop, AudioStartVoice, AudioStartCommand:
		return []byte{byte(int8(v))}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownAudioControl, v)
}
