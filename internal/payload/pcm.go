package payload

import (
	"fmt"
	"time"
)

// PCM stream parameters fixed by the device firmware.
const (
	SampleRate     = 16000
	BytesPerSample = 2
	// MinClipDuration is the soft floor below which a clip is more
	// likely an accidental touch than an utterance.
	MinClipDuration = 300 * time.Millisecond
)

// PCMDuration converts a byte count of 16-bit mono samples to wall time.
func PCMDuration(n int) time.Duration {
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// Clip wraps a finalized audio buffer with its computed shape.
type Clip struct {
	Data       []byte
	SampleRate int
	Duration   time.Duration
	Warnings   []string
}

// ValidateClip computes the duration of a finalized PCM buffer and
// attaches soft warnings. Audio is never sniffed or rejected; the bytes
// go downstream unchanged.
func ValidateClip(buf []byte) Clip {
	c := Clip{
		Data:       buf,
		SampleRate: SampleRate,
		Duration:   PCMDuration(len(buf)),
	}
	if len(buf)%BytesPerSample != 0 {
		c.Warnings = append(c.Warnings, "odd byte count for 16-bit samples")
	}
	if c.Duration < MinClipDuration {
		c.Warnings = append(c.Warnings, fmt.Sprintf("clip shorter than %s", MinClipDuration))
	}
	return c
}
