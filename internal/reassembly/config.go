package reassembly

import "time"

// Defaults applied when a Config field is zero.
const (
	DefaultIdleTimeout         = 2 * time.Second
	DefaultMinImageBytes       = 500
	DefaultDirectFinalizeDelay = 10 * time.Millisecond
)

// Config tunes one reassembler. The zero value selects the device
// defaults: a 2 s idle window, 500 byte minimum for a watchdog-completed
// image, a 10 ms synthetic end after a direct payload, and
// accept-any-start sequencing.
type Config struct {
	// StrictStart requires the first chunk of a transmission to carry
	// counter zero. The default accepts any starting counter, so a
	// relay that attaches mid-burst can still sequence the tail.
	StrictStart bool
	// MinFinalizeBytes is the smallest buffer the watchdog may emit at
	// expiry; smaller buffers are discarded. Sentinel completion
	// ignores it.
	MinFinalizeBytes int
	// IdleTimeout is the silence window after the last accepted chunk
	// before the watchdog forces completion.
	IdleTimeout time.Duration
	// DirectFinalizeDelay is the synthetic end-of-transmission delay
	// scheduled after a direct payload.
	DirectFinalizeDelay time.Duration
}

func (c Config) photoDefaults() Config {
	if c.MinFinalizeBytes == 0 {
		c.MinFinalizeBytes = DefaultMinImageBytes
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.DirectFinalizeDelay == 0 {
		c.DirectFinalizeDelay = DefaultDirectFinalizeDelay
	}
	return c
}

func (c Config) audioDefaults() Config {
	// Any non-empty clip is worth transcribing.
	if c.MinFinalizeBytes == 0 {
		c.MinFinalizeBytes = 1
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}
