package reassembly

import "time"

// EventKind enumerates the diagnostic events a reassembler reports.
type EventKind int

const (
	// EventSequenceViolation fires on a gap, duplicate or regression in
	// the chunk counter. The partial transmission is discarded; the
	// device is expected to restart it.
	EventSequenceViolation EventKind = iota
	// EventAudioGap fires when the audio frame index skips. Diagnostic
	// only, the buffer keeps accumulating.
	EventAudioGap
	// EventWatchdogDiscard fires when the idle window expires with less
	// than the minimum viable buffer.
	EventWatchdogDiscard
	// EventMalformed fires for notifications too short to classify.
	EventMalformed
	// EventReset fires when an in-flight transmission is dropped by an
	// explicit local reset.
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventSequenceViolation:
		return "sequence_violation"
	case EventAudioGap:
		return "audio_gap"
	case EventWatchdogDiscard:
		return "watchdog_discard"
	case EventMalformed:
		return "malformed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is one diagnostic occurrence. Events are logged and handed to
// the registered event handler so tests and monitoring can assert on
// them.
type Event struct {
	Kind EventKind
	// Expected is the counter the sequencer wanted next, -1 when no
	// transmission was in flight.
	Expected int32
	// Seq is the counter the offending notification carried, where one
	// applies.
	Seq uint16
	// Buffered is the byte count held when the event fired.
	Buffered int
}

// Trigger records what completed a transmission.
type Trigger int

const (
	// TriggerSentinel marks the normal FF FF completion path.
	TriggerSentinel Trigger = iota
	// TriggerWatchdog marks a completion forced by the idle window.
	TriggerWatchdog
	// TriggerDirect marks a direct payload completed by its synthetic
	// end.
	TriggerDirect
	// TriggerInterrupt marks audio cut short by a JPEG header arriving
	// on the audio channel.
	TriggerInterrupt
)

func (t Trigger) String() string {
	switch t {
	case TriggerSentinel:
		return "sentinel"
	case TriggerWatchdog:
		return "watchdog"
	case TriggerDirect:
		return "direct"
	case TriggerInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Completed is one reassembled message. Ownership of Data moves to the
// receiver; the reassembler keeps no reference to it.
type Completed struct {
	Data    []byte
	Trigger Trigger
	// Empty flags a sentinel that arrived with no transmission in
	// flight.
	Empty bool
	At    time.Time
}

// CompletionHandler receives each reassembled message.
type CompletionHandler func(Completed)

// EventHandler receives diagnostic events.
type EventHandler func(Event)
