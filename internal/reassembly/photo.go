// Package reassembly rebuilds application messages from the small
// notification packets the glasses emit. One reassembler owns the state
// for one logical channel of one device: the chunk counter, the growing
// buffer and the idle watchdog that stands in for a lost end marker.
package reassembly

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/protocol"
)

// PhotoReassembler rebuilds one JPEG from sequenced chunks on the photo
// channel. Chunks must arrive with strictly increasing counters; a gap,
// duplicate or regression discards the transmission. Completion comes
// from the FF FF sentinel, from the idle watchdog when the sentinel is
// lost, or from the synthetic end scheduled after a direct payload.
//
// Notifications must be handed in one at a time. The internal mutex only
// covers the race between chunk arrival and watchdog expiry; it does not
// make concurrent HandleNotification calls meaningful.
type PhotoReassembler struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	// next is the only counter the sequencer will accept, -1 while
	// awaiting the first chunk of a fresh transmission.
	next         int32
	buf          []byte
	lastActivity time.Time

	timer *time.Timer
	// gen invalidates stale timer callbacks after a rearm or disarm.
	gen          uint64
	armedTrigger Trigger

	now func() time.Time

	onComplete CompletionHandler
	onEvent    EventHandler
}

// NewPhotoReassembler creates a reassembler for one device's photo
// channel. Zero Config fields take the defaults.
func NewPhotoReassembler(cfg Config, logger *zap.Logger) *PhotoReassembler {
	return &PhotoReassembler{
		cfg:  cfg.photoDefaults(),
		log:  logger,
		next: -1,
		now:  time.Now,
	}
}

// SetCompletionHandler registers the consumer for finished images.
// Register handlers before the first notification.
func (r *PhotoReassembler) SetCompletionHandler(fn CompletionHandler) {
	r.onComplete = fn
}

// SetEventHandler registers the diagnostic event consumer.
func (r *PhotoReassembler) SetEventHandler(fn EventHandler) {
	r.onEvent = fn
}

// HandleNotification classifies one raw notification and advances the
// transmission state machine. Handlers fire synchronously, after the
// internal lock is released.
func (r *PhotoReassembler) HandleNotification(data []byte) {
	frame := protocol.Classify(data)

	r.mu.Lock()
	var (
		done   *Completed
		events []Event
	)
	switch frame.Kind {
	case protocol.FrameEnd:
		done = r.finalizeLocked(TriggerSentinel)

	case protocol.FrameDirect:
		// A direct payload is a complete image; anything partial in
		// the buffer belongs to an abandoned transmission.
		if r.next != -1 {
			events = append(events, r.resetLocked(EventSequenceViolation, frame.Seq))
		}
		r.acceptLocked(frame.Seq, frame.Payload)
		r.armLocked(r.cfg.DirectFinalizeDelay, TriggerDirect)

	case protocol.FrameChunk:
		if ev, ok := r.sequenceLocked(frame); ok {
			r.acceptLocked(frame.Seq, frame.Payload)
			r.armLocked(r.cfg.IdleTimeout, TriggerWatchdog)
		} else {
			events = append(events, ev)
		}

	case protocol.FrameMalformed:
		events = append(events, Event{
			Kind:     EventMalformed,
			Expected: r.next,
			Buffered: len(r.buf),
		})
	}
	r.mu.Unlock()

	r.emit(done, events)
}

// sequenceLocked decides whether a chunk continues the current
// transmission. A rejected chunk is dropped entirely, including when it
// caused the reset.
func (r *PhotoReassembler) sequenceLocked(frame protocol.Frame) (Event, bool) {
	if r.next == -1 {
		if r.cfg.StrictStart && frame.Seq != 0 {
			return Event{
				Kind: EventSequenceViolation,
				Seq:  frame.Seq,
			}, false
		}
		return Event{}, true
	}
	if int32(frame.Seq) == r.next {
		return Event{}, true
	}
	return r.resetLocked(EventSequenceViolation, frame.Seq), false
}

func (r *PhotoReassembler) acceptLocked(seq uint16, payload []byte) {
	r.next = int32(seq) + 1
	r.buf = append(r.buf, payload...)
	r.lastActivity = r.now()
}

// resetLocked discards the in-flight transmission and reports why.
func (r *PhotoReassembler) resetLocked(kind EventKind, seq uint16) Event {
	ev := Event{
		Kind:     kind,
		Expected: r.next,
		Seq:      seq,
		Buffered: len(r.buf),
	}
	r.disarmLocked()
	r.buf = nil
	r.next = -1
	return ev
}

// finalizeLocked hands the buffer off and returns to the fresh state.
func (r *PhotoReassembler) finalizeLocked(trigger Trigger) *Completed {
	r.disarmLocked()
	done := &Completed{
		Data:    r.buf,
		Trigger: trigger,
		Empty:   trigger == TriggerSentinel && r.next == -1,
		At:      r.now(),
	}
	r.buf = nil
	r.next = -1
	return done
}

func (r *PhotoReassembler) armLocked(d time.Duration, trigger Trigger) {
	r.gen++
	gen := r.gen
	r.armedTrigger = trigger
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, func() { r.expired(gen) })
}

func (r *PhotoReassembler) disarmLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// expired runs on the timer goroutine. A generation mismatch means a
// chunk arrived or the transmission ended while this callback was in
// flight.
func (r *PhotoReassembler) expired(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	var (
		done   *Completed
		events []Event
	)
	switch {
	case r.armedTrigger == TriggerDirect:
		done = r.finalizeLocked(TriggerDirect)
	case len(r.buf) >= r.cfg.MinFinalizeBytes:
		done = r.finalizeLocked(TriggerWatchdog)
	default:
		events = append(events, r.resetLocked(EventWatchdogDiscard, 0))
	}
	r.mu.Unlock()

	r.emit(done, events)
}

// Reset discards any in-flight transmission and returns the sequencer to
// the fresh state. The stop control path calls this whether or not the
// device acknowledged the stop.
func (r *PhotoReassembler) Reset() {
	r.mu.Lock()
	inFlight := r.next != -1
	var ev Event
	if inFlight {
		ev = r.resetLocked(EventReset, 0)
	}
	r.mu.Unlock()

	if inFlight {
		r.emit(nil, []Event{ev})
	}
}

// Close stops the watchdog. The reassembler must not be used afterward.
func (r *PhotoReassembler) Close() {
	r.mu.Lock()
	r.disarmLocked()
	r.buf = nil
	r.next = -1
	r.mu.Unlock()
}

// Pending returns the byte count of the in-flight transmission.
func (r *PhotoReassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// AwaitingFirst reports whether the sequencer is between transmissions.
func (r *PhotoReassembler) AwaitingFirst() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next == -1
}

// LastActivity returns when the last chunk was accepted. Zero until the
// first chunk arrives.
func (r *PhotoReassembler) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

func (r *PhotoReassembler) emit(done *Completed, events []Event) {
	for _, ev := range events {
		r.log.Warn("Photo channel event",
			zap.String("event", ev.Kind.String()),
			zap.Int32("expected", ev.Expected),
			zap.Uint16("seq", ev.Seq),
			zap.Int("buffered", ev.Buffered),
		)
		if r.onEvent != nil {
			r.onEvent(ev)
		}
	}
	if done != nil {
		r.log.Debug("Photo transmission completed",
			zap.String("trigger", done.Trigger.String()),
			zap.Int("bytes", len(done.Data)),
			zap.Bool("empty", done.Empty),
		)
		if r.onComplete != nil {
			r.onComplete(*done)
		}
	}
}
