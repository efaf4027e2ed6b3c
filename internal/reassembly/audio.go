package reassembly

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/protocol"
)

// AudioReassembler collects one spoken clip from the audio channel. The
// frame index is diagnostic only: chunks are appended in arrival order
// whether or not the index skipped, since a short dropout is preferable
// to losing the whole clip. The clip ends when the idle window expires,
// when an explicit FF FF sentinel arrives, or when a JPEG header shows
// up on the audio channel, meaning the device has moved on to sending a
// photo and the clip must close immediately.
type AudioReassembler struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	// lastSeq is the most recent frame index, -1 before the first chunk
	// of a clip. Used only to spot gaps.
	lastSeq      int32
	buf          []byte
	lastActivity time.Time

	timer *time.Timer
	gen   uint64

	now func() time.Time

	onComplete CompletionHandler
	onEvent    EventHandler
}

// NewAudioReassembler creates a reassembler for one device's audio
// channel. Zero Config fields take the defaults.
func NewAudioReassembler(cfg Config, logger *zap.Logger) *AudioReassembler {
	return &AudioReassembler{
		cfg:     cfg.audioDefaults(),
		log:     logger,
		lastSeq: -1,
		now:     time.Now,
	}
}

// SetCompletionHandler registers the consumer for finished clips.
// Register handlers before the first notification.
func (r *AudioReassembler) SetCompletionHandler(fn CompletionHandler) {
	r.onComplete = fn
}

// SetEventHandler registers the diagnostic event consumer.
func (r *AudioReassembler) SetEventHandler(fn EventHandler) {
	r.onEvent = fn
}

// HandleNotification folds one raw notification into the current clip.
func (r *AudioReassembler) HandleNotification(data []byte) {
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
		// Photo bytes on the audio channel close the clip; the image
		// itself travels on the photo channel and is not kept here.
		if len(r.buf) > 0 {
			done = r.finalizeLocked(TriggerInterrupt)
		}

	case protocol.FrameChunk:
		if r.lastSeq >= 0 && int32(frame.Seq) != r.lastSeq+1 {
			events = append(events, Event{
				Kind:     EventAudioGap,
				Expected: r.lastSeq + 1,
				Seq:      frame.Seq,
				Buffered: len(r.buf),
			})
		}
		r.lastSeq = int32(frame.Seq)
		r.buf = append(r.buf, frame.Payload...)
		r.lastActivity = r.now()
		r.armLocked(r.cfg.IdleTimeout)

	case protocol.FrameMalformed:
		events = append(events, Event{
			Kind:     EventMalformed,
			Expected: r.lastSeq,
			Buffered: len(r.buf),
		})
	}
	r.mu.Unlock()

	r.emit(done, events)
}

func (r *AudioReassembler) finalizeLocked(trigger Trigger) *Completed {
	r.disarmLocked()
	done := &Completed{
		Data:    r.buf,
		Trigger: trigger,
		Empty:   trigger == TriggerSentinel && len(r.buf) == 0,
		At:      r.now(),
	}
	r.buf = nil
	r.lastSeq = -1
	return done
}

func (r *AudioReassembler) armLocked(d time.Duration) {
	r.gen++
	gen := r.gen
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, func() { r.expired(gen) })
}

func (r *AudioReassembler) disarmLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *AudioReassembler) expired(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	var (
		done   *Completed
		events []Event
	)
	if len(r.buf) >= r.cfg.MinFinalizeBytes {
		done = r.finalizeLocked(TriggerWatchdog)
	} else {
		events = append(events, Event{
			Kind:     EventWatchdogDiscard,
			Expected: r.lastSeq,
			Buffered: len(r.buf),
		})
		r.disarmLocked()
		r.buf = nil
		r.lastSeq = -1
	}
	r.mu.Unlock()

	r.emit(done, events)
}

// Reset discards the clip in progress. The stop control path calls this
// whether or not the device acknowledged the stop.
func (r *AudioReassembler) Reset() {
	r.mu.Lock()
	inFlight := r.lastSeq != -1 || len(r.buf) > 0
	var ev Event
	if inFlight {
		ev = Event{
			Kind:     EventReset,
			Expected: r.lastSeq,
			Buffered: len(r.buf),
		}
		r.disarmLocked()
		r.buf = nil
		r.lastSeq = -1
	}
	r.mu.Unlock()

	if inFlight {
		r.emit(nil, []Event{ev})
	}
}

// Close stops the watchdog. The reassembler must not be used afterward.
func (r *AudioReassembler) Close() {
	r.mu.Lock()
	r.disarmLocked()
	r.buf = nil
	r.lastSeq = -1
	r.mu.Unlock()
}

// Pending returns the byte count of the clip in progress.
func (r *AudioReassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// LastActivity returns when the last chunk was accepted. Zero until the
// first chunk arrives.
func (r *AudioReassembler) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

func (r *AudioReassembler) emit(done *Completed, events []Event) {
	for _, ev := range events {
		logger := r.log.Warn
		if ev.Kind == EventAudioGap {
			// Gaps are expected under light packet loss.
			logger = r.log.Debug
		}
		logger("Audio channel event",
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
		r.log.Debug("Audio clip completed",
			zap.String("trigger", done.Trigger.String()),
			zap.Int("bytes", len(done.Data)),
			zap.Bool("empty", done.Empty),
		)
		if r.onComplete != nil {
			r.onComplete(*done)
		}
	}
}
