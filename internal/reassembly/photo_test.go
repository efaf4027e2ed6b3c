package reassembly

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/protocol"
)

// collector gathers handler output so tests can assert on it. The
// watchdog delivers from its own goroutine, hence the mutex.
type collector struct {
	mu        sync.Mutex
	completed []Completed
	events    []Event
}

func (c *collector) onComplete(done Completed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, done)
}

func (c *collector) onEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) completedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completed)
}

func (c *collector) completedAt(i int) Completed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[i]
}

func (c *collector) eventsOf(kind EventKind) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newPhotoUnderTest(cfg Config) (*PhotoReassembler, *collector) {
	c := &collector{}
	r := NewPhotoReassembler(cfg, zap.NewNop())
	r.SetCompletionHandler(c.onComplete)
	r.SetEventHandler(c.onEvent)
	return r, c
}

func TestPhotoSentinelCompletion(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification([]byte{0x00, 0x00, 'H', 'e'})
	r.HandleNotification([]byte{0x01, 0x00, 'l', 'l'})
	r.HandleNotification([]byte{0x02, 0x00, 'o', '!'})
	r.HandleNotification([]byte{0xFF, 0xFF})

	if c.completedCount() != 1 {
		t.Fatalf("Expected 1 completed message, got %d", c.completedCount())
	}

	done := c.completedAt(0)
	if string(done.Data) != "Hello!" {
		t.Errorf("Expected Hello!, got %q", done.Data)
	}

	if done.Trigger != TriggerSentinel {
		t.Errorf("Expected sentinel trigger, got %s", done.Trigger)
	}

	if done.Empty {
		t.Error("Expected non-empty completion")
	}

	if !r.AwaitingFirst() {
		t.Error("Expected sequencer to be reset after completion")
	}
}

func TestPhotoAcceptsAnyStartingCounter(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	// A relay joining mid-burst sees counters from an arbitrary origin.
	r.HandleNotification(protocol.EncodeChunk(5, []byte("ab")))
	r.HandleNotification(protocol.EncodeChunk(6, []byte("cd")))
	r.HandleNotification(protocol.EncodeChunk(7, []byte("ef")))
	r.HandleNotification(protocol.EndSentinel())

	if c.completedCount() != 1 {
		t.Fatalf("Expected 1 completed message, got %d", c.completedCount())
	}

	if got := string(c.completedAt(0).Data); got != "abcdef" {
		t.Errorf("Expected abcdef, got %q", got)
	}

	if len(c.eventsOf(EventSequenceViolation)) != 0 {
		t.Error("Expected no sequence violations")
	}
}

func TestPhotoGapDiscards(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, []byte("aa")))
	r.HandleNotification(protocol.EncodeChunk(1, []byte("bb")))
	r.HandleNotification(protocol.EncodeChunk(3, []byte("cc")))

	violations := c.eventsOf(EventSequenceViolation)
	if len(violations) != 1 {
		t.Fatalf("Expected 1 sequence violation, got %d", len(violations))
	}

	if violations[0].Expected != 2 || violations[0].Seq != 3 {
		t.Errorf("Expected violation wanting 2 got 3, recorded %d and %d",
			violations[0].Expected, violations[0].Seq)
	}

	if violations[0].Buffered != 4 {
		t.Errorf("Expected 4 buffered bytes at violation, got %d", violations[0].Buffered)
	}

	if r.Pending() != 0 {
		t.Errorf("Expected empty buffer after discard, got %d bytes", r.Pending())
	}

	if !r.AwaitingFirst() {
		t.Error("Expected sequencer reset after discard")
	}

	// The chunk that caused the reset is gone; the next one opens a
	// fresh transmission.
	r.HandleNotification(protocol.EncodeChunk(9, []byte("dd")))
	r.HandleNotification(protocol.EndSentinel())

	if c.completedCount() != 1 {
		t.Fatalf("Expected 1 completed message, got %d", c.completedCount())
	}

	if got := string(c.completedAt(0).Data); got != "dd" {
		t.Errorf("Expected dd, got %q", got)
	}
}

func TestPhotoDuplicateDiscards(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, []byte("aa")))
	r.HandleNotification(protocol.EncodeChunk(1, []byte("bb")))
	r.HandleNotification(protocol.EncodeChunk(1, []byte("bb")))

	if len(c.eventsOf(EventSequenceViolation)) != 1 {
		t.Errorf("Expected 1 sequence violation for a duplicate, got %d",
			len(c.eventsOf(EventSequenceViolation)))
	}

	if r.Pending() != 0 {
		t.Errorf("Expected empty buffer after duplicate, got %d bytes", r.Pending())
	}
}

func TestPhotoStrictStart(t *testing.T) {
	r, c := newPhotoUnderTest(Config{StrictStart: true})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(3, []byte("xx")))

	if len(c.eventsOf(EventSequenceViolation)) != 1 {
		t.Fatalf("Expected violation for non-zero start, got %d events",
			len(c.eventsOf(EventSequenceViolation)))
	}

	if r.Pending() != 0 {
		t.Errorf("Expected nothing buffered, got %d bytes", r.Pending())
	}

	r.HandleNotification(protocol.EncodeChunk(0, []byte("yy")))
	r.HandleNotification(protocol.EndSentinel())

	if c.completedCount() != 1 || string(c.completedAt(0).Data) != "yy" {
		t.Error("Expected zero-start transmission to complete")
	}
}

func TestPhotoDirectPayloadAutoFinalizes(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	// A whole small JPEG in one notification, SOI first, EOI last.
	direct := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x42}, 600)...)
	direct = append(direct, 0xFF, 0xD9)

	r.HandleNotification(direct)

	if !waitFor(time.Second, func() bool { return c.completedCount() == 1 }) {
		t.Fatal("Expected direct payload to auto-finalize")
	}

	done := c.completedAt(0)
	if done.Trigger != TriggerDirect {
		t.Errorf("Expected direct trigger, got %s", done.Trigger)
	}

	if !bytes.Equal(done.Data, direct) {
		t.Error("Expected completed bytes to equal the notification verbatim")
	}

	if !r.AwaitingFirst() {
		t.Error("Expected sequencer reset after direct completion")
	}
}

func TestPhotoDirectPreemptsPartial(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, []byte("partial")))

	direct := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0xFF, 0xD9}
	r.HandleNotification(direct)

	if len(c.eventsOf(EventSequenceViolation)) != 1 {
		t.Errorf("Expected the abandoned partial to be reported, got %d events",
			len(c.eventsOf(EventSequenceViolation)))
	}

	if !waitFor(time.Second, func() bool { return c.completedCount() == 1 }) {
		t.Fatal("Expected direct payload to auto-finalize")
	}

	if !bytes.Equal(c.completedAt(0).Data, direct) {
		t.Error("Expected only the direct payload bytes, not the abandoned partial")
	}
}

func TestPhotoWatchdogForcesCompletion(t *testing.T) {
	r, c := newPhotoUnderTest(Config{IdleTimeout: 60 * time.Millisecond, MinFinalizeBytes: 10})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, bytes.Repeat([]byte{0x01}, 8)))
	r.HandleNotification(protocol.EncodeChunk(1, bytes.Repeat([]byte{0x02}, 8)))

	if !waitFor(time.Second, func() bool { return c.completedCount() == 1 }) {
		t.Fatal("Expected watchdog to force completion")
	}

	done := c.completedAt(0)
	if done.Trigger != TriggerWatchdog {
		t.Errorf("Expected watchdog trigger, got %s", done.Trigger)
	}

	if len(done.Data) != 16 {
		t.Errorf("Expected 16 accumulated bytes, got %d", len(done.Data))
	}

	if !r.AwaitingFirst() {
		t.Error("Expected sequencer reset after watchdog completion")
	}

	// Exactly one message; the timer must not fire again.
	time.Sleep(150 * time.Millisecond)
	if c.completedCount() != 1 {
		t.Errorf("Expected exactly 1 completed message, got %d", c.completedCount())
	}
}

func TestPhotoWatchdogDiscardsShortBuffer(t *testing.T) {
	r, c := newPhotoUnderTest(Config{IdleTimeout: 60 * time.Millisecond, MinFinalizeBytes: 500})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, []byte("too short")))

	if !waitFor(time.Second, func() bool { return len(c.eventsOf(EventWatchdogDiscard)) == 1 }) {
		t.Fatal("Expected watchdog discard event")
	}

	if c.completedCount() != 0 {
		t.Errorf("Expected no completed message, got %d", c.completedCount())
	}

	if !r.AwaitingFirst() || r.Pending() != 0 {
		t.Error("Expected state reset after watchdog discard")
	}
}

func TestPhotoWatchdogRearmsOnActivity(t *testing.T) {
	r, c := newPhotoUnderTest(Config{IdleTimeout: 120 * time.Millisecond, MinFinalizeBytes: 1})
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.HandleNotification(protocol.EncodeChunk(uint16(i), []byte("x")))
		time.Sleep(50 * time.Millisecond)
		if c.completedCount() != 0 {
			t.Fatal("Watchdog fired while chunks were still arriving")
		}
	}

	if !waitFor(time.Second, func() bool { return c.completedCount() == 1 }) {
		t.Fatal("Expected watchdog completion after the stream went quiet")
	}

	if got := string(c.completedAt(0).Data); got != "xxx" {
		t.Errorf("Expected xxx, got %q", got)
	}
}

func TestPhotoEmptySentinel(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EndSentinel())

	if c.completedCount() != 1 {
		t.Fatalf("Expected 1 completed message, got %d", c.completedCount())
	}

	done := c.completedAt(0)
	if !done.Empty {
		t.Error("Expected the no-data flag on a bare sentinel")
	}

	if len(done.Data) != 0 {
		t.Errorf("Expected empty data, got %d bytes", len(done.Data))
	}
}

func TestPhotoResetAllowsFreshStart(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(5, []byte("aa")))
	r.HandleNotification(protocol.EncodeChunk(6, []byte("bb")))
	r.HandleNotification(protocol.EncodeChunk(7, []byte("cc")))

	// The stop control path mirrors the device-side reset locally.
	r.Reset()

	if len(c.eventsOf(EventReset)) != 1 {
		t.Errorf("Expected 1 reset event, got %d", len(c.eventsOf(EventReset)))
	}

	if !r.AwaitingFirst() || r.Pending() != 0 {
		t.Fatal("Expected fresh state after reset")
	}

	// A later chunk with an unrelated counter opens a new transmission
	// instead of being rejected against the stale sequence.
	r.HandleNotification(protocol.EncodeChunk(9, []byte("dd")))

	if r.Pending() != 2 {
		t.Errorf("Expected chunk 9 to be accepted fresh, buffered %d bytes", r.Pending())
	}

	r.HandleNotification(protocol.EndSentinel())

	if c.completedCount() != 1 || string(c.completedAt(0).Data) != "dd" {
		t.Error("Expected completion with only the fresh transmission bytes")
	}
}

func TestPhotoResetWhenIdleIsQuiet(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.Reset()

	if len(c.eventsOf(EventReset)) != 0 {
		t.Error("Expected no reset event when nothing was in flight")
	}
}

func TestPhotoMalformedIgnored(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, []byte("aa")))
	r.HandleNotification([]byte{0x7F})
	r.HandleNotification(protocol.EncodeChunk(1, []byte("bb")))
	r.HandleNotification(protocol.EndSentinel())

	if len(c.eventsOf(EventMalformed)) != 1 {
		t.Errorf("Expected 1 malformed event, got %d", len(c.eventsOf(EventMalformed)))
	}

	if c.completedCount() != 1 || string(c.completedAt(0).Data) != "aabb" {
		t.Error("Expected malformed notification to not disturb the transmission")
	}
}

func TestPhotoChunkWithEmptyPayload(t *testing.T) {
	r, c := newPhotoUnderTest(Config{})
	defer r.Close()

	r.HandleNotification(protocol.EncodeChunk(0, []byte("aa")))
	r.HandleNotification(protocol.EncodeChunk(1, nil))
	r.HandleNotification(protocol.EncodeChunk(2, []byte("bb")))
	r.HandleNotification(protocol.EndSentinel())

	if c.completedCount() != 1 || string(c.completedAt(0).Data) != "aabb" {
		t.Error("Expected empty-payload chunk to advance the sequence without adding bytes")
	}
}
