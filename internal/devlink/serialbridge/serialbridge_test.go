package serialbridge

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/protocol"
	"github.com/arjy0/lumina/internal/reassembly"
)

// frameRecorder collects sink invocations across goroutines.
type frameRecorder struct {
	mu      sync.Mutex
	photos  [][]byte
	battery []uint8
}

func (r *frameRecorder) sinks() devlink.Sinks {
	return devlink.Sinks{
		Photo: func(_ string, done reassembly.Completed) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.photos = append(r.photos, done.Data)
		},
		Battery: func(_ string, level uint8) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.battery = append(r.battery, level)
		},
	}
}

func (r *frameRecorder) photoCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.photos)
}

func (r *frameRecorder) batteryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.battery)
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// newBridgeUnderTest wires a bridge to a dispatcher without opening a
// serial port, so frame processing can be driven directly.
func newBridgeUnderTest(t *testing.T) (*Bridge, *frameRecorder) {
	t.Helper()
	rec := &frameRecorder{}
	d := devlink.NewDispatcher(devlink.Config{}, rec.sinks(), zap.NewNop())
	t.Cleanup(d.Close)

	b := New(Config{Port: "/dev/null", DeviceID: "glasses-1"}, d, zap.NewNop())
	if err := d.Attach(b); err != nil {
		t.Fatalf("Failed to attach bridge: %v", err)
	}
	return b, rec
}

func mustFrame(t *testing.T, ch protocol.Channel, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(ch, payload)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	return frame
}

func TestProcessFramesDeliversPhoto(t *testing.T) {
	b, rec := newBridgeUnderTest(t)

	var data []byte
	data = append(data, mustFrame(t, protocol.ChannelPhoto, protocol.EncodeChunk(0, []byte("Hel")))...)
	data = append(data, mustFrame(t, protocol.ChannelPhoto, protocol.EncodeChunk(1, []byte("lo!")))...)
	data = append(data, mustFrame(t, protocol.ChannelPhoto, protocol.EndSentinel())...)

	remaining := b.processFrames(data)
	if len(remaining) != 0 {
		t.Errorf("Expected no remaining bytes, got %d", len(remaining))
	}

	if !waitFor(time.Second, func() bool { return rec.photoCount() == 1 }) {
		t.Fatal("Expected one completed photo")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !bytes.Equal(rec.photos[0], []byte("Hello!")) {
		t.Errorf("Expected photo bytes %q, got %q", "Hello!", rec.photos[0])
	}
}

func TestProcessFramesIncrementalAssembly(t *testing.T) {
	b, rec := newBridgeUnderTest(t)

	frame := mustFrame(t, protocol.ChannelBattery, []byte{87})

	var buf []byte
	for _, by := range frame {
		buf = append(buf, by)
		buf = b.processFrames(buf)
	}

	if len(buf) != 0 {
		t.Errorf("Expected no remaining bytes, got %d", len(buf))
	}
	if !waitFor(time.Second, func() bool { return rec.batteryCount() == 1 }) {
		t.Fatal("Expected one battery report")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.battery[0] != 87 {
		t.Errorf("Expected battery level 87, got %d", rec.battery[0])
	}
}

func TestProcessFramesGarbageBeforeFrame(t *testing.T) {
	b, rec := newBridgeUnderTest(t)

	garbage := []byte{0x00, 0x01, 0x02, 0xFF}
	data := append(garbage, mustFrame(t, protocol.ChannelBattery, []byte{42})...)

	remaining := b.processFrames(data)
	if len(remaining) != 0 {
		t.Errorf("Expected no remaining bytes, got %d", len(remaining))
	}
	if !waitFor(time.Second, func() bool { return rec.batteryCount() == 1 }) {
		t.Fatal("Expected battery report after skipping garbage")
	}
}

func TestProcessFramesCorruptThenValid(t *testing.T) {
	b, rec := newBridgeUnderTest(t)

	corrupt := mustFrame(t, protocol.ChannelBattery, []byte{10})
	corrupt[len(corrupt)-1] ^= 0xFF
	data := append(corrupt, mustFrame(t, protocol.ChannelBattery, []byte{55})...)

	remaining := b.processFrames(data)
	if len(remaining) != 0 {
		t.Errorf("Expected no remaining bytes, got %d", len(remaining))
	}

	if !waitFor(time.Second, func() bool { return rec.batteryCount() == 1 }) {
		t.Fatal("Expected exactly the valid frame to be delivered")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.battery[0] != 55 {
		t.Errorf("Expected battery level 55, got %d", rec.battery[0])
	}
}

func TestProcessFramesSkipsOutboundChannel(t *testing.T) {
	b, rec := newBridgeUnderTest(t)

	data := mustFrame(t, protocol.ChannelPhotoControl, []byte{0xFF})
	remaining := b.processFrames(data)
	if len(remaining) != 0 {
		t.Errorf("Expected no remaining bytes, got %d", len(remaining))
	}

	time.Sleep(20 * time.Millisecond)
	if rec.photoCount() != 0 || rec.batteryCount() != 0 {
		t.Error("Expected outbound frame to be ignored")
	}
}

func TestFindMagic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{
			name: "magic at start",
			data: []byte{0xC0, 0xDE, 0x05},
			want: 0,
		},
		{
			name: "magic in middle",
			data: []byte{0x00, 0x01, 0xC0, 0xDE, 0x05},
			want: 2,
		},
		{
			name: "no magic",
			data: []byte{0x00, 0x01, 0x02, 0x03},
			want: -1,
		},
		{
			name: "partial magic at end",
			data: []byte{0x00, 0xC0},
			want: -1,
		},
		{
			name: "empty",
			data: []byte{},
			want: -1,
		},
		{
			name: "just magic",
			data: []byte{0xC0, 0xDE},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findMagic(tt.data); got != tt.want {
				t.Errorf("findMagic() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSendNotConnected(t *testing.T) {
	rec := &frameRecorder{}
	d := devlink.NewDispatcher(devlink.Config{}, rec.sinks(), zap.NewNop())
	t.Cleanup(d.Close)

	b := New(Config{Port: "/dev/ttyUSB0", DeviceID: "glasses-1"}, d, zap.NewNop())
	if err := b.Send(protocol.ChannelPhotoControl, []byte{0xFF}); err == nil {
		t.Fatal("Expected error when not connected")
	}
}

func TestNewDefaults(t *testing.T) {
	rec := &frameRecorder{}
	d := devlink.NewDispatcher(devlink.Config{}, rec.sinks(), zap.NewNop())
	t.Cleanup(d.Close)

	b := New(Config{Port: "/dev/ttyUSB0", DeviceID: "glasses-1"}, d, zap.NewNop())
	if b.cfg.BaudRate != DefaultBaudRate {
		t.Errorf("Expected default baud rate %d, got %d", DefaultBaudRate, b.cfg.BaudRate)
	}
}
