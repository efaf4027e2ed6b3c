package mqttbridge

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/protocol"
	"github.com/arjy0/lumina/internal/reassembly"
)

func TestNewDefaults(t *testing.T) {
	b := New(Config{
		Broker:   "tcp://localhost:1883",
		DeviceID: "glasses-1",
	}, nil, zap.NewNop())

	if b.cfg.TopicPrefix != DefaultTopicPrefix {
		t.Errorf("Expected default topic prefix %q, got %q", DefaultTopicPrefix, b.cfg.TopicPrefix)
	}
}

func TestNewCustomConfig(t *testing.T) {
	b := New(Config{
		Broker:      "tcp://broker.example.com:1883",
		Username:    "user",
		Password:    "pass",
		TopicPrefix: "custom",
		DeviceID:    "glasses-7",
	}, nil, zap.NewNop())

	if b.cfg.TopicPrefix != "custom" {
		t.Errorf("Expected topic prefix %q, got %q", "custom", b.cfg.TopicPrefix)
	}
	if got := b.channelTopic(protocol.ChannelPhotoControl); got != "custom/glasses-7/photo-ctrl" {
		t.Errorf("Expected topic %q, got %q", "custom/glasses-7/photo-ctrl", got)
	}
}

func TestStartMissingBroker(t *testing.T) {
	b := New(Config{DeviceID: "glasses-1"}, nil, zap.NewNop())
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("Expected error with empty broker")
	}
}

func TestStartMissingDeviceID(t *testing.T) {
	b := New(Config{Broker: "tcp://localhost:1883"}, nil, zap.NewNop())
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("Expected error with empty device id")
	}
}

func TestSendNotConnected(t *testing.T) {
	b := New(Config{
		Broker:   "tcp://localhost:1883",
		DeviceID: "glasses-1",
	}, nil, zap.NewNop())

	if err := b.Send(protocol.ChannelPhotoControl, []byte{0xFF}); err == nil {
		t.Fatal("Expected error when not connected")
	}
}

func TestInboundChannel(t *testing.T) {
	tests := []struct {
		topic  string
		want   protocol.Channel
		wantOK bool
	}{
		{topic: "lumina/glasses-1/photo", want: protocol.ChannelPhoto, wantOK: true},
		{topic: "lumina/glasses-1/audio", want: protocol.ChannelAudio, wantOK: true},
		{topic: "lumina/glasses-1/battery", want: protocol.ChannelBattery, wantOK: true},
		{topic: "lumina/glasses-1/photo-ctrl", wantOK: false},
		{topic: "lumina/glasses-1/audio-ctrl", wantOK: false},
		{topic: "lumina/glasses-1/assistant-audio", wantOK: false},
		{topic: "lumina/glasses-1/unknown", wantOK: false},
		{topic: "no-slashes", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			ch, ok := inboundChannel(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("inboundChannel(%q) ok = %v, want %v", tt.topic, ok, tt.wantOK)
			}
			if ok && ch != tt.want {
				t.Errorf("inboundChannel(%q) = %v, want %v", tt.topic, ch, tt.want)
			}
		})
	}
}

// fakeMessage implements paho.Message for handleMessage tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestHandleMessageDeliversBattery(t *testing.T) {
	var mu sync.Mutex
	var levels []uint8

	sinks := devlink.Sinks{
		Battery: func(_ string, level uint8) {
			mu.Lock()
			defer mu.Unlock()
			levels = append(levels, level)
		},
	}
	d := devlink.NewDispatcher(devlink.Config{}, sinks, zap.NewNop())
	t.Cleanup(d.Close)

	b := New(Config{Broker: "tcp://localhost:1883", DeviceID: "glasses-1"}, d, zap.NewNop())
	if err := d.Attach(b); err != nil {
		t.Fatalf("Failed to attach bridge: %v", err)
	}

	b.handleMessage(nil, &fakeMessage{
		topic:   "lumina/glasses-1/battery",
		payload: []byte(base64.StdEncoding.EncodeToString([]byte{91})),
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(levels)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(levels) != 1 || levels[0] != 91 {
		t.Fatalf("Expected one battery report of 91, got %v", levels)
	}
}

func TestHandleMessageIgnoresControlEcho(t *testing.T) {
	sinks := devlink.Sinks{
		Photo: func(_ string, _ reassembly.Completed) {
			t.Error("Photo sink should not fire for a control echo")
		},
	}
	d := devlink.NewDispatcher(devlink.Config{}, sinks, zap.NewNop())
	t.Cleanup(d.Close)

	b := New(Config{Broker: "tcp://localhost:1883", DeviceID: "glasses-1"}, d, zap.NewNop())
	if err := d.Attach(b); err != nil {
		t.Fatalf("Failed to attach bridge: %v", err)
	}

	b.handleMessage(nil, &fakeMessage{
		topic:   "lumina/glasses-1/photo-ctrl",
		payload: []byte(base64.StdEncoding.EncodeToString([]byte{0xFF})),
	})
	time.Sleep(20 * time.Millisecond)
}
