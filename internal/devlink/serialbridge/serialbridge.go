// Package serialbridge links a relay dongle to the dispatcher over a
// serial port.
//
// A dongle sits next to the glasses, subscribes to their notifications
// over BLE, and forwards each one across UART wrapped in a checksummed
// frame. The bridge reassembles frames from the raw byte stream and
// hands the payloads to the dispatcher; control bytes travel the other
// way inside the same framing.
package serialbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/protocol"
)

// Compile-time interface check.
var _ devlink.Link = (*Bridge)(nil)

const (
	// DefaultBaudRate matches the dongle firmware's UART speed.
	DefaultBaudRate = 921600

	// readBufSize is the size of the serial read buffer.
	readBufSize = 1024
)

// Config holds the configuration for a serial bridge.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 921600.
	BaudRate int
	// DeviceID identifies the glasses on the far side of the dongle.
	DeviceID string
}

// Bridge reads framed notifications from a serial port and feeds them
// to the dispatcher. It also acts as the device link for control
// writes, so the dispatcher can push command bytes back through the
// dongle.
type Bridge struct {
	cfg        Config
	dispatcher *devlink.Dispatcher
	logger     *zap.Logger

	mu        sync.RWMutex
	port      serial.Port
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a serial bridge. Call Start to open the port.
func New(cfg Config, dispatcher *devlink.Dispatcher, logger *zap.Logger) *Bridge {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	return &Bridge{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("bridge", "serial"), zap.String("device_id", cfg.DeviceID)),
	}
}

// Start opens the serial port, attaches the bridge to the dispatcher,
// and begins reading frames.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Port == "" {
		return errors.New("serial port is required")
	}
	if b.cfg.DeviceID == "" {
		return errors.New("device id is required")
	}

	mode := &serial.Mode{
		BaudRate: b.cfg.BaudRate,
	}

	port, err := serial.Open(b.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	b.mu.Lock()
	b.port = port
	b.connected = true
	b.done = make(chan struct{})
	b.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	if err := b.dispatcher.Attach(b); err != nil {
		cancel()
		port.Close()
		return fmt.Errorf("attaching to dispatcher: %w", err)
	}

	go b.readLoop(readCtx)

	b.logger.Info("serial bridge connected",
		zap.String("port", b.cfg.Port),
		zap.Int("baud", b.cfg.BaudRate),
	)

	return nil
}

// Stop detaches the bridge, closes the serial port, and waits for the
// read loop to finish.
func (b *Bridge) Stop() error {
	b.dispatcher.Detach(b)

	if b.cancel != nil {
		b.cancel()
	}

	b.mu.Lock()
	b.connected = false
	port := b.port
	b.port = nil
	done := b.done
	b.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	if done != nil {
		<-done
	}

	return err
}

// IsConnected returns true while the serial port is open.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// DeviceID returns the identity of the glasses behind the dongle.
func (b *Bridge) DeviceID() string {
	return b.cfg.DeviceID
}

// Kind identifies the transport for status reporting.
func (b *Bridge) Kind() string {
	return "serial"
}

// Send frames a channel payload and writes it to the serial port. The
// dongle unwraps the frame and relays the payload to the glasses.
func (b *Bridge) Send(ch protocol.Channel, payload []byte) error {
	b.mu.RLock()
	port := b.port
	connected := b.connected
	b.mu.RUnlock()

	if !connected || port == nil {
		return errors.New("serial bridge not connected")
	}

	frame, err := EncodeFrame(ch, payload)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}

	return nil
}

// readLoop continuously reads from the serial port and assembles frames.
func (b *Bridge) readLoop(ctx context.Context) {
	defer close(b.done)

	buf := make([]byte, readBufSize)
	var assemblyBuf []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.mu.RLock()
		port := b.port
		b.mu.RUnlock()
		if port == nil {
			return
		}

		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return // clean shutdown
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				b.handleDisconnect(err)
				return
			}
			b.logger.Error("serial read error", zap.Error(err))
			b.handleDisconnect(err)
			return
		}

		if n == 0 {
			continue
		}

		assemblyBuf = append(assemblyBuf, buf[:n]...)
		assemblyBuf = b.processFrames(assemblyBuf)
	}
}

// processFrames extracts complete frames from the buffer and dispatches
// their payloads. Returns any remaining bytes that don't form a
// complete frame yet.
func (b *Bridge) processFrames(data []byte) []byte {
	for len(data) >= MinFrameSize {
		frame, remaining, err := DecodeFrame(data)
		if err != nil {
			if errors.Is(err, ErrIncompleteFrame) {
				return data // wait for more data
			}
			// Bad frame, resync on the next magic bytes.
			if idx := findMagic(data[1:]); idx >= 0 {
				data = data[1+idx:]
				continue
			}
			return nil
		}

		data = remaining

		if !frame.Channel.Inbound() {
			b.logger.Debug("ignoring non-inbound frame",
				zap.Stringer("channel", frame.Channel),
			)
			continue
		}

		if err := b.dispatcher.HandleNotification(b.cfg.DeviceID, frame.Channel, frame.Payload); err != nil {
			b.logger.Warn("dispatching notification failed",
				zap.Stringer("channel", frame.Channel),
				zap.Error(err),
			)
		}
	}

	return data
}

// findMagic searches for the frame magic bytes in data.
// Returns the index of the first byte of the magic, or -1 if not found.
func findMagic(data []byte) int {
	magic := [2]byte{byte(FrameMagic >> 8), byte(FrameMagic & 0xFF)}
	for i := 0; i+1 < len(data); i++ {
		if data[i] == magic[0] && data[i+1] == magic[1] {
			return i
		}
	}
	return -1
}

func (b *Bridge) handleDisconnect(err error) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("serial bridge disconnected", zap.Error(err))
	}

	b.dispatcher.Detach(b)
}
