// Package devlink connects device transports to the reassembly core.
//
// Each attached device gets a worker goroutine owning one photo and one
// audio reassembler. Links enqueue raw notifications; the worker feeds
// them through the reassemblers and hands finished photos and clips to
// the configured sinks one at a time, so downstream consumers never see
// two completions for the same device concurrently.
package devlink

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/protocol"
	"github.com/arjy0/lumina/internal/reassembly"
)

// DefaultQueueSize bounds the per-device notification queue. At the
// firmware's pacing (one ~200 byte frame every 10 ms) 64 slots absorb
// more than half a second of backlog.
const DefaultQueueSize = 64

var (
	ErrUnknownDevice = errors.New("device has no attached link")
	ErrNoLink        = errors.New("no active link for device")
)

// Config tunes the dispatcher.
type Config struct {
	// Photo configures photo reassembly. Zero value selects defaults.
	Photo reassembly.Config
	// Audio configures audio reassembly. Zero value selects defaults.
	Audio reassembly.Config
	// QueueSize bounds each device's notification queue.
	QueueSize int
}

// Dispatcher routes notifications from links to per-device workers and
// control commands from the API back out through the links.
type Dispatcher struct {
	mu      sync.RWMutex
	workers map[string]*deviceWorker
	closed  bool

	cfg    Config
	sinks  Sinks
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher delivering to the given sinks.
func NewDispatcher(cfg Config, sinks Sinks, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Dispatcher{
		workers: make(map[string]*deviceWorker),
		cfg:     cfg,
		sinks:   sinks,
		logger:  logger,
	}
}

// Attach registers a link as the device's active transport, creating
// the device worker on first sight. A second link for the same device
// replaces the first; reassembly state survives the swap.
func (d *Dispatcher) Attach(link Link) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("dispatcher is closed")
	}

	w, ok := d.workers[link.DeviceID()]
	if !ok {
		w = d.newWorker(link.DeviceID())
		d.workers[link.DeviceID()] = w
		w.wg.Add(1)
		go w.run()
	}
	w.setLink(link)

	d.logger.Info("Device link attached",
		zap.String("deviceID", link.DeviceID()),
		zap.String("kind", link.Kind()))
	return nil
}

// Detach removes a link if it is still the device's active one. The
// worker and its buffers stay, waiting for the device to reconnect.
func (d *Dispatcher) Detach(link Link) {
	d.mu.RLock()
	w, ok := d.workers[link.DeviceID()]
	d.mu.RUnlock()
	if !ok {
		return
	}

	if w.clearLink(link) {
		d.logger.Info("Device link detached",
			zap.String("deviceID", link.DeviceID()),
			zap.String("kind", link.Kind()))
	}
}

// HandleNotification enqueues one raw notification for processing. The
// payload must not be modified by the caller afterwards. A full queue
// drops the notification, mirroring what a saturated radio link does.
func (d *Dispatcher) HandleNotification(deviceID string, ch protocol.Channel, payload []byte) error {
	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownDevice
	}

	select {
	case w.notifications <- notification{ch: ch, payload: payload}:
		return nil
	default:
		d.logger.Warn("Notification queue full, dropping",
			zap.String("deviceID", deviceID),
			zap.String("channel", ch.String()),
			zap.Int("size", len(payload)))
		return nil
	}
}

// CapturePhoto asks the device for a single photo.
func (d *Dispatcher) CapturePhoto(deviceID string) error {
	return d.sendPhotoControl(deviceID, protocol.PhotoSingleShot)
}

// StartPhotoInterval asks the device to shoot every `seconds` seconds.
func (d *Dispatcher) StartPhotoInterval(deviceID string, seconds int) error {
	if err := protocol.ValidateInterval(seconds); err != nil {
		return err
	}
	return d.sendPhotoControl(deviceID, seconds)
}

// StopPhoto tells the device to stop capturing. The local photo buffer
// resets even when the write fails, so host state cannot stay ahead of
// a device that never received the command.
func (d *Dispatcher) StopPhoto(deviceID string) error {
	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownDevice
	}

	err := w.send(protocol.ChannelPhotoControl, mustEncodePhotoControl(protocol.PhotoStop))
	w.photo.Reset()
	return err
}

// StartAudio begins an audio capture session in the given mode.
func (d *Dispatcher) StartAudio(deviceID string, mode int) error {
	payload, err := protocol.EncodeAudioControl(mode)
	if err != nil {
		return err
	}

	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownDevice
	}
	return w.send(protocol.ChannelAudioControl, payload)
}

// StopAudio ends the audio session and drops any partial clip, matching
// the device's own reset on stop.
func (d *Dispatcher) StopAudio(deviceID string) error {
	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownDevice
	}

	err := w.send(protocol.ChannelAudioControl, mustEncodeAudioControl(protocol.AudioStop))
	w.audio.Reset()
	return err
}

// SendAssistantAudio pushes one chunk of synthesized speech to the
// device for playback.
func (d *Dispatcher) SendAssistantAudio(deviceID string, chunk []byte) error {
	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownDevice
	}
	return w.send(protocol.ChannelAssistantAudio, chunk)
}

// BatteryLevel returns the device's last reported battery percentage,
// or false when no battery notification has arrived yet.
func (d *Dispatcher) BatteryLevel(deviceID string) (int, bool) {
	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return 0, false
	}
	level := w.battery.Load()
	if level < 0 {
		return 0, false
	}
	return int(level), true
}

// Devices snapshots every known device for the API.
func (d *Dispatcher) Devices() []DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	states := make([]DeviceState, 0, len(d.workers))
	for _, w := range d.workers {
		states = append(states, w.state())
	}
	return states
}

// Close stops every worker and cancels outstanding watchdogs. Buffered
// partial transmissions are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	workers := make([]*deviceWorker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
}

func (d *Dispatcher) sendPhotoControl(deviceID string, value int) error {
	payload, err := protocol.EncodePhotoControl(value)
	if err != nil {
		return err
	}

	d.mu.RLock()
	w, ok := d.workers[deviceID]
	d.mu.RUnlock()
	if !ok {
		return ErrUnknownDevice
	}
	return w.send(protocol.ChannelPhotoControl, payload)
}

func mustEncodePhotoControl(value int) []byte {
	payload, err := protocol.EncodePhotoControl(value)
	if err != nil {
		panic(fmt.Sprintf("photo control %d: %v", value, err))
	}
	return payload
}

func mustEncodeAudioControl(value int) []byte {
	payload, err := protocol.EncodeAudioControl(value)
	if err != nil {
		panic(fmt.Sprintf("audio control %d: %v", value, err))
	}
	return payload
}

type notification struct {
	ch      protocol.Channel
	payload []byte
}

type completion struct {
	audio bool
	done  reassembly.Completed
}

// deviceWorker owns all mutable state for one device. Its run loop is
// the only goroutine that touches the reassemblers and invokes sinks,
// except for watchdog callbacks, which enter through the completions
// channel and are therefore serialized the same way.
type deviceWorker struct {
	deviceID string

	notifications chan notification
	// completions has room for every completion that can be in flight
	// at once: one sentinel-driven plus one watchdog per reassembler.
	completions chan completion
	quit        chan struct{}
	wg          sync.WaitGroup

	photo *reassembly.PhotoReassembler
	audio *reassembly.AudioReassembler

	linkMu sync.RWMutex
	link   Link

	battery    atomic.Int32 // -1 until first report
	violations atomic.Uint64
	discards   atomic.Uint64

	sinks  Sinks
	logger *zap.Logger
}

func (d *Dispatcher) newWorker(deviceID string) *deviceWorker {
	log := d.logger.With(zap.String("deviceID", deviceID))

	w := &deviceWorker{
		deviceID:      deviceID,
		notifications: make(chan notification, d.cfg.QueueSize),
		completions:   make(chan completion, 8),
		quit:          make(chan struct{}),
		photo:         reassembly.NewPhotoReassembler(d.cfg.Photo, log.Named("photo")),
		audio:         reassembly.NewAudioReassembler(d.cfg.Audio, log.Named("audio")),
		sinks:         d.sinks,
		logger:        log,
	}
	w.battery.Store(-1)

	// The select keeps a watchdog callback from blocking forever when
	// the worker is already shutting down.
	w.photo.SetCompletionHandler(func(done reassembly.Completed) {
		select {
		case w.completions <- completion{audio: false, done: done}:
		case <-w.quit:
		}
	})
	w.audio.SetCompletionHandler(func(done reassembly.Completed) {
		select {
		case w.completions <- completion{audio: true, done: done}:
		case <-w.quit:
		}
	})
	w.photo.SetEventHandler(w.recordEvent)
	w.audio.SetEventHandler(w.recordEvent)

	return w
}

func (w *deviceWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case n := <-w.notifications:
			w.handleNotification(n)
		case c := <-w.completions:
			w.dispatchCompletion(c)
		case <-w.quit:
			// Drain completions produced by reassembler teardown
			for {
				select {
				case c := <-w.completions:
					w.dispatchCompletion(c)
				default:
					return
				}
			}
		}
	}
}

func (w *deviceWorker) handleNotification(n notification) {
	switch n.ch {
	case protocol.ChannelPhoto:
		w.photo.HandleNotification(n.payload)
	case protocol.ChannelAudio:
		w.audio.HandleNotification(n.payload)
	case protocol.ChannelBattery:
		if len(n.payload) == 0 {
			return
		}
		level := int32(n.payload[0])
		w.battery.Store(level)
		if w.sinks.Battery != nil {
			w.sinks.Battery(w.deviceID, n.payload[0])
		}
	default:
		w.logger.Warn("Notification on unexpected channel",
			zap.String("channel", n.ch.String()))
	}
}

func (w *deviceWorker) dispatchCompletion(c completion) {
	if c.audio {
		if w.sinks.Audio != nil {
			w.sinks.Audio(w.deviceID, c.done)
		}
		return
	}
	if w.sinks.Photo != nil {
		w.sinks.Photo(w.deviceID, c.done)
	}
}

func (w *deviceWorker) recordEvent(ev reassembly.Event) {
	switch ev.Kind {
	case reassembly.EventSequenceViolation:
		w.violations.Add(1)
	case reassembly.EventWatchdogDiscard:
		w.discards.Add(1)
	}
}

func (w *deviceWorker) setLink(link Link) {
	w.linkMu.Lock()
	w.link = link
	w.linkMu.Unlock()
}

// clearLink removes the link only if it is still the active one, so a
// stale detach from a replaced connection cannot sever the new link.
func (w *deviceWorker) clearLink(link Link) bool {
	w.linkMu.Lock()
	defer w.linkMu.Unlock()
	if w.link != link {
		return false
	}
	w.link = nil
	return true
}

func (w *deviceWorker) send(ch protocol.Channel, payload []byte) error {
	w.linkMu.RLock()
	link := w.link
	w.linkMu.RUnlock()
	if link == nil {
		return ErrNoLink
	}
	return link.Send(ch, payload)
}

func (w *deviceWorker) state() DeviceState {
	w.linkMu.RLock()
	kind := ""
	if w.link != nil {
		kind = w.link.Kind()
	}
	w.linkMu.RUnlock()

	return DeviceState{
		DeviceID:           w.deviceID,
		LinkKind:           kind,
		BatteryLevel:       int(w.battery.Load()),
		PendingPhoto:       w.photo.Pending(),
		PendingAudio:       w.audio.Pending(),
		SequenceViolations: w.violations.Load(),
		WatchdogDiscards:   w.discards.Load(),
	}
}

func (w *deviceWorker) stop() {
	w.photo.Close()
	w.audio.Close()
	close(w.quit)
	w.wg.Wait()
}
