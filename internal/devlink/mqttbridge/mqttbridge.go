// Package mqttbridge links relayed glasses to the dispatcher over an
// MQTT broker.
//
// A relay near the glasses publishes notifications as base64-encoded
// strings on "{prefix}/{deviceID}/{channel}" topics and subscribes to
// the control topics under the same device. The bridge mirrors that
// layout from the host side: it subscribes to the device's inbound
// channels and publishes control bytes and assistant audio back.
package mqttbridge

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/protocol"
)

// Compile-time interface check.
var _ devlink.Link = (*Bridge)(nil)

// DefaultTopicPrefix is the default MQTT topic prefix for device channels.
const DefaultTopicPrefix = "lumina"

// Config holds the configuration for an MQTT bridge.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "lumina").
	TopicPrefix string
	// DeviceID identifies the glasses behind the relay. The bridge
	// subscribes to "{TopicPrefix}/{DeviceID}/+" and publishes control
	// bytes to the per-channel topics under the same device.
	DeviceID string
}

// Bridge subscribes to a device's notification topics and feeds the
// payloads to the dispatcher. It attaches itself as the device link on
// connect and detaches when the broker connection is lost, so device
// state reflects reachability.
type Bridge struct {
	cfg        Config
	dispatcher *devlink.Dispatcher
	logger     *zap.Logger

	mu        sync.RWMutex
	client    paho.Client
	connected bool
}

// New creates an MQTT bridge. Call Start to connect.
func New(cfg Config, dispatcher *devlink.Dispatcher, logger *zap.Logger) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	return &Bridge{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("bridge", "mqtt"), zap.String("device_id", cfg.DeviceID)),
	}
}

// Start connects to the MQTT broker and begins listening for device
// notifications. The paho client keeps retrying in the background, so a
// broker that is down at startup does not fail the bridge.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if b.cfg.DeviceID == "" {
		return errors.New("device id is required")
	}

	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = "lumina-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(b.onConnected).
		SetConnectionLostHandler(b.onConnectionLost).
		SetReconnectingHandler(b.onReconnecting)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
	}
	if b.cfg.Password != "" {
		opts.SetPassword(b.cfg.Password)
	}
	if b.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	b.mu.Lock()
	b.client = paho.NewClient(opts)
	client := b.client
	b.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	return nil
}

// Stop detaches the bridge and disconnects from the broker.
func (b *Bridge) Stop() error {
	b.dispatcher.Detach(b)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		b.client.Disconnect(1000)
		b.connected = false
	}
	return nil
}

// IsConnected returns true while the broker connection is up.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected && b.client != nil && b.client.IsConnected()
}

// DeviceID returns the identity of the glasses behind the relay.
func (b *Bridge) DeviceID() string {
	return b.cfg.DeviceID
}

// Kind identifies the transport for status reporting.
func (b *Bridge) Kind() string {
	return "mqtt"
}

// Send publishes a channel payload to the device's topic for that
// channel, base64-encoded the way the relay expects.
func (b *Bridge) Send(ch protocol.Channel, payload []byte) error {
	if !b.IsConnected() {
		return errors.New("mqtt bridge not connected")
	}

	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	topic := b.channelTopic(ch)
	encoded := base64.StdEncoding.EncodeToString(payload)

	token := client.Publish(topic, 0, false, encoded)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing to MQTT")
	}
	return token.Error()
}

func (b *Bridge) channelTopic(ch protocol.Channel) string {
	return b.cfg.TopicPrefix + "/" + b.cfg.DeviceID + "/" + ch.String()
}

func (b *Bridge) subscribe() {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	topic := b.cfg.TopicPrefix + "/" + b.cfg.DeviceID + "/+"
	client.Subscribe(topic, 0, b.handleMessage)
	b.logger.Debug("subscribed to device topics", zap.String("topic", topic))
}

func (b *Bridge) handleMessage(_ paho.Client, message paho.Message) {
	ch, ok := inboundChannel(message.Topic())
	if !ok {
		// Our own control publishes echo back through the wildcard
		// subscription; skip anything that is not device-to-host.
		return
	}

	payload, err := base64.StdEncoding.DecodeString(string(message.Payload()))
	if err != nil {
		b.logger.Debug("failed to decode base64 payload",
			zap.String("topic", message.Topic()),
			zap.Error(err),
		)
		return
	}

	if err := b.dispatcher.HandleNotification(b.cfg.DeviceID, ch, payload); err != nil {
		b.logger.Warn("dispatching notification failed",
			zap.Stringer("channel", ch),
			zap.Error(err),
		)
	}
}

// inboundChannel maps the last topic segment to a device-to-host
// channel. Control and assistant topics return false.
func inboundChannel(topic string) (protocol.Channel, bool) {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 {
		return 0, false
	}
	switch topic[idx+1:] {
	case protocol.ChannelPhoto.String():
		return protocol.ChannelPhoto, true
	case protocol.ChannelAudio.String():
		return protocol.ChannelAudio, true
	case protocol.ChannelBattery.String():
		return protocol.ChannelBattery, true
	}
	return 0, false
}

func (b *Bridge) onConnected(_ paho.Client) {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()

	b.subscribe()

	if err := b.dispatcher.Attach(b); err != nil {
		b.logger.Error("attaching to dispatcher failed", zap.Error(err))
		return
	}

	b.logger.Info("connected to MQTT broker", zap.String("broker", b.cfg.Broker))
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()

	b.logger.Error("MQTT connection lost", zap.Error(err))

	b.dispatcher.Detach(b)
}

func (b *Bridge) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	b.logger.Info("reconnecting to MQTT broker")
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	bs := make([]byte, n)
	for i := range bs {
		bs[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(bs)
}
