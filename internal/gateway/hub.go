// Package gateway accepts WebSocket connections from relays that sit
// between the glasses and the server.
//
// A relay (phone app or browser with Web Bluetooth) holds the BLE
// session and forwards every GATT notification as a binary message of
// the form [channel byte][payload]. Control bytes and assistant audio
// flow back to the relay the same way. JSON text messages carry
// host-to-relay status events such as speaking_start.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Notifications are at most
	// a channel byte plus 202 payload bytes; anything bigger is a
	// misbehaving relay.
	maxMessageSize = 4096
)

var (
	ErrNotConnected   = errors.New("device not connected")
	ErrSendBufferFull = errors.New("send buffer full")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WriteData is one outbound websocket message.
type WriteData struct {
	// Type is the websocket message type, either
	// websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Hub maintains the set of connected relays and binds each one to the
// dispatcher as the device's link.
type Hub struct {
	// Registered clients keyed by device ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map.
	mu sync.RWMutex

	dispatcher *devlink.Dispatcher
	logger     *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(dispatcher *devlink.Dispatcher, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.deviceID]; ok && old != client {
				// A reconnect replaces the previous relay.
				old.closeSend()
			}
			h.clients[client.deviceID] = client
			h.mu.Unlock()

			if err := h.dispatcher.Attach(client); err != nil {
				h.logger.Warn("Failed to attach client link",
					zap.String("deviceID", client.deviceID),
					zap.Error(err))
			}
			h.logger.Info("Client registered", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.deviceID]; ok && current == client {
				delete(h.clients, client.deviceID)
			}
			h.mu.Unlock()

			client.closeSend()
			h.dispatcher.Detach(client)
			h.logger.Info("Client unregistered", zap.String("deviceID", client.deviceID))
		}
	}
}

// SendEvent marshals an event and queues it as a JSON text message for
// the device's relay.
func (h *Hub) SendEvent(deviceID string, event interface{}) error {
	h.mu.RLock()
	client, ok := h.clients[deviceID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return client.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// Connected reports whether a relay currently serves the device.
func (h *Hub) Connected(deviceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[deviceID]
	return ok
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Guards send against enqueue-after-close.
	sendMu     sync.RWMutex
	sendClosed bool

	// Device ID for this client.
	deviceID string

	logger *zap.Logger
}

// Compile-time interface check.
var _ devlink.Link = (*Client)(nil)

// DeviceID returns the authenticated device identity for this relay.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Kind identifies the transport for status reporting.
func (c *Client) Kind() string {
	return "websocket"
}

// Send wraps a channel payload in a binary message for the relay to
// forward over BLE.
func (c *Client) Send(ch protocol.Channel, payload []byte) error {
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(ch)
	copy(frame[1:], payload)
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: frame})
}

func (c *Client) enqueue(data WriteData) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return ErrNotConnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// HandleWebSocketWithAuth upgrades an authenticated request and starts
// the client pumps. The caller has already validated the device JWT.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the dispatcher.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.processBinaryFrame(message)
		case websocket.TextMessage:
			// Relays only forward device notifications, which are binary.
			c.logger.Warn("Unexpected text message from relay",
				zap.String("deviceID", c.deviceID))
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processBinaryFrame unwraps a relayed notification and hands it to the
// dispatcher.
func (c *Client) processBinaryFrame(data []byte) {
	if len(data) == 0 {
		c.logger.Warn("Received empty binary frame", zap.String("deviceID", c.deviceID))
		return
	}

	ch := protocol.Channel(data[0])
	if !ch.Inbound() {
		c.logger.Warn("Relay sent non-inbound channel",
			zap.String("deviceID", c.deviceID),
			zap.Stringer("channel", ch))
		return
	}

	if err := c.hub.dispatcher.HandleNotification(c.deviceID, ch, data[1:]); err != nil {
		c.logger.Error("Failed to dispatch notification",
			zap.String("deviceID", c.deviceID),
			zap.Stringer("channel", ch),
			zap.Error(err))
	}
}
