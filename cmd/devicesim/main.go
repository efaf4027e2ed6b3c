// Command devicesim plays the part of a relay holding a BLE session to
// the glasses: it authenticates, opens the WebSocket, streams chunked
// photo and audio notifications with firmware pacing, and prints
// everything the host pushes back. Flags inject the failure modes the
// radio produces in the field: dropped chunks, duplicated chunks, and a
// transmission that never sends its terminator.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arjy0/lumina/internal/protocol"
)

var (
	server    = flag.String("server", "localhost:8080", "host address")
	serialNum = flag.String("serial", "LUMINA-DEV-0001", "device serial number")
	secretKey = flag.String("secret", "lumina-dev-secret", "device secret key")
	photoPath = flag.String("photo", "", "JPEG file to stream; a built-in test image is used when empty")
	audioPath = flag.String("audio", "", "raw 16 kHz mono PCM file to stream; a built-in tone is used when empty")
	battery   = flag.Int("battery", 88, "battery percentage to report")
	pace      = flag.Duration("pace", 10*time.Millisecond, "delay between notifications, matching firmware pacing")
	dropEnd   = flag.Bool("drop-terminator", false, "omit the FF FF terminator so the host watchdog finalizes the photo")
	dropChunk = flag.Int("drop-chunk", -1, "0-based chunk index to drop, simulating a lost notification")
	dupChunk  = flag.Int("duplicate-chunk", -1, "0-based chunk index to send twice")
	linger    = flag.Duration("linger", 8*time.Second, "how long to wait for host events after streaming")
)

type deviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

type deviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

func main() {
	flag.Parse()

	token, deviceID, err := authenticate()
	if err != nil {
		log.Fatal("Failed to authenticate device: ", err)
	}
	log.Printf("Authenticated as device %s", deviceID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go readLoop(c, done)

	sendNotification(c, protocol.ChannelBattery, []byte{byte(*battery)})
	log.Printf("🔋 Reported battery %d%%", *battery)

	photo := loadOrDefault(*photoPath, builtinJPEG)
	log.Printf("📤 Streaming photo (%d bytes)", len(photo))
	streamChunks(c, protocol.ChannelPhoto, photo)

	clip := loadOrDefault(*audioPath, builtinPCM)
	log.Printf("📤 Streaming audio clip (%d bytes, %.1fs)", len(clip), float64(len(clip))/2/16000)
	streamChunks(c, protocol.ChannelAudio, clip)

	log.Printf("✅ Streaming done, listening for host events for %s", *linger)

	select {
	case <-done:
		return
	case <-time.After(*linger):
	case <-interrupt:
		log.Println("interrupt")
	}

	// Cleanly close the connection by sending a close message and then
	// waiting (with timeout) for the server to close the connection.
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func authenticate() (string, string, error) {
	authReq := deviceAuthRequest{
		SerialNumber: *serialNum,
		SecretKey:    *secretKey,
	}

	jsonData, err := json.Marshal(authReq)
	if err != nil {
		return "", "", err
	}

	resp, err := http.Post("http://"+*server+"/api/v1/device/auth", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("authentication failed: %s", string(body))
	}

	var authResp deviceAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", "", err
	}

	return authResp.Token, authResp.DeviceID, nil
}

// sendNotification wraps a device notification in the relay's binary
// frame: one channel byte, then the payload exactly as the firmware
// notified it.
func sendNotification(c *websocket.Conn, ch protocol.Channel, payload []byte) {
	frame := append([]byte{byte(ch)}, payload...)
	if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		log.Fatal("write: ", err)
	}
}

// streamChunks sends data the way the firmware does: 200-byte payloads
// behind a little-endian counter, one notification per pacing interval,
// then the FF FF terminator.
func streamChunks(c *websocket.Conn, ch protocol.Channel, data []byte) {
	total := (len(data) + protocol.MaxChunkPayload - 1) / protocol.MaxChunkPayload

	for i := 0; i < total; i++ {
		start := i * protocol.MaxChunkPayload
		end := start + protocol.MaxChunkPayload
		if end > len(data) {
			end = len(data)
		}
		chunk := protocol.EncodeChunk(uint16(i), data[start:end])

		if i == *dropChunk {
			log.Printf("💥 Dropping chunk %d/%d", i, total)
			continue
		}

		sendNotification(c, ch, chunk)
		if i == *dupChunk {
			log.Printf("💥 Duplicating chunk %d/%d", i, total)
			sendNotification(c, ch, chunk)
		}
		time.Sleep(*pace)
	}

	if *dropEnd {
		log.Printf("💥 Skipping terminator after %d chunks", total)
		return
	}
	sendNotification(c, ch, protocol.EndSentinel())
}

func loadOrDefault(path string, builtin func() []byte) []byte {
	if path == "" {
		return builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return data
}

// readLoop prints host events and counts assistant audio, mirroring
// what real relay firmware would route to the speaker.
func readLoop(c *websocket.Conn, done chan struct{}) {
	defer close(done)

	var speechBytes, speechChunks int
	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var event struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				SessionID   string `json:"session_id"`
				CaptureID   string `json:"capture_id"`
				Description string `json:"description"`
				Message     string `json:"message"`
			}
			if err := json.Unmarshal(message, &event); err != nil {
				log.Printf("Received unparseable event: %s", string(message))
				continue
			}

			switch event.Type {
			case "speaking_start":
				speechBytes, speechChunks = 0, 0
				log.Printf("🗣️  Assistant speaking (session %s): %q", event.SessionID, event.Text)
			case "speaking_end":
				log.Printf("🗣️  Assistant done: %d chunks, %d bytes of speech", speechChunks, speechBytes)
			case "capture_described":
				log.Printf("🖼️  Capture %s described: %q", event.CaptureID, event.Description)
			case "error":
				log.Printf("⚠️  Host error: %s", event.Message)
			default:
				log.Printf("Received event: %s", string(message))
			}

		case websocket.BinaryMessage:
			if len(message) == 0 {
				continue
			}
			ch := protocol.Channel(message[0])
			payload := message[1:]

			switch ch {
			case protocol.ChannelAssistantAudio:
				speechChunks++
				speechBytes += len(payload)
			case protocol.ChannelPhotoControl:
				if len(payload) == 1 {
					log.Printf("📷 Photo control: %s", describePhotoControl(int8(payload[0])))
				}
			case protocol.ChannelAudioControl:
				if len(payload) == 1 {
					log.Printf("🎙️  Audio control: %s", describeAudioControl(int8(payload[0])))
				}
			default:
				log.Printf("Received %d bytes on channel %s", len(payload), ch)
			}
		}
	}
}

func describePhotoControl(v int8) string {
	switch {
	case v == protocol.PhotoSingleShot:
		return "single shot"
	case v == protocol.PhotoStop:
		return "stop"
	default:
		return fmt.Sprintf("interval every %ds", v)
	}
}

func describeAudioControl(v int8) string {
	switch int(v) {
	case protocol.AudioStop:
		return "stop"
	case protocol.AudioStartVoice:
		return "start voice activation"
	case protocol.AudioStartCommand:
		return "start command recording"
	default:
		return fmt.Sprintf("unknown (%d)", v)
	}
}

// builtinJPEG builds a small structurally complete baseline JPEG so the
// host's validator sees every segment it looks for.
func builtinJPEG() []byte {
	segment := func(marker byte, payload []byte) []byte {
		out := []byte{0xFF, marker, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
		return append(out, payload...)
	}

	img := []byte{0xFF, 0xD8}
	jfif := append([]byte("JFIF\x00"), 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00)
	img = append(img, segment(0xE0, jfif)...)
	img = append(img, segment(0xDB, append([]byte{0x00}, make([]byte, 64)...))...)
	img = append(img, segment(0xC4, append([]byte{0x00}, make([]byte, 16)...))...)
	img = append(img, segment(0xC0, []byte{0x08, 0x00, 0x08, 0x00, 0x08, 0x01, 0x01, 0x11, 0x00})...)
	img = append(img, segment(0xDA, []byte{0x01, 0x01, 0x00, 0x00, 0x3F, 0x00})...)
	img = append(img, bytes.Repeat([]byte{0x55}, 1200)...)
	return append(img, 0xFF, 0xD9)
}

// builtinPCM generates one second of a quiet 440 Hz tone as 16-bit
// little-endian mono samples at 16 kHz.
func builtinPCM() []byte {
	const samples = 16000
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(3000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
