// Package config gathers the server's environment configuration into
// one struct so main wires components from a single place. Values come
// from the environment, optionally seeded from a .env file. Invalid
// values fall back to their defaults and are reported as warnings, not
// failures.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the development setup.
const (
	DefaultPort         = "8080"
	DefaultDeviceSerial = "LUMINA-DEV-0001"
	DefaultDeviceSecret = "lumina-dev-secret"
)

// Serial configures the optional UART debug bridge. Empty Port disables
// it.
type Serial struct {
	Port     string
	BaudRate int
	DeviceID string
}

// MQTT configures the optional MQTT bridge for WiFi firmware builds.
// Empty Broker disables it.
type MQTT struct {
	Broker      string
	Username    string
	Password    string
	UseTLS      bool
	TopicPrefix string
	DeviceID    string
}

// Config is the server's runtime configuration.
type Config struct {
	Port  string
	Debug bool

	// MongoURI selects MongoDB persistence; empty means in-memory
	// repositories.
	MongoURI string

	// DeviceSerial and DeviceSecret provision the development device in
	// the in-memory store so a simulator can authenticate immediately.
	DeviceSerial string
	DeviceSecret string

	// Provider credentials. Empty selects the mock implementation.
	GeminiAPIKey      string
	GoogleCredentials string
	ElevenLabsAPIKey  string

	// Reassembly tuning. Zero values select the package defaults.
	StrictStart   bool
	IdleTimeout   time.Duration
	MinImageBytes int
	QueueSize     int

	Serial Serial
	MQTT   MQTT

	// Warnings lists values that were rejected and replaced by their
	// defaults. Main logs them once the logger exists.
	Warnings []string
}

// Load reads the environment, seeded from an optional .env file, and
// returns the assembled configuration.
func Load() Config {
	// .env is optional, real deployments configure the environment
	// directly.
	_ = godotenv.Load()

	c := Config{
		Port:              getString("PORT", DefaultPort),
		Debug:             os.Getenv("LUMINA_DEBUG") != "",
		MongoURI:          os.Getenv("MONGODB_URI"),
		DeviceSerial:      getString("LUMINA_DEVICE_SERIAL", DefaultDeviceSerial),
		DeviceSecret:      getString("LUMINA_DEVICE_SECRET", DefaultDeviceSecret),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GoogleCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		ElevenLabsAPIKey:  os.Getenv("ELEVEN_LABS_API_KEY"),
		StrictStart:       os.Getenv("LUMINA_STRICT_START") == "true",
	}

	c.IdleTimeout = time.Duration(c.positiveInt("LUMINA_IDLE_TIMEOUT_MS")) * time.Millisecond
	c.MinImageBytes = c.positiveInt("LUMINA_MIN_IMAGE_BYTES")
	c.QueueSize = c.positiveInt("LUMINA_QUEUE_SIZE")

	c.Serial = Serial{
		Port:     os.Getenv("SERIAL_PORT"),
		BaudRate: c.positiveInt("SERIAL_BAUD"),
		DeviceID: getString("SERIAL_DEVICE_ID", "glasses-serial"),
	}
	c.MQTT = MQTT{
		Broker:      os.Getenv("MQTT_BROKER"),
		Username:    os.Getenv("MQTT_USERNAME"),
		Password:    os.Getenv("MQTT_PASSWORD"),
		UseTLS:      os.Getenv("MQTT_TLS") == "true",
		TopicPrefix: os.Getenv("MQTT_TOPIC_PREFIX"),
		DeviceID:    getString("MQTT_DEVICE_ID", "glasses-mqtt"),
	}

	return c
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// positiveInt parses key as a positive integer. Zero is returned for
// unset keys and, with a warning, for values that do not parse; the
// consuming package treats zero as "use the default".
func (c *Config) positiveInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.Warnings = append(c.Warnings,
			fmt.Sprintf("%s=%q is not a positive integer, using default", key, v))
		return 0
	}
	return n
}
