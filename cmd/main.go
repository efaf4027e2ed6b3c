package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/arjy0/lumina/adapters"
	"github.com/arjy0/lumina/adapters/llm"
	mongodb "github.com/arjy0/lumina/adapters/mongo"
	"github.com/arjy0/lumina/adapters/stt"
	"github.com/arjy0/lumina/adapters/tts"
	"github.com/arjy0/lumina/adapters/vision"
	"github.com/arjy0/lumina/domain/entities"
	"github.com/arjy0/lumina/domain/repositories"
	"github.com/arjy0/lumina/internal/api"
	"github.com/arjy0/lumina/internal/config"
	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/devlink/mqttbridge"
	"github.com/arjy0/lumina/internal/devlink/serialbridge"
	"github.com/arjy0/lumina/internal/gateway"
	"github.com/arjy0/lumina/internal/reassembly"
	"github.com/arjy0/lumina/usecase"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	for _, w := range cfg.Warnings {
		logger.Warn("Configuration problem", zap.String("detail", w))
	}

	// Storage: MongoDB when configured, in-memory otherwise
	devices, captures, sessions, closeStorage := buildStorage(cfg, logger)
	defer closeStorage()

	// AI providers, each falling back to its mock without credentials
	speechToText := buildSpeechToText(cfg, logger)
	languageModel := buildLanguageModel(cfg, logger)
	textToSpeech := buildTextToSpeech(cfg, logger)
	visionModel := buildVision(cfg, logger)

	// The services need the dispatcher to push assistant audio and the
	// dispatcher needs the services as sinks, so the sinks close over
	// variables bound after construction.
	var captureService *usecase.CaptureService
	var voiceService *usecase.VoiceService

	dispatcher := devlink.NewDispatcher(devlink.Config{
		Photo: reassembly.Config{
			StrictStart:      cfg.StrictStart,
			IdleTimeout:      cfg.IdleTimeout,
			MinFinalizeBytes: cfg.MinImageBytes,
		},
		Audio: reassembly.Config{
			IdleTimeout: cfg.IdleTimeout,
		},
		QueueSize: cfg.QueueSize,
	}, devlink.Sinks{
		Photo: func(deviceID string, done reassembly.Completed) {
			captureService.HandleCompletedPhoto(deviceID, done)
		},
		Audio: func(deviceID string, done reassembly.Completed) {
			voiceService.HandleCompletedClip(deviceID, done)
		},
		Battery: func(deviceID string, level uint8) {
			logger.Debug("Battery report",
				zap.String("deviceID", deviceID),
				zap.Uint8("percent", level))
		},
	}, logger)

	// Initialize WebSocket hub for relay connections
	hub := gateway.NewHub(dispatcher, logger)
	go hub.Run()

	notifier := &relayNotifier{hub: hub, logger: logger}
	captureService = usecase.NewCaptureService(captures, visionModel, notifier, logger)
	voiceService = usecase.NewVoiceService(speechToText, languageModel, textToSpeech,
		sessions, captures, dispatcher, notifier, logger)

	stopBridges := startBridges(cfg, dispatcher, logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Deps{
		Hub:        hub,
		Dispatcher: dispatcher,
		Devices:    devices,
		Captures:   captures,
		Sessions:   sessions,
		Logger:     logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Lumina host started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopBridges()
	dispatcher.Close()

	logger.Info("Server exited")
}

// buildStorage wires either the MongoDB repositories or the in-memory
// ones, returning a cleanup to run on shutdown.
func buildStorage(cfg config.Config, logger *zap.Logger) (repositories.DeviceRepository, repositories.CaptureRepository, repositories.SessionRepository, func()) {
	if cfg.MongoURI == "" {
		logger.Info("MONGODB_URI not set, using in-memory storage")
		devices := adapters.NewMemoryDeviceRepository()
		provisionDevice(cfg, devices, logger)
		return devices,
			adapters.NewMemoryCaptureRepository(),
			adapters.NewMemorySessionRepository(),
			func() {}
	}

	client, err := mongodb.NewClient(logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	devices, err := mongodb.NewDeviceRepository(client.Database)
	if err != nil {
		logger.Fatal("Failed to initialize device repository", zap.Error(err))
	}
	captures, err := mongodb.NewCaptureRepository(client.Database)
	if err != nil {
		logger.Fatal("Failed to initialize capture repository", zap.Error(err))
	}
	sessions, err := mongodb.NewSessionRepository(client.Database)
	if err != nil {
		logger.Fatal("Failed to initialize session repository", zap.Error(err))
	}

	return devices, captures, sessions, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(ctx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}
}

// provisionDevice registers the development device so a simulator can
// authenticate against a fresh in-memory store. MongoDB deployments
// provision devices out of band.
func provisionDevice(cfg config.Config, devices *adapters.MemoryDeviceRepository, logger *zap.Logger) {
	device := &entities.Device{SerialNumber: cfg.DeviceSerial, Model: "lumina-v1"}
	if err := devices.Create(context.Background(), device); err != nil {
		logger.Error("Failed to provision device", zap.Error(err))
		return
	}
	if err := devices.RegisterDeviceSecret(cfg.DeviceSerial, cfg.DeviceSecret); err != nil {
		logger.Error("Failed to register device secret", zap.Error(err))
		return
	}
	logger.Info("Provisioned device",
		zap.String("serial_number", cfg.DeviceSerial),
		zap.String("device_id", device.ID))
}

func buildSpeechToText(cfg config.Config, logger *zap.Logger) repositories.SpeechToText {
	if cfg.GoogleCredentials != "" {
		logger.Info("Using Google Cloud Speech-to-Text")
		return &stt.GoogleSpeechToText{}
	}
	logger.Info("GOOGLE_APPLICATION_CREDENTIALS not set, using mock speech-to-text")
	return stt.NewMockSpeechToText(logger)
}

func buildLanguageModel(cfg config.Config, logger *zap.Logger) repositories.LargeLanguageModel {
	if cfg.GeminiAPIKey != "" {
		model, err := llm.NewGeminiLLM(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
		logger.Info("Using Gemini language model")
		return model
	}
	logger.Info("GEMINI_API_KEY not set, using mock language model")
	return llm.NewMockGeminiClient()
}

func buildTextToSpeech(cfg config.Config, logger *zap.Logger) repositories.TextToSpeech {
	if cfg.ElevenLabsAPIKey != "" {
		service, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize Eleven Labs TTS", zap.Error(err))
		}
		logger.Info("Using Eleven Labs text-to-speech")
		return service
	}
	logger.Info("ELEVEN_LABS_API_KEY not set, using mock text-to-speech")
	return tts.NewMockTextToSpeech(logger)
}

func buildVision(cfg config.Config, logger *zap.Logger) repositories.Vision {
	if cfg.GeminiAPIKey != "" {
		model, err := vision.NewGeminiVision(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini vision", zap.Error(err))
		}
		logger.Info("Using Gemini vision model")
		return model
	}
	logger.Info("GEMINI_API_KEY not set, using mock vision model")
	return vision.NewMockVision(logger)
}

// startBridges opens the optional serial and MQTT transports. Either is
// enabled by its environment variable; the WebSocket relay path is
// always available.
func startBridges(cfg config.Config, dispatcher *devlink.Dispatcher, logger *zap.Logger) func() {
	ctx := context.Background()
	var stops []func() error

	if cfg.Serial.Port != "" {
		bridge := serialbridge.New(serialbridge.Config{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
			DeviceID: cfg.Serial.DeviceID,
		}, dispatcher, logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Fatal("Failed to start serial bridge", zap.Error(err))
		}
		logger.Info("Serial bridge started",
			zap.String("port", cfg.Serial.Port),
			zap.String("device_id", cfg.Serial.DeviceID))
		stops = append(stops, bridge.Stop)
	}

	if cfg.MQTT.Broker != "" {
		bridge := mqttbridge.New(mqttbridge.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			UseTLS:      cfg.MQTT.UseTLS,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			DeviceID:    cfg.MQTT.DeviceID,
		}, dispatcher, logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Fatal("Failed to start MQTT bridge", zap.Error(err))
		}
		logger.Info("MQTT bridge started",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("device_id", cfg.MQTT.DeviceID))
		stops = append(stops, bridge.Stop)
	}

	return func() {
		for _, stop := range stops {
			if err := stop(); err != nil {
				logger.Warn("Bridge stop failed", zap.Error(err))
			}
		}
	}
}

// relayNotifier forwards pipeline milestones to the device's relay as
// JSON events. A relay that is not connected just misses the event.
type relayNotifier struct {
	hub    *gateway.Hub
	logger *zap.Logger
}

func (n *relayNotifier) SpeakingStart(deviceID, sessionID, text string) {
	if err := n.hub.SendEvent(deviceID, gateway.NewSpeakingStartEvent(sessionID, text)); err != nil {
		n.logger.Debug("speaking_start event not delivered",
			zap.String("deviceID", deviceID), zap.Error(err))
	}
}

func (n *relayNotifier) SpeakingEnd(deviceID, sessionID string) {
	if err := n.hub.SendEvent(deviceID, gateway.NewSpeakingEndEvent(sessionID)); err != nil {
		n.logger.Debug("speaking_end event not delivered",
			zap.String("deviceID", deviceID), zap.Error(err))
	}
}

func (n *relayNotifier) CaptureDescribed(deviceID, captureID, description string) {
	if err := n.hub.SendEvent(deviceID, gateway.NewCaptureDescribedEvent(captureID, description)); err != nil {
		n.logger.Debug("capture_described event not delivered",
			zap.String("deviceID", deviceID), zap.Error(err))
	}
}
