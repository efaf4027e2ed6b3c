package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.elevenlabs.io/v1"
	defaultVoiceID    = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultChunkSize  = 1024
	// The glasses speaker plays 16kHz mono PCM, the same rate the
	// microphone records at, so no resampling happens on either side.
	defaultOutputFormat = "pcm_16000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75

	streamTimeout = 60 * time.Second
)

// ElevenLabsConfig configures the ElevenLabsTTS adapter. Only APIKey
// is required; zero values fall back to the package defaults.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64 // 0..1
	Clarity      float64 // similarity boost, 0..1
}

// withDefaults fills every unset field.
func (c ElevenLabsConfig) withDefaults() ElevenLabsConfig {
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.VoiceID == "" {
		c.VoiceID = defaultVoiceID
	}
	if c.ModelID == "" {
		c.ModelID = defaultModelID
	}
	if c.OutputFormat == "" {
		c.OutputFormat = defaultOutputFormat
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.Stability == 0 {
		c.Stability = defaultStability
	}
	if c.Clarity == 0 {
		c.Clarity = defaultClarity
	}
	return c
}

// ValidateElevenLabsConfig rejects values outside the API's accepted
// ranges. Zero values mean "use the default" and pass.
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability < 0 || config.Stability > 1 {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity < 0 || config.Clarity > 1 {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// ElevenLabsTTS synthesizes assistant replies through the Eleven Labs
// streaming endpoint and hands the audio over chunk by chunk, so
// playback on the glasses can start before synthesis finishes.
type ElevenLabsTTS struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	httpClient   *http.Client
	logger       *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

// voiceSettings is the voice_settings object of the synthesis request.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// synthesisRequest is the JSON body of the text-to-speech call.
type synthesisRequest struct {
	Text                   string        `json:"text"`
	ModelID                string        `json:"model_id"`
	LanguageCode           string        `json:"language_code,omitempty"`
	VoiceSettings          voiceSettings `json:"voice_settings"`
	ApplyTextNormalization string        `json:"apply_text_normalization,omitempty"`
}

// NewElevenLabsTTS creates the adapter, applying defaults for every
// unset config field.
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	logger.Info("Configured Eleven Labs TTS",
		zap.String("voiceID", config.VoiceID),
		zap.String("modelID", config.ModelID),
		zap.String("outputFormat", config.OutputFormat))

	return &ElevenLabsTTS{
		apiKey:       config.APIKey,
		apiBaseURL:   config.APIBaseURL,
		voiceID:      config.VoiceID,
		modelID:      config.ModelID,
		outputFormat: config.OutputFormat,
		chunkSize:    config.ChunkSize,
		stability:    config.Stability,
		clarity:      config.Clarity,
		httpClient:   &http.Client{Timeout: streamTimeout},
		logger:       logger,
	}, nil
}

// ConvertTextToSpeech streams synthesized speech for the text. The
// returned channel closes when the stream ends or fails; a failed
// stream delivers whatever chunks arrived before the failure.
func (e *ElevenLabsTTS) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	body, err := json.Marshal(synthesisRequest{
		Text:                   text,
		ModelID:                e.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: voiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, e.voiceID, e.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	// PCM output needs an audio/pcm accept header.
	accept := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		accept = "audio/pcm"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	e.logger.Info("Converting text to speech",
		zap.Int("text_chars", len(text)),
		zap.String("voiceID", e.voiceID))

	audio := make(chan []byte, 10)
	go e.stream(ctx, req, audio)
	return audio, nil
}

// stream reads the response body in chunks onto the channel, then
// closes it.
func (e *ElevenLabsTTS) stream(ctx context.Context, req *http.Request, audio chan<- []byte) {
	defer close(audio)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("Speech synthesis request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(detail)))
		return
	}

	buffer := make([]byte, e.chunkSize)
	totalBytes, chunks := 0, 0
	for {
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case audio <- chunk:
				totalBytes += n
				chunks++
			case <-ctx.Done():
				e.logger.Warn("Context cancelled while streaming audio")
				return
			}
		}
		if err == io.EOF {
			e.logger.Info("Finished streaming audio",
				zap.Int("chunks", chunks),
				zap.Int("totalBytes", totalBytes))
			return
		}
		if err != nil {
			e.logger.Error("Error reading synthesis stream", zap.Error(err))
			return
		}
	}
}

// SetVoiceSettings adjusts stability and clarity for later calls.
func (e *ElevenLabsTTS) SetVoiceSettings(stability, clarity float64) {
	e.stability = stability
	e.clarity = clarity
	e.logger.Info("Updated voice settings",
		zap.Float64("stability", stability),
		zap.Float64("clarity", clarity))
}

// SetVoiceID switches the synthesis voice for later calls.
func (e *ElevenLabsTTS) SetVoiceID(voiceID string) {
	e.voiceID = voiceID
	e.logger.Info("Updated voice ID", zap.String("voiceID", voiceID))
}

// GetAvailableVoices lists the voices the account can synthesize with.
func (e *ElevenLabsTTS) GetAvailableVoices(ctx context.Context) ([]map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(detail))
	}

	var voices struct {
		Voices []map[string]interface{} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	e.logger.Info("Retrieved available voices", zap.Int("count", len(voices.Voices)))
	return voices.Voices, nil
}

// NewElevenLabsConfigFromEnv builds a config from the ELEVEN_LABS_*
// environment variables. Unparseable numbers are ignored so a typo
// degrades to the default instead of breaking startup.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}

	if raw := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			config.ChunkSize = v
		}
	}
	if v, ok := envUnitFloat("ELEVEN_LABS_STABILITY"); ok {
		config.Stability = v
	}
	if v, ok := envUnitFloat("ELEVEN_LABS_CLARITY"); ok {
		config.Clarity = v
	}
	return config
}

// envUnitFloat reads an environment variable as a float in [0, 1].
func envUnitFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}
