package tts

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewElevenLabsTTSRequiresAPIKey(t *testing.T) {
	_, err := NewElevenLabsTTS(ElevenLabsConfig{}, zap.NewNop())
	if err == nil {
		t.Error("Expected error when API key is not set")
	}
}

func TestNewElevenLabsTTSAppliesDefaults(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID %q, got %q", defaultVoiceID, tts.voiceID)
	}
	// The speaker on the glasses plays 16kHz PCM.
	if tts.outputFormat != "pcm_16000" {
		t.Errorf("Expected default output format pcm_16000, got %q", tts.outputFormat)
	}
	if tts.chunkSize != defaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", defaultChunkSize, tts.chunkSize)
	}
}

func TestNewElevenLabsConfigFromEnv(t *testing.T) {
	t.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	t.Setenv("ELEVEN_LABS_VOICE_ID", "custom-voice")
	t.Setenv("ELEVEN_LABS_STABILITY", "0.3")
	t.Setenv("ELEVEN_LABS_CLARITY", "1.7") // out of range, ignored

	config := NewElevenLabsConfigFromEnv()

	if config.APIKey != "test-api-key" {
		t.Errorf("Expected API key test-api-key, got %q", config.APIKey)
	}
	if config.VoiceID != "custom-voice" {
		t.Errorf("Expected voice ID custom-voice, got %q", config.VoiceID)
	}
	if config.Stability != 0.3 {
		t.Errorf("Expected stability 0.3, got %f", config.Stability)
	}
	if config.Clarity != 0 {
		t.Errorf("Expected out-of-range clarity to be dropped, got %f", config.Clarity)
	}
}

func TestSetVoiceSettings(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	tts.SetVoiceSettings(0.8, 0.9)
	if tts.stability != 0.8 {
		t.Errorf("Expected stability 0.8, got %f", tts.stability)
	}
	if tts.clarity != 0.9 {
		t.Errorf("Expected clarity 0.9, got %f", tts.clarity)
	}

	tts.SetVoiceID("new-voice-id")
	if tts.voiceID != "new-voice-id" {
		t.Errorf("Expected voice ID new-voice-id, got %q", tts.voiceID)
	}
}

func TestConvertTextToSpeechRejectsEmptyText(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	for _, text := range []string{"", "   "} {
		if _, err := tts.ConvertTextToSpeech(context.Background(), text); err == nil {
			t.Errorf("Expected error for text %q", text)
		}
	}
}

// Runs only with a real API key in the environment.
func TestConvertTextToSpeechIntegration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY with a real API key")
	}

	tts, err := NewElevenLabsTTS(NewElevenLabsConfigFromEnv(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audio, err := tts.ConvertTextToSpeech(ctx, "Hello from the glasses speaker integration test.")
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	totalBytes := 0
	for chunk := range audio {
		if len(chunk) == 0 {
			t.Error("Received empty audio chunk")
		}
		totalBytes += len(chunk)
	}
	if totalBytes == 0 {
		t.Error("No audio data received")
	}
}
