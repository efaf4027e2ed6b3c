package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/repositories"
)

// MockSpeechToText answers with canned phrases so the voice pipeline
// runs end to end without Google credentials. The phrase depends on
// the clip size, which makes simulator runs mildly varied.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates the mock recognizer.
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

func (s *MockSpeechToText) TranscribeClip(ctx context.Context, audio []byte, config repositories.AudioConfig) (repositories.Transcript, error) {
	if len(audio) == 0 {
		return repositories.Transcript{}, fmt.Errorf("no audio data received")
	}

	text := mockPhrase(len(audio))
	s.logger.Info("Mock transcription",
		zap.Int("audioSize", len(audio)),
		zap.String("text", text))

	return repositories.Transcript{Text: text, Confidence: 0.92}, nil
}

func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Mock streaming transcription started",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))
	return &mockStream{logger: s.logger}, nil
}

// mockStream pretends to transcribe whatever audio it is fed.
type mockStream struct {
	logger    *zap.Logger
	byteCount int
}

func (m *mockStream) Stream(data []byte) error {
	m.byteCount += len(data)
	return nil
}

func (m *mockStream) End() (string, error) {
	if m.byteCount == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	text := mockPhrase(m.byteCount)
	m.logger.Info("Mock streaming transcription finished",
		zap.Int("audioSize", m.byteCount),
		zap.String("text", text))
	return text, nil
}

func mockPhrase(audioSize int) string {
	switch {
	case audioSize > 10000:
		return "Hey Lumina, what am I looking at right now? Can you describe it for me?"
	case audioSize > 5000:
		return "What does the sign in front of me say?"
	case audioSize > 1000:
		return "Hey Lumina!"
	default:
		return "Hi"
	}
}
