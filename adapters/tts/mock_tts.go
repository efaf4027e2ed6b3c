package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/repositories"
)

// MockTextToSpeech streams silence shaped like speech, for development
// without an Eleven Labs key.
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// ConvertTextToSpeech emits 16-bit mono PCM silence at 16 kHz, roughly
// 60 ms per word, chunked the way the real provider streams.
func (t *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	words := len(strings.Fields(text))
	total := words * 60 * 16000 / 1000 * 2

	t.logger.Info("Generating mock speech",
		zap.Int("words", words),
		zap.Int("bytes", total))

	out := make(chan []byte)
	go func() {
		defer close(out)
		const chunkSize = 1024
		for sent := 0; sent < total; sent += chunkSize {
			n := chunkSize
			if total-sent < n {
				n = total - sent
			}
			select {
			case out <- make([]byte, n):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
