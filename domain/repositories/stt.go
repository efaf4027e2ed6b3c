package repositories

import "context"

// Transcript is the recognition result for one finished clip.
type Transcript struct {
	Text       string
	Confidence float64
}

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeClip converts one finished audio clip to text.
	TranscribeClip(ctx context.Context, audio []byte, config AudioConfig) (Transcript, error)
	// InitTranscribeStreaming initializes a streaming transcription session
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

type SpeechToTextStreaming interface {
	Stream(data []byte) error
	End() (string, error)
}
