package repositories

import "context"

// TextToSpeech renders an assistant reply as PCM audio. The channel
// yields chunks as the provider streams them and closes when synthesis
// ends.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
