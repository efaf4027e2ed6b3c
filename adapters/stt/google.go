package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/arjy0/lumina/domain/repositories"
)

// GoogleSpeechToText transcribes clips through Google Cloud Speech.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS; the client is
// opened per call so a dropped connection never wedges the adapter.
type GoogleSpeechToText struct{}

// TranscribeClip converts one finished audio clip to text with the
// synchronous Recognize API. Clips from the glasses run a few seconds,
// well under the one-minute limit for synchronous recognition.
func (g *GoogleSpeechToText) TranscribeClip(ctx context.Context, audio []byte, config repositories.AudioConfig) (repositories.Transcript, error) {
	if len(audio) == 0 {
		return repositories.Transcript{}, fmt.Errorf("no audio data received")
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	recognitionConfig, err := recognitionConfigFor(config)
	if err != nil {
		return repositories.Transcript{}, err
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return repositories.Transcript{}, fmt.Errorf("failed to recognize audio: %w", err)
	}

	transcript := collectTranscript(resp.Results)
	if transcript.Text == "" {
		return repositories.Transcript{}, fmt.Errorf("no speech detected in audio")
	}
	return transcript, nil
}

// collectTranscript joins the best alternative of each result. The
// confidence is the first scored result's, which for single-utterance
// clips is the whole answer.
func collectTranscript(results []*speechpb.SpeechRecognitionResult) repositories.Transcript {
	var transcript repositories.Transcript
	var parts []string
	for _, result := range results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		parts = append(parts, best.Transcript)
		if transcript.Confidence == 0 {
			transcript.Confidence = float64(best.Confidence)
		}
	}
	transcript.Text = strings.Join(parts, "")
	return transcript
}

// InitTranscribeStreaming opens a streaming recognition session. The
// caller feeds audio with Stream and collects the transcript with End.
func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	recognitionConfig, err := recognitionConfigFor(config)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	// First message carries the configuration; audio follows.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          recognitionConfig,
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	return &googleStream{
		client:  client,
		stream:  stream,
		ctx:     ctx,
		results: make(chan string, 1),
		errs:    make(chan error, 1),
	}, nil
}

// googleStream is one live streaming recognition session.
type googleStream struct {
	client      *speech.Client
	stream      speechpb.Speech_StreamingRecognizeClient
	ctx         context.Context
	receiveOnce sync.Once
	gotAudio    bool
	results     chan string
	errs        chan error
}

// Stream forwards one chunk of audio to the recognizer.
func (g *googleStream) Stream(data []byte) error {
	g.receiveOnce.Do(func() { go g.receive() })

	if len(data) == 0 {
		return nil
	}
	g.gotAudio = true

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// End closes the audio side and waits for the final transcript.
func (g *googleStream) End() (string, error) {
	defer g.client.Close()

	if !g.gotAudio {
		return "", fmt.Errorf("no audio data received")
	}
	if err := g.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	select {
	case <-g.ctx.Done():
		return "", fmt.Errorf("context cancelled while waiting for result: %w", g.ctx.Err())
	case err := <-g.errs:
		return "", err
	case result := <-g.results:
		if result == "" {
			return "", fmt.Errorf("no speech detected in audio")
		}
		return result, nil
	}
}

// receive drains recognition responses, keeping the last final
// transcript until the stream ends.
func (g *googleStream) receive() {
	var final string
	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.results <- final
			return
		}
		if err != nil {
			g.errs <- fmt.Errorf("failed to receive response: %w", err)
			return
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				final = result.Alternatives[0].Transcript
			}
		}
	}
}

// recognitionConfigFor maps the transport-neutral audio config onto
// the Speech API's request config.
func recognitionConfigFor(config repositories.AudioConfig) (*speechpb.RecognitionConfig, error) {
	encoding, ok := encodings[config.Encoding]
	if !ok {
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}
	return &speechpb.RecognitionConfig{
		Encoding:        encoding,
		SampleRateHertz: int32(config.SampleRate),
		LanguageCode:    config.Language,
	}, nil
}

var encodings = map[string]speechpb.RecognitionConfig_AudioEncoding{
	"WAV":                    speechpb.RecognitionConfig_LINEAR16,
	"LINEAR16":               speechpb.RecognitionConfig_LINEAR16,
	"FLAC":                   speechpb.RecognitionConfig_FLAC,
	"MULAW":                  speechpb.RecognitionConfig_MULAW,
	"AMR":                    speechpb.RecognitionConfig_AMR,
	"AMR_WB":                 speechpb.RecognitionConfig_AMR_WB,
	"OGG_OPUS":               speechpb.RecognitionConfig_OGG_OPUS,
	"SPEEX_WITH_HEADER_BYTE": speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE,
	"WEBM_OPUS":              speechpb.RecognitionConfig_WEBM_OPUS,
}
