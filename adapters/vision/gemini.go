package vision

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 30 * time.Second
)

// DefaultPrompt asks for the kind of description the voice pipeline can
// ground answers in.
const DefaultPrompt = `Describe this photo taken from camera glasses in two or three sentences.
Mention the main objects, any readable text, and the overall setting.
Write plainly, no preamble.`

// GeminiVision implements the Vision interface using Google's Gemini API
type GeminiVision struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGeminiVision creates a new Gemini vision instance
func NewGeminiVision(logger *zap.Logger) (*GeminiVision, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := os.Getenv("GEMINI_VISION_MODEL")
	if model == "" {
		model = defaultModel
	}

	return &GeminiVision{
		client: client,
		logger: logger,
		model:  model,
	}, nil
}

// DescribeImage implements repositories.Vision
func (g *GeminiVision) DescribeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image cannot be empty")
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, "image/jpeg"),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	// Retry transient failures the same way the chat path does
	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, nil)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to describe image, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no description generated")
	}

	var description string
	for _, part := range response.Candidates[0].Content.Parts {
		description += part.Text
	}
	if description == "" {
		return "", fmt.Errorf("empty description from model")
	}

	return description, nil
}
