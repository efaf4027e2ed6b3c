package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/arjy0/lumina/domain/repositories"
)

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client *genai.Client
	logger *zap.Logger
	config GeminiConfig
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(logger *zap.Logger) (*GeminiLLM, error) {
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

	config := GeminiConfig{
		APIKey: apiKey,
		Model:  os.Getenv("GEMINI_MODEL"), // Empty falls back to the default model
	}

	return &GeminiLLM{
		client: client,
		logger: logger,
		config: config,
	}, nil
}

// Generate takes a user prompt and returns the model's reply
func (g *GeminiLLM) Generate(prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeoutSeconds*time.Second)
	defer cancel()

	model := g.config.Model
	if model == "" {
		model = defaultModel
	}

	contents := []*genai.Content{
		genai.NewContentFromText(GeminiHardcodedConfig.SystemPrompt, genai.RoleUser),
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	response, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		SafetySettings:  GeminiHardcodedConfig.SafetySettings,
		Temperature:     genai.Ptr(float32(defaultTemperature)),
		MaxOutputTokens: int32(defaultMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := candidateText(response)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// GenerateChat creates a chat session with history
func (g *GeminiLLM) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	return NewGeminiChatSession(g.client, g.config, g.logger, history)
}
