package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/arjy0/lumina/domain/repositories"
)

// GeminiChatSession is one assistant conversation. History accumulates
// in Gemini's content format across SendMessage calls; the persona
// prompt and safety settings come from GeminiHardcodedConfig.
//
// A model failure never surfaces as an error: the wearer hears a
// fallback line instead of silence, and the pipeline keeps going.
type GeminiChatSession struct {
	client  *genai.Client
	logger  *zap.Logger
	model   string
	genCfg  *genai.GenerateContentConfig
	timeout time.Duration
	history []*genai.Content
}

// ValidateGeminiConfig rejects parameter values outside the API's
// accepted ranges. Zero values mean "use the default" and pass.
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.TopP < 0 || config.TopP > 1 {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}
	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// NewGeminiChatSession opens a session seeded with the stored
// conversation history.
func NewGeminiChatSession(client *genai.Client, config GeminiConfig, logger *zap.Logger, history []repositories.ChatMessage) (*GeminiChatSession, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}

	return &GeminiChatSession{
		client:  client,
		logger:  logger,
		model:   model,
		genCfg:  generationConfig(config),
		timeout: timeout,
		history: historyToGenai(history),
	}, nil
}

func generationConfig(config GeminiConfig) *genai.GenerateContentConfig {
	pick := func(v, fallback float32) *float32 {
		if v == 0 {
			v = fallback
		}
		return genai.Ptr(v)
	}
	maxTokens := config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &genai.GenerateContentConfig{
		SafetySettings:  GeminiHardcodedConfig.SafetySettings,
		Temperature:     pick(config.Temperature, defaultTemperature),
		TopP:            pick(config.TopP, defaultTopP),
		TopK:            pick(config.TopK, defaultTopK),
		MaxOutputTokens: int32(maxTokens),
	}
}

// SendMessage asks the model for a reply and records both sides in the
// session history. On repeated API failure or an empty candidate it
// answers with a canned fallback line rather than an error.
func (s *GeminiChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	userContent := genai.NewContentFromText(message.Content, genai.RoleUser)

	contents := make([]*genai.Content, 0, len(s.history)+2)
	contents = append(contents, genai.NewContentFromText(GeminiHardcodedConfig.SystemPrompt, genai.RoleUser))
	contents = append(contents, s.history...)
	contents = append(contents, userContent)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.generateWithRetry(ctx, contents)
	if err != nil {
		s.logger.Error("Chat generation failed, answering with fallback", zap.Error(err))
		return s.fallbackReply(), nil
	}

	text := candidateText(response)
	if text == "" {
		s.logger.Warn("Chat generation returned no text, answering with fallback")
		return s.fallbackReply(), nil
	}

	s.history = append(s.history,
		userContent,
		genai.NewContentFromText(text, genai.RoleModel))

	s.logger.Debug("Chat turn completed",
		zap.Int("reply_chars", len(text)),
		zap.Int("history_length", len(s.history)))

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: text,
	}, nil
}

// History returns the conversation so far in the repository format.
func (s *GeminiChatSession) History() ([]repositories.ChatMessage, error) {
	messages := make([]repositories.ChatMessage, 0, len(s.history))
	for _, content := range s.history {
		text := contentText(content)
		if text == "" {
			continue
		}
		role := repositories.UserRole
		if content.Role == genai.RoleModel {
			role = repositories.AssistantRole
		}
		messages = append(messages, repositories.ChatMessage{Role: role, Content: text})
	}
	return messages, nil
}

// generateWithRetry calls the API up to three times with a linear
// backoff between attempts.
func (s *GeminiChatSession) generateWithRetry(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		response, err := s.client.Models.GenerateContent(ctx, s.model, contents, s.genCfg)
		if err == nil {
			return response, nil
		}
		lastErr = err
		s.logger.Warn("Chat generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < 3 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// fallbackReply picks a canned line, records it in the history, and
// returns it as the assistant's answer.
func (s *GeminiChatSession) fallbackReply() repositories.ChatMessage {
	fallbacks := GeminiHardcodedConfig.Fallbacks
	line := fallbacks[int(time.Now().UnixNano())%len(fallbacks)]

	s.history = append(s.history, genai.NewContentFromText(line, genai.RoleModel))

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: line,
	}
}

func historyToGenai(messages []repositories.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == repositories.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}
	return contents
}

func candidateText(response *genai.GenerateContentResponse) string {
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	return contentText(response.Candidates[0].Content)
}

func contentText(content *genai.Content) string {
	var text string
	for _, part := range content.Parts {
		text += part.Text
	}
	return text
}
