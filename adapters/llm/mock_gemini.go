package llm

import (
	"context"
	"fmt"

	"github.com/arjy0/lumina/domain/repositories"
)

const mockGreeting = "Hi! I'm Lumina, your glasses assistant. What would you like to know?"

// MockGeminiClient stands in for the real model when GEMINI_API_KEY is
// unset, echoing the user so the full voice loop stays testable.
type MockGeminiClient struct{}

// NewMockGeminiClient creates the mock language model.
func NewMockGeminiClient() repositories.LargeLanguageModel {
	return &MockGeminiClient{}
}

func (g *MockGeminiClient) Generate(prompt string) (string, error) {
	return mockGreeting, nil
}

func (g *MockGeminiClient) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	return &mockChatSession{history: history}, nil
}

// mockChatSession echoes each user turn back.
type mockChatSession struct {
	history []repositories.ChatMessage
}

func (g *mockChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	reply := mockGreeting
	if message.Content != "" {
		reply = fmt.Sprintf("You said '%s'. Anything else you want to ask about?", message.Content)
	}

	response := repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: reply,
	}
	g.history = append(g.history, message, response)
	return response, nil
}

func (g *mockChatSession) History() ([]repositories.ChatMessage, error) {
	return g.history, nil
}
