package vision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/repositories"
)

// MockVision is a placeholder implementation for image description
type MockVision struct {
	logger *zap.Logger
}

// NewMockVision creates a new mock vision service
func NewMockVision(logger *zap.Logger) repositories.Vision {
	return &MockVision{logger: logger}
}

// DescribeImage implements repositories.Vision
func (m *MockVision) DescribeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	m.logger.Info("Describing mock image", zap.Int("size", len(image)))

	if len(image) == 0 {
		return "", fmt.Errorf("image cannot be empty")
	}

	return fmt.Sprintf("A sample scene captured by the glasses (%d bytes).", len(image)), nil
}
