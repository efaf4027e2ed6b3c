package vision_test

import (
	"github.com/arjy0/lumina/adapters/vision"
	"github.com/arjy0/lumina/domain/repositories"
)

var _ repositories.Vision = &vision.GeminiVision{}
