package stt_test

import (
	"github.com/arjy0/lumina/adapters/stt"
	"github.com/arjy0/lumina/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}
