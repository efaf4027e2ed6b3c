package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/entities"
	"github.com/arjy0/lumina/domain/repositories"
	"github.com/arjy0/lumina/internal/devlink"
	"github.com/arjy0/lumina/internal/payload"
	"github.com/arjy0/lumina/internal/reassembly"
)

const (
	respondTimeout = 60 * time.Second

	// recentCaptureLimit bounds how many photo descriptions ground an
	// answer.
	recentCaptureLimit = 3
)

// VoiceService answers a finished voice clip: transcribe, compose a
// reply grounded in the device's recent photo descriptions, synthesize
// speech, and stream it back over the device link.
type VoiceService struct {
	stt        repositories.SpeechToText
	llm        repositories.LargeLanguageModel
	tts        repositories.TextToSpeech
	sessions   repositories.SessionRepository
	captures   repositories.CaptureRepository
	dispatcher *devlink.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewVoiceService creates a new voice service.
func NewVoiceService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	sessions repositories.SessionRepository,
	captures repositories.CaptureRepository,
	dispatcher *devlink.Dispatcher,
	notifier Notifier,
	logger *zap.Logger,
) *VoiceService {
	return &VoiceService{
		stt:        stt,
		llm:        llm,
		tts:        tts,
		sessions:   sessions,
		captures:   captures,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// HandleCompletedClip is the dispatcher's audio sink. The full pipeline
// runs in a goroutine so the device's worker is not stalled behind
// model calls.
func (s *VoiceService) HandleCompletedClip(deviceID string, done reassembly.Completed) {
	if done.Empty {
		s.logger.Debug("Skipping empty audio completion", zap.String("deviceID", deviceID))
		return
	}

	clip := payload.ValidateClip(done.Data)
	s.logger.Info("Voice clip finalized",
		zap.String("deviceID", deviceID),
		zap.Int("bytes", len(clip.Data)),
		zap.Duration("duration", clip.Duration),
		zap.String("trigger", done.Trigger.String()),
		zap.Strings("warnings", clip.Warnings))

	go s.respond(deviceID, clip)
}

func (s *VoiceService) respond(deviceID string, clip payload.Clip) {
	ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
	defer cancel()

	transcript, err := s.stt.TranscribeClip(ctx, clip.Data, repositories.AudioConfig{
		SampleRate: clip.SampleRate,
		Encoding:   "LINEAR16",
		Language:   "en-US",
	})
	if err != nil {
		s.logger.Warn("Transcription failed",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return
	}

	s.logger.Info("Transcription completed",
		zap.String("deviceID", deviceID),
		zap.String("text", transcript.Text),
		zap.Float64("confidence", transcript.Confidence))

	session, err := s.currentSession(ctx, deviceID)
	if err != nil {
		s.logger.Error("Failed to resolve session",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return
	}

	scene, captureID := s.sceneContext(ctx, deviceID)

	chat, err := s.llm.GenerateChat(ctx, chatHistory(session))
	if err != nil {
		s.logger.Error("Failed to create chat session",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return
	}

	prompt := transcript.Text
	if scene != "" {
		prompt = scene + "\n\nThe wearer asks: " + transcript.Text
	}

	reply, err := chat.SendMessage(ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: prompt,
	})
	if err != nil {
		s.logger.Error("Chat reply failed",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return
	}

	s.logger.Info("Assistant reply composed",
		zap.String("deviceID", deviceID),
		zap.String("sessionID", session.ID.Hex()),
		zap.String("reply", reply.Content))

	s.speak(ctx, deviceID, session.ID.Hex(), reply.Content)

	session.AddMessage(entities.MessageRoleUser, transcript.Text,
		int(clip.Duration.Milliseconds()), entities.SessionMessageMetadata{
			TranscriptionConfidence: &transcript.Confidence,
		})
	session.AddMessage(entities.MessageRoleAssistant, reply.Content, 0,
		entities.SessionMessageMetadata{
			CaptureID: captureID,
		})
	if err := s.sessions.Update(ctx, session); err != nil {
		s.logger.Error("Failed to persist session messages",
			zap.String("sessionID", session.ID.Hex()),
			zap.Error(err))
	}
}

// currentSession returns the device's active session, creating a new
// one when none exists, the last one expired, or the last message is
// older than the 30-minute continuation window.
func (s *VoiceService) currentSession(ctx context.Context, deviceID string) (*entities.Session, error) {
	session, err := s.sessions.GetLastByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if session != nil && !session.IsExpired() && !session.ShouldCreateNewSession() {
		return session, nil
	}

	session = entities.NewSession(deviceID)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("Started new conversation session",
		zap.String("deviceID", deviceID),
		zap.String("sessionID", session.ID.Hex()))
	return session, nil
}

// sceneContext collects the device's recent photo descriptions, newest
// first, and returns the capture ID of the newest described photo.
func (s *VoiceService) sceneContext(ctx context.Context, deviceID string) (string, *string) {
	captures, err := s.captures.ListByDevice(ctx, deviceID, recentCaptureLimit)
	if err != nil {
		s.logger.Warn("Failed to list captures for scene context",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return "", nil
	}

	var lines []string
	var newestID *string
	for _, c := range captures {
		if c.Status != entities.CaptureStatusDescribed || c.Description == "" {
			continue
		}
		if newestID == nil {
			id := c.ID
			newestID = &id
		}
		age := time.Since(c.CreatedAt).Round(time.Second)
		lines = append(lines, fmt.Sprintf("- %s ago: %s", age, c.Description))
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "What the glasses saw recently, newest first:\n" + strings.Join(lines, "\n"), newestID
}

// speak synthesizes the reply and streams the PCM chunks to the device,
// bracketed by relay events.
func (s *VoiceService) speak(ctx context.Context, deviceID, sessionID, text string) {
	ttsCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	audio, err := s.tts.ConvertTextToSpeech(ttsCtx, text)
	if err != nil {
		s.logger.Warn("Text to speech failed",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return
	}

	if s.notifier != nil {
		s.notifier.SpeakingStart(deviceID, sessionID, text)
	}

	var chunks, total int
	for chunk := range audio {
		if err := s.dispatcher.SendAssistantAudio(deviceID, chunk); err != nil {
			s.logger.Warn("Assistant audio dropped",
				zap.String("deviceID", deviceID),
				zap.Error(err))
			cancel()
			for range audio {
			}
			break
		}
		chunks++
		total += len(chunk)
	}

	if s.notifier != nil {
		s.notifier.SpeakingEnd(deviceID, sessionID)
	}

	s.logger.Info("Assistant reply spoken",
		zap.String("deviceID", deviceID),
		zap.Int("chunks", chunks),
		zap.Int("bytes", total))
}

// chatHistory converts stored session messages to the LLM's format.
func chatHistory(session *entities.Session) []repositories.ChatMessage {
	history := make([]repositories.ChatMessage, 0, len(session.Messages))
	for _, m := range session.Messages {
		role := repositories.UserRole
		if m.Role == entities.MessageRoleAssistant {
			role = repositories.AssistantRole
		}
		history = append(history, repositories.ChatMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return history
}
