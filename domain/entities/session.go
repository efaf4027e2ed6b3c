package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// A session stays usable for this long after its last activity.
const sessionLifetime = 24 * time.Hour

// A pause in conversation longer than this starts a fresh session, so
// the assistant does not answer a morning question with last night's
// context.
const continuationWindow = 30 * time.Minute

// SessionStatus tracks the lifecycle of a conversation session.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// MessageRole identifies which side of the conversation spoke.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Session is one conversation between a pair of glasses and the
// assistant. Voice turns append messages; the session carries the
// context the language model answers from.
type Session struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DeviceID      string             `json:"device_id" bson:"device_id"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	LastActiveAt  time.Time          `json:"last_active_at" bson:"last_active_at"`
	LastMessageAt *time.Time         `json:"last_message_at" bson:"last_message_at"`
	ExpiresAt     time.Time          `json:"expires_at" bson:"expires_at"`
	Status        SessionStatus      `json:"status" bson:"status"`
	Messages      []SessionMessage   `json:"messages" bson:"messages"`
	Metadata      SessionMetadata    `json:"metadata" bson:"metadata"`
}

// SessionMessage is a single turn in the conversation.
type SessionMessage struct {
	Timestamp  time.Time              `json:"timestamp" bson:"timestamp"`
	Role       MessageRole            `json:"role" bson:"role"`
	Content    string                 `json:"content" bson:"content"`
	DurationMs int                    `json:"duration_ms" bson:"duration_ms"`
	Metadata   SessionMessageMetadata `json:"metadata" bson:"metadata"`
}

// SessionMessageMetadata carries per-turn annotations.
type SessionMessageMetadata struct {
	TranscriptionConfidence *float64 `json:"transcription_confidence,omitempty" bson:"transcription_confidence,omitempty"`
	// CaptureID links an assistant answer to the photo capture whose
	// description grounded it.
	CaptureID *string `json:"capture_id,omitempty" bson:"capture_id,omitempty"`
}

// SessionMetadata carries session-level settings.
type SessionMetadata struct {
	Language        string                 `json:"language" bson:"language"`
	UserPreferences map[string]interface{} `json:"user_preferences" bson:"user_preferences"`
}

// NewSession starts an active, empty session for the device.
func NewSession(deviceID string) *Session {
	now := time.Now()
	return &Session{
		ID:           primitive.NewObjectID(),
		DeviceID:     deviceID,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(sessionLifetime),
		Status:       SessionStatusActive,
		Messages:     make([]SessionMessage, 0),
		Metadata: SessionMetadata{
			Language:        "en-US",
			UserPreferences: make(map[string]interface{}),
		},
	}
}

// AddMessage appends a conversation turn and refreshes the session's
// activity timestamps.
func (s *Session) AddMessage(role MessageRole, content string, durationMs int, metadata SessionMessageMetadata) {
	now := time.Now()
	s.Messages = append(s.Messages, SessionMessage{
		Timestamp:  now,
		Role:       role,
		Content:    content,
		DurationMs: durationMs,
		Metadata:   metadata,
	})
	s.LastMessageAt = &now
	s.UpdateLastActive()
}

// UpdateLastActive marks the session as just used, pushing its
// expiration out by the full lifetime.
func (s *Session) UpdateLastActive() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(sessionLifetime)
}

// IsExpired reports whether the session can no longer accept turns.
// Any non-active status counts as expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// ShouldCreateNewSession reports whether the conversation has gone
// quiet long enough that the next utterance deserves a fresh session.
func (s *Session) ShouldCreateNewSession() bool {
	if s.LastMessageAt == nil {
		return false
	}
	return time.Since(*s.LastMessageAt) > continuationWindow
}

// Terminate closes the session deliberately, e.g. when the device is
// deprovisioned.
func (s *Session) Terminate() {
	s.Status = SessionStatusTerminated
	s.UpdateLastActive()
}

// Expire marks a session that aged out.
func (s *Session) Expire() {
	s.Status = SessionStatusExpired
}

// Validate checks the fields persistence relies on.
func (s *Session) Validate() error {
	if s.DeviceID == "" {
		return errors.New("device_id is required")
	}
	switch s.Status {
	case SessionStatusActive, SessionStatusExpired, SessionStatusTerminated:
		return nil
	default:
		return errors.New("invalid session status")
	}
}
