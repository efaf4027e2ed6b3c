package gateway

import "time"

// EventType defines the type of a host-to-relay JSON event.
type EventType string

// Supported event types.
const (
	EventTypeSpeakingStart    EventType = "speaking_start"
	EventTypeSpeakingEnd      EventType = "speaking_end"
	EventTypeCaptureDescribed EventType = "capture_described"
	EventTypeError            EventType = "error"
)

// BaseEvent defines the common structure for all relay events.
type BaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
}

// SpeakingStartEvent tells the relay that binary assistant audio
// follows and should be routed to the glasses speaker.
type SpeakingStartEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// SpeakingEndEvent closes an assistant audio stream.
type SpeakingEndEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
}

// CaptureDescribedEvent announces a finished photo description, so a
// companion app can refresh without polling.
type CaptureDescribedEvent struct {
	BaseEvent
	CaptureID   string `json:"capture_id"`
	Description string `json:"description"`
}

// ErrorEvent reports a pipeline failure the relay may surface.
type ErrorEvent struct {
	BaseEvent
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// NewSpeakingStartEvent creates a speaking_start event.
func NewSpeakingStartEvent(sessionID, text string) *SpeakingStartEvent {
	return &SpeakingStartEvent{
		BaseEvent: BaseEvent{
			Type:      EventTypeSpeakingStart,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID: sessionID,
		Text:      text,
	}
}

// NewSpeakingEndEvent creates a speaking_end event.
func NewSpeakingEndEvent(sessionID string) *SpeakingEndEvent {
	return &SpeakingEndEvent{
		BaseEvent: BaseEvent{
			Type:      EventTypeSpeakingEnd,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID: sessionID,
	}
}

// NewCaptureDescribedEvent creates a capture_described event.
func NewCaptureDescribedEvent(captureID, description string) *CaptureDescribedEvent {
	return &CaptureDescribedEvent{
		BaseEvent: BaseEvent{
			Type:      EventTypeCaptureDescribed,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		CaptureID:   captureID,
		Description: description,
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		BaseEvent: BaseEvent{
			Type:      EventTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}
