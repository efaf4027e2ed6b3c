package entities

import (
	"testing"
	"time"
)

func TestNewSessionStartsActive(t *testing.T) {
	session := NewSession("glasses-42")

	if session.DeviceID != "glasses-42" {
		t.Errorf("Expected device ID glasses-42, got %s", session.DeviceID)
	}
	if session.Status != SessionStatusActive {
		t.Errorf("Expected status %s, got %s", SessionStatusActive, session.Status)
	}
	if len(session.Messages) != 0 {
		t.Errorf("Expected no messages on a fresh session, got %d", len(session.Messages))
	}
	if session.LastMessageAt != nil {
		t.Error("Expected LastMessageAt to be unset before the first turn")
	}
	if session.Metadata.Language != "en-US" {
		t.Errorf("Expected default language en-US, got %s", session.Metadata.Language)
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Error("Expected expiration after creation time")
	}
}

func TestAddMessageRecordsTurn(t *testing.T) {
	session := NewSession("glasses-42")

	session.AddMessage(MessageRoleUser, "What am I looking at?", 1500, SessionMessageMetadata{})

	if len(session.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(session.Messages))
	}
	turn := session.Messages[0]
	if turn.Role != MessageRoleUser {
		t.Errorf("Expected user role, got %s", turn.Role)
	}
	if turn.Content != "What am I looking at?" {
		t.Errorf("Unexpected content %q", turn.Content)
	}
	if turn.DurationMs != 1500 {
		t.Errorf("Expected duration 1500ms, got %d", turn.DurationMs)
	}
	if session.LastMessageAt == nil {
		t.Error("Expected LastMessageAt to be set after a turn")
	}
}

func TestAddMessageKeepsCaptureReference(t *testing.T) {
	session := NewSession("glasses-42")

	captureID := "7e0c2c1a-2f87-4dbb-a6ce-2a74cbb1c0de"
	session.AddMessage(MessageRoleAssistant, "A red bicycle leaning on a fence.", 2000,
		SessionMessageMetadata{CaptureID: &captureID})

	got := session.Messages[0].Metadata.CaptureID
	if got == nil || *got != captureID {
		t.Error("Expected the capture reference to survive on the stored turn")
	}
}

func TestIsExpired(t *testing.T) {
	session := NewSession("glasses-42")

	if session.IsExpired() {
		t.Error("Fresh session should not be expired")
	}

	session.ExpiresAt = time.Now().Add(-time.Minute)
	if !session.IsExpired() {
		t.Error("Session past its expiration should report expired")
	}

	session.ExpiresAt = time.Now().Add(time.Hour)
	session.Terminate()
	if !session.IsExpired() {
		t.Error("Terminated session should report expired even before its deadline")
	}
}

func TestShouldCreateNewSession(t *testing.T) {
	session := NewSession("glasses-42")

	if session.ShouldCreateNewSession() {
		t.Error("Session with no turns yet should be continued, not replaced")
	}

	session.AddMessage(MessageRoleUser, "Hello", 1000, SessionMessageMetadata{})
	if session.ShouldCreateNewSession() {
		t.Error("Session with a recent turn should be continued")
	}

	stale := time.Now().Add(-31 * time.Minute)
	session.LastMessageAt = &stale
	if !session.ShouldCreateNewSession() {
		t.Error("Session quiet for over 30 minutes should be replaced")
	}
}

func TestUpdateLastActiveExtendsExpiration(t *testing.T) {
	session := NewSession("glasses-42")
	before := session.ExpiresAt

	time.Sleep(10 * time.Millisecond)
	session.UpdateLastActive()

	if !session.ExpiresAt.After(before) {
		t.Error("Expected expiration to move forward with activity")
	}
	if got := session.ExpiresAt.Sub(session.LastActiveAt); (got - sessionLifetime).Abs() > time.Second {
		t.Errorf("Expected expiration %v after last activity, got %v", sessionLifetime, got)
	}
}

func TestSessionValidate(t *testing.T) {
	session := NewSession("glasses-42")
	if err := session.Validate(); err != nil {
		t.Errorf("Fresh session should validate, got: %v", err)
	}

	session.DeviceID = ""
	if err := session.Validate(); err == nil {
		t.Error("Session without a device should fail validation")
	}

	session.DeviceID = "glasses-42"
	session.Status = SessionStatus("paused")
	if err := session.Validate(); err == nil {
		t.Error("Unknown status should fail validation")
	}
}
