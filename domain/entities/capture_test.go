package entities

import (
	"testing"
)

func TestNewCapture(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	capture := NewCapture("device-1", image)

	if capture.ID == "" {
		t.Error("Expected a generated capture ID")
	}

	if capture.DeviceID != "device-1" {
		t.Errorf("Expected device-1, got %s", capture.DeviceID)
	}

	if capture.Status != CaptureStatusPending {
		t.Errorf("Expected pending status, got %s", capture.Status)
	}

	if capture.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	if err := capture.Validate(); err != nil {
		t.Errorf("Expected valid capture, got %v", err)
	}
}

func TestCaptureMarkDescribed(t *testing.T) {
	capture := NewCapture("device-1", []byte{0xFF, 0xD8})

	capture.MarkDescribed("A street with parked cars.")

	if capture.Status != CaptureStatusDescribed {
		t.Errorf("Expected described status, got %s", capture.Status)
	}

	if capture.Description != "A street with parked cars." {
		t.Errorf("Expected description to be stored, got %q", capture.Description)
	}

	if capture.DescribedAt == nil {
		t.Error("Expected DescribedAt to be set")
	}
}

func TestCaptureMarkFailed(t *testing.T) {
	capture := NewCapture("device-1", []byte{0xFF, 0xD8})

	capture.MarkFailed()

	if capture.Status != CaptureStatusFailed {
		t.Errorf("Expected failed status, got %s", capture.Status)
	}

	if len(capture.Image) == 0 {
		t.Error("Expected the image to be kept after a failed description")
	}
}

func TestCaptureValidation(t *testing.T) {
	capture := NewCapture("", []byte{0x01})
	if err := capture.Validate(); err == nil {
		t.Error("Expected validation error for missing device ID")
	}

	capture = NewCapture("device-1", nil)
	if err := capture.Validate(); err == nil {
		t.Error("Expected validation error for empty image")
	}
}
