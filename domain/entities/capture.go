package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CaptureStatus tracks the vision pipeline stage for a photo.
type CaptureStatus string

const (
	CaptureStatusPending   CaptureStatus = "pending"
	CaptureStatusDescribed CaptureStatus = "described"
	CaptureStatusFailed    CaptureStatus = "failed"
)

// Capture is one photo reassembled from the glasses, together with the
// diagnostics gathered on the way in and the vision description added
// asynchronously.
type Capture struct {
	ID       string `json:"id" bson:"_id"`
	DeviceID string `json:"device_id" bson:"device_id"`
	// Image holds the decoded bytes handed downstream.
	Image []byte `json:"-" bson:"image"`
	// Encoding records how the transmission payload was interpreted
	// (direct_binary, base64_ascii, other_binary, raw_fallback).
	Encoding string `json:"encoding" bson:"encoding"`
	// Trigger records what completed the transmission (sentinel,
	// watchdog, direct).
	Trigger string `json:"trigger" bson:"trigger"`
	// Complete reports whether the JPEG carried every structural
	// segment a baseline decoder needs.
	Complete bool     `json:"complete" bson:"complete"`
	Warnings []string `json:"warnings,omitempty" bson:"warnings,omitempty"`

	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Status      CaptureStatus `json:"status" bson:"status"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	DescribedAt *time.Time `json:"described_at,omitempty" bson:"described_at,omitempty"`
}

// NewCapture creates a pending capture for a device.
func NewCapture(deviceID string, image []byte) *Capture {
	return &Capture{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Image:     image,
		Status:    CaptureStatusPending,
		CreatedAt: time.Now(),
	}
}

// MarkDescribed records the vision model's description.
func (c *Capture) MarkDescribed(description string) {
	now := time.Now()
	c.Description = description
	c.Status = CaptureStatusDescribed
	c.DescribedAt = &now
}

// MarkFailed records that the vision call did not produce a
// description. The image itself is kept.
func (c *Capture) MarkFailed() {
	c.Status = CaptureStatusFailed
}

func (c *Capture) Validate() error {
	if c.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if len(c.Image) == 0 {
		return errors.New("image bytes are required")
	}
	return nil
}
