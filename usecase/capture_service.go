package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arjy0/lumina/domain/entities"
	"github.com/arjy0/lumina/domain/repositories"
	"github.com/arjy0/lumina/internal/payload"
	"github.com/arjy0/lumina/internal/reassembly"
)

const (
	storeTimeout    = 5 * time.Second
	describeTimeout = 45 * time.Second
)

// CaptureService turns finalized photo buffers into stored captures and
// describes them with the vision model in the background.
type CaptureService struct {
	captures repositories.CaptureRepository
	vision   repositories.Vision
	notifier Notifier
	logger   *zap.Logger
}

// NewCaptureService creates a new capture service.
func NewCaptureService(
	captures repositories.CaptureRepository,
	vision repositories.Vision,
	notifier Notifier,
	logger *zap.Logger,
) *CaptureService {
	return &CaptureService{
		captures: captures,
		vision:   vision,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleCompletedPhoto is the dispatcher's photo sink. It sniffs the
// buffer, stores the capture, and schedules the vision description.
// Long work happens in a goroutine so the device's pipeline is not
// stalled behind a slow model call.
func (s *CaptureService) HandleCompletedPhoto(deviceID string, done reassembly.Completed) {
	if done.Empty {
		s.logger.Debug("Skipping empty photo completion", zap.String("deviceID", deviceID))
		return
	}

	img := payload.SniffImage(done.Data)

	capture := entities.NewCapture(deviceID, img.Data)
	capture.Encoding = img.Class.String()
	capture.Trigger = done.Trigger.String()
	capture.Complete = img.Descriptor != nil && img.Descriptor.Complete()
	capture.Warnings = img.Warnings

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.captures.Create(ctx, capture); err != nil {
		s.logger.Error("Failed to store capture",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return
	}

	s.logger.Info("Photo captured",
		zap.String("deviceID", deviceID),
		zap.String("captureID", capture.ID),
		zap.Int("bytes", len(capture.Image)),
		zap.String("encoding", capture.Encoding),
		zap.String("trigger", capture.Trigger),
		zap.Bool("complete", capture.Complete),
		zap.Strings("warnings", capture.Warnings))

	go s.describe(capture)
}

// describe asks the vision model for a description and records the
// outcome on the stored capture.
func (s *CaptureService) describe(capture *entities.Capture) {
	ctx, cancel := context.WithTimeout(context.Background(), describeTimeout)
	defer cancel()

	description, err := s.vision.DescribeImage(ctx, capture.Image, "")
	if err != nil {
		s.logger.Warn("Vision description failed",
			zap.String("captureID", capture.ID),
			zap.Error(err))
		capture.MarkFailed()
		s.update(capture)
		return
	}

	capture.MarkDescribed(description)
	s.update(capture)

	s.logger.Info("Capture described",
		zap.String("deviceID", capture.DeviceID),
		zap.String("captureID", capture.ID),
		zap.String("description", description))

	if s.notifier != nil {
		s.notifier.CaptureDescribed(capture.DeviceID, capture.ID, description)
	}
}

func (s *CaptureService) update(capture *entities.Capture) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.captures.Update(ctx, capture); err != nil {
		s.logger.Error("Failed to update capture",
			zap.String("captureID", capture.ID),
			zap.Error(err))
	}
}
