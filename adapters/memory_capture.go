package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/arjy0/lumina/domain/entities"
)

// MemoryCaptureRepository is an in-memory implementation of CaptureRepository.
// Image payloads are retained for as long as the process lives, which is
// enough for the assistant to ground follow-up questions in recent photos.
type MemoryCaptureRepository struct {
	mu       sync.RWMutex
	captures map[string]*entities.Capture   // id -> capture mapping
	byDevice map[string][]*entities.Capture // device_id -> captures, oldest first
}

// NewMemoryCaptureRepository creates a new in-memory capture repository
func NewMemoryCaptureRepository() *MemoryCaptureRepository {
	return &MemoryCaptureRepository{
		captures: make(map[string]*entities.Capture),
		byDevice: make(map[string][]*entities.Capture),
	}
}

// Create implements CaptureRepository interface
func (m *MemoryCaptureRepository) Create(ctx context.Context, capture *entities.Capture) error {
	if capture == nil {
		return errors.New("capture cannot be nil")
	}

	if err := capture.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.captures[capture.ID]; exists {
		return errors.New("capture with this ID already exists")
	}

	captureCopy := *capture
	m.captures[capture.ID] = &captureCopy
	m.byDevice[capture.DeviceID] = append(m.byDevice[capture.DeviceID], &captureCopy)

	return nil
}

// GetByID implements CaptureRepository interface
func (m *MemoryCaptureRepository) GetByID(ctx context.Context, id string) (*entities.Capture, error) {
	if id == "" {
		return nil, errors.New("capture ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	capture, exists := m.captures[id]
	if !exists {
		return nil, errors.New("capture not found")
	}

	captureCopy := *capture
	return &captureCopy, nil
}

// ListByDevice implements CaptureRepository interface
func (m *MemoryCaptureRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*entities.Capture, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	captures := m.byDevice[deviceID]

	result := make([]*entities.Capture, 0, len(captures))
	for _, capture := range captures {
		captureCopy := *capture
		result = append(result, &captureCopy)
	}

	// Most recent first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Update implements CaptureRepository interface
func (m *MemoryCaptureRepository) Update(ctx context.Context, capture *entities.Capture) error {
	if capture == nil {
		return errors.New("capture cannot be nil")
	}

	if capture.ID == "" {
		return errors.New("capture ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.captures[capture.ID]
	if !exists {
		return errors.New("capture not found")
	}

	capture.CreatedAt = existing.CreatedAt // Preserve original creation time

	captureCopy := *capture
	m.captures[capture.ID] = &captureCopy

	// Replace the entry in the per-device slice as well
	deviceCaptures := m.byDevice[capture.DeviceID]
	for i, c := range deviceCaptures {
		if c.ID == capture.ID {
			deviceCaptures[i] = &captureCopy
			break
		}
	}

	return nil
}
