package adapters

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"github.com/arjy0/lumina/domain/entities"
)

// MemorySessionRepository is an in-memory implementation of SessionRepository
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[primitive.ObjectID]*entities.Session
	latest   map[string]primitive.ObjectID // device_id -> most recent session
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[primitive.ObjectID]*entities.Session),
		latest:   make(map[string]primitive.ObjectID),
	}
}

// Create implements SessionRepository interface
func (m *MemorySessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}

	if _, exists := m.sessions[session.ID]; exists {
		return errors.New("session with this ID already exists")
	}

	sessionCopy := *session
	m.sessions[session.ID] = &sessionCopy
	m.latest[session.DeviceID] = session.ID

	return nil
}

// GetLastByDeviceID implements SessionRepository interface
func (m *MemorySessionRepository) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.latest[deviceID]
	if !exists {
		return nil, nil // No session yet is not an error
	}

	session, exists := m.sessions[id]
	if !exists {
		return nil, nil
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

// Update implements SessionRepository interface
func (m *MemorySessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if session.ID.IsZero() {
		return errors.New("session ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return errors.New("session not found")
	}

	sessionCopy := *session
	m.sessions[session.ID] = &sessionCopy

	return nil
}
