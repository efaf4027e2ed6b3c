package repositories

import (
	"context"

	"github.com/arjy0/lumina/domain/entities"
)

// DeviceRepository defines data access methods for devices
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	List(ctx context.Context) ([]*entities.Device, error)
	Update(ctx context.Context, device *entities.Device) error
	Delete(ctx context.Context, id string) error
	// ValidateDevice validates device credentials for authentication
	ValidateDevice(serialNumber, secret string) (*entities.Device, error)
}

// CaptureRepository defines data access methods for photo captures
type CaptureRepository interface {
	Create(ctx context.Context, capture *entities.Capture) error
	GetByID(ctx context.Context, id string) (*entities.Capture, error)
	// ListByDevice returns the most recent captures first.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*entities.Capture, error)
	Update(ctx context.Context, capture *entities.Capture) error
}

// SessionRepository defines data access methods for conversation sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	// GetLastByDeviceID returns the most recent session, or nil when
	// the device has none.
	GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error)
	Update(ctx context.Context, session *entities.Session) error
}
