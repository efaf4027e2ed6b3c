// Package adapters provides in-memory repository implementations. They
// back the server when no MongoDB URI is configured and the test
// suites.
package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arjy0/lumina/domain/entities"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateSerial    = errors.New("device with this serial number already exists")
)

// MemoryDeviceRepository keeps registered devices and their auth
// secrets in maps. Devices are stored by ID with a second index on the
// serial number, since authentication looks up by serial.
type MemoryDeviceRepository struct {
	mu       sync.RWMutex
	byID     map[string]*entities.Device
	bySerial map[string]*entities.Device
	secrets  map[string]string
}

// NewMemoryDeviceRepository creates an empty device repository.
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		byID:     make(map[string]*entities.Device),
		bySerial: make(map[string]*entities.Device),
		secrets:  make(map[string]string),
	}
}

// ValidateDevice checks a serial number and secret pair and returns the
// matching device.
func (m *MemoryDeviceRepository) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.secrets[serialNumber]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	if stored != secret {
		return nil, ErrInvalidCredentials
	}

	device, ok := m.bySerial[serialNumber]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return cloneDevice(device), nil
}

// Create registers a device, assigning an ID when it has none.
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySerial[device.SerialNumber]; exists {
		return ErrDuplicateSerial
	}

	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	stored := cloneDevice(device)
	m.byID[device.ID] = stored
	m.bySerial[device.SerialNumber] = stored
	return nil
}

func (m *MemoryDeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.byID[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return cloneDevice(device), nil
}

func (m *MemoryDeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	if serialNumber == "" {
		return nil, errors.New("serial number cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.bySerial[serialNumber]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return cloneDevice(device), nil
}

// List returns every device ordered by serial number so the listing
// endpoint is deterministic.
func (m *MemoryDeviceRepository) List(ctx context.Context) ([]*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Device, 0, len(m.byID))
	for _, device := range m.byID {
		result = append(result, cloneDevice(device))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SerialNumber < result[j].SerialNumber
	})
	return result, nil
}

// Update replaces a stored device, keeping its original creation time
// and re-indexing when the serial number changed.
func (m *MemoryDeviceRepository) Update(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if device.ID == "" {
		return errors.New("device ID cannot be empty")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byID[device.ID]
	if !ok {
		return ErrDeviceNotFound
	}
	if existing.SerialNumber != device.SerialNumber {
		if _, taken := m.bySerial[device.SerialNumber]; taken {
			return ErrDuplicateSerial
		}
	}

	device.CreatedAt = existing.CreatedAt
	device.UpdatedAt = time.Now()

	delete(m.bySerial, existing.SerialNumber)
	stored := cloneDevice(device)
	m.byID[device.ID] = stored
	m.bySerial[device.SerialNumber] = stored
	return nil
}

// Delete removes a device and its secret.
func (m *MemoryDeviceRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("device ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	device, ok := m.byID[id]
	if !ok {
		return ErrDeviceNotFound
	}
	delete(m.byID, id)
	delete(m.bySerial, device.SerialNumber)
	delete(m.secrets, device.SerialNumber)
	return nil
}

// RegisterDeviceSecret sets the authentication secret for a serial
// number. Provisioning calls this after Create.
func (m *MemoryDeviceRepository) RegisterDeviceSecret(serialNumber, secret string) error {
	if serialNumber == "" {
		return errors.New("serial number cannot be empty")
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[serialNumber] = secret
	return nil
}

// RemoveDeviceSecret revokes a device's credentials without deleting
// the device record.
func (m *MemoryDeviceRepository) RemoveDeviceSecret(serialNumber string) error {
	if serialNumber == "" {
		return errors.New("serial number cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, serialNumber)
	return nil
}

// cloneDevice copies a device so callers cannot mutate stored state.
func cloneDevice(d *entities.Device) *entities.Device {
	c := *d
	return &c
}
