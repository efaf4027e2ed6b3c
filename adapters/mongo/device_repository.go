package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arjy0/lumina/domain/entities"
	"github.com/arjy0/lumina/domain/repositories"
)

type DeviceRepository struct {
	collection *mongo.Collection
}

// NewDeviceRepository creates a new MongoDB device repository and
// ensures the unique index on serial_number exists.
func NewDeviceRepository(db *mongo.Database) (repositories.DeviceRepository, error) {
	collection := db.Collection("devices")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "serial_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("failed to create device index: %w", err)
	}

	return &DeviceRepository{collection: collection}, nil
}

// Create implements repositories.DeviceRepository
func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}

	if err := device.Validate(); err != nil {
		return err
	}

	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("device with this serial number already exists")
		}
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

// GetByID implements repositories.DeviceRepository
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	var device entities.Device
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("device not found")
		}
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}

	return &device, nil
}

// GetBySerialNumber implements repositories.DeviceRepository
func (r *DeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	if serialNumber == "" {
		return nil, errors.New("serial number cannot be empty")
	}

	var device entities.Device
	err := r.collection.FindOne(ctx, bson.M{"serial_number": serialNumber}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("device not found")
		}
		return nil, fmt.Errorf("failed to get device by serial %s: %w", serialNumber, err)
	}

	return &device, nil
}

// List implements repositories.DeviceRepository
func (r *DeviceRepository) List(ctx context.Context) ([]*entities.Device, error) {
	opts := options.Find().SetSort(bson.M{"serial_number": 1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer cursor.Close(ctx)

	var devices []*entities.Device
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}

	return devices, nil
}

// Update implements repositories.DeviceRepository
func (r *DeviceRepository) Update(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if device.ID == "" {
		return errors.New("device ID cannot be empty")
	}

	if err := device.Validate(); err != nil {
		return err
	}

	device.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"serial_number": device.SerialNumber,
			"model":         device.Model,
			"owner_id":      device.OwnerID,
			"updated_at":    device.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": device.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}

	if result.MatchedCount == 0 {
		return errors.New("device not found")
	}

	return nil
}

// Delete implements repositories.DeviceRepository
func (r *DeviceRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("device ID cannot be empty")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	if result.DeletedCount == 0 {
		return errors.New("device not found")
	}

	return nil
}

// ValidateDevice implements repositories.DeviceRepository
func (r *DeviceRepository) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var device entities.Device
	err := r.collection.FindOne(ctx, bson.M{"serial_number": serialNumber}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("device not found")
		}
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	if device.SecretKey == "" || device.SecretKey != secret {
		return nil, errors.New("invalid credentials")
	}

	return &device, nil
}
