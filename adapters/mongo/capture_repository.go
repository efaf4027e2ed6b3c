package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arjy0/lumina/domain/entities"
	"github.com/arjy0/lumina/domain/repositories"
)

// captureTTL keeps photo documents around for a week. The glasses shoot
// continuously in interval mode, so the collection would otherwise grow
// without bound.
const captureTTL = 7 * 24 * time.Hour

type CaptureRepository struct {
	collection *mongo.Collection
}

// NewCaptureRepository creates a new MongoDB capture repository and
// ensures the TTL index on created_at exists.
func NewCaptureRepository(db *mongo.Database) (repositories.CaptureRepository, error) {
	collection := db.Collection("captures")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(captureTTL.Seconds())),
		},
		{
			Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create capture indexes: %w", err)
	}

	return &CaptureRepository{collection: collection}, nil
}

// Create implements repositories.CaptureRepository
func (r *CaptureRepository) Create(ctx context.Context, capture *entities.Capture) error {
	if capture == nil {
		return errors.New("capture cannot be nil")
	}

	if err := capture.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, capture); err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}

	return nil
}

// GetByID implements repositories.CaptureRepository
func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*entities.Capture, error) {
	if id == "" {
		return nil, errors.New("capture ID cannot be empty")
	}

	var capture entities.Capture
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&capture)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("capture not found")
		}
		return nil, fmt.Errorf("failed to get capture %s: %w", id, err)
	}

	return &capture, nil
}

// ListByDevice implements repositories.CaptureRepository
func (r *CaptureRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*entities.Capture, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures for device %s: %w", deviceID, err)
	}
	defer cursor.Close(ctx)

	var captures []*entities.Capture
	if err := cursor.All(ctx, &captures); err != nil {
		return nil, fmt.Errorf("failed to decode captures: %w", err)
	}

	return captures, nil
}

// Update implements repositories.CaptureRepository
func (r *CaptureRepository) Update(ctx context.Context, capture *entities.Capture) error {
	if capture == nil {
		return errors.New("capture cannot be nil")
	}
	if capture.ID == "" {
		return errors.New("capture ID cannot be empty")
	}

	update := bson.M{
		"$set": bson.M{
			"description":  capture.Description,
			"status":       capture.Status,
			"described_at": capture.DescribedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": capture.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update capture: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("capture with ID %s not found", capture.ID)
	}

	return nil
}
