package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arjy0/lumina/domain/entities"
	"github.com/arjy0/lumina/domain/repositories"
)

// SessionRepository stores conversation sessions in the sessions
// collection. Expired sessions are reaped by a TTL index rather than
// application code.
type SessionRepository struct {
	collection *mongo.Collection
}

// NewSessionRepository ensures the lookup and TTL indexes exist and
// returns the repository.
func NewSessionRepository(db *mongo.Database) (repositories.SessionRepository, error) {
	collection := db.Collection("sessions")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// GetLastByDeviceID sorts on this pair.
			Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "last_active_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session indexes: %w", err)
	}

	return &SessionRepository{collection: collection}, nil
}

// Create inserts a session, assigning an ID when it has none.
func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetLastByDeviceID returns the device's most recently active session,
// or nil when the device has none.
func (r *SessionRepository) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	var session entities.Session
	err := r.collection.FindOne(ctx,
		bson.M{"device_id": deviceID},
		options.FindOne().SetSort(bson.M{"last_active_at": -1}),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last session for device %s: %w", deviceID, err)
	}
	return &session, nil
}

// Update rewrites the mutable fields of an existing session. CreatedAt
// is deliberately left out of the update.
func (r *SessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID.IsZero() {
		return errors.New("session ID cannot be empty")
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": session.ID},
		bson.M{"$set": bson.M{
			"device_id":       session.DeviceID,
			"last_active_at":  session.LastActiveAt,
			"last_message_at": session.LastMessageAt,
			"expires_at":      session.ExpiresAt,
			"status":          session.Status,
			"messages":        session.Messages,
			"metadata":        session.Metadata,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("session with ID %s not found", session.ID.Hex())
	}
	return nil
}
