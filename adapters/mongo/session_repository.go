package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

type sessionDocument struct {
	ID               primitive.ObjectID `bson:"_id"`
	entities.Session `bson:",inline"`
}

type SessionRepository struct {
	collection *mongo.Collection
}

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database) repositories.SessionRepository {
	return &SessionRepository{
		collection: db.Collection(sessionsCollection),
	}
}

// Create implements repositories.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	oid := primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, sessionDocument{ID: oid, Session: *session}); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	session.ID = oid.Hex()
	return nil
}

// GetByID implements repositories.SessionRepository
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// Not an id this store could have issued
		return nil, entities.ErrSessionNotFound
	}

	var doc sessionDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	session := doc.Session
	session.ID = doc.ID.Hex()
	return &session, nil
}

// Update implements repositories.SessionRepository
func (r *SessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	objectID, err := primitive.ObjectIDFromHex(session.ID)
	if err != nil {
		return fmt.Errorf("invalid session ID format: %w", err)
	}

	update := bson.M{
		"$set": bson.M{
			"emergency_type": session.EmergencyType,
			"status":         session.Status,
			"transcript":     session.Transcript,
			"protocol_key":   session.ProtocolKey,
			"updated_at":     session.UpdatedAt,
			"closed_at":      session.ClosedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", entities.ErrSessionNotFound, session.ID)
	}

	return nil
}
