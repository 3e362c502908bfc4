package repositories

import (
	"context"

	"github.com/satriahrh/lifeline/domain/entities"
)

// SessionRepository persists emergency sessions
type SessionRepository interface {
	// Create stores a new session and assigns its ID
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	Update(ctx context.Context, session *entities.Session) error
}

// ProfileRepository reads and writes user contact profiles
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*entities.Profile, error)
	Upsert(ctx context.Context, profile *entities.Profile) error
}
