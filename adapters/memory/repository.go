package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

// SessionRepository is an in-memory implementation of SessionRepository.
// It is the default store for single-instance deployments and tests.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*entities.Session)}
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// Create implements SessionRepository interface
func (m *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session.ID = uuid.New().String()
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	// Store a copy to prevent external modifications
	m.sessions[session.ID] = session.Snapshot()
	return nil
}

// GetByID implements SessionRepository interface
func (m *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, entities.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Update implements SessionRepository interface
func (m *SessionRepository) Update(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.sessions[session.ID]
	if !exists {
		return entities.ErrSessionNotFound
	}

	updated := session.Snapshot()
	updated.CreatedAt = existing.CreatedAt // Preserve original creation time
	m.sessions[session.ID] = updated
	return nil
}

// ProfileRepository is an in-memory implementation of ProfileRepository
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*entities.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]*entities.Profile)}
}

var _ repositories.ProfileRepository = (*ProfileRepository)(nil)

// GetByUserID implements ProfileRepository interface
func (m *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*entities.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[userID]
	if !exists {
		return nil, entities.ErrProfileNotFound
	}
	return copyProfile(profile), nil
}

// Upsert implements ProfileRepository interface
func (m *ProfileRepository) Upsert(ctx context.Context, profile *entities.Profile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profile.UpdatedAt = time.Now()
	m.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func copyProfile(p *entities.Profile) *entities.Profile {
	cp := *p
	cp.FamilyMembers = append([]entities.FamilyMember(nil), p.FamilyMembers...)
	return &cp
}
