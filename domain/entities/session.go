package entities

import (
	"errors"
	"time"
)

// SessionStatus represents the orchestrator state of a session
type SessionStatus string

const (
	SessionStatusCategorizing SessionStatus = "categorizing"
	SessionStatusSpeaking     SessionStatus = "speaking"
	SessionStatusListening    SessionStatus = "listening"
	SessionStatusProcessing   SessionStatus = "processing"
	SessionStatusPaused       SessionStatus = "paused"
	SessionStatusComplete     SessionStatus = "complete"
)

// IsTerminal reports whether no further transitions are possible
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusComplete
}

// Valid reports whether s is one of the known statuses
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusCategorizing, SessionStatusSpeaking, SessionStatusListening,
		SessionStatusProcessing, SessionStatusPaused, SessionStatusComplete:
		return true
	}
	return false
}

// Session represents one emergency-assistance interaction
type Session struct {
	ID            string        `json:"id" bson:"-"`
	UserID        string        `json:"user_id" bson:"user_id"`
	EmergencyType string        `json:"emergency_type" bson:"emergency_type"`
	Description   string        `json:"description" bson:"description"`
	Status        SessionStatus `json:"status" bson:"status"`
	Transcript    []Message     `json:"transcript" bson:"transcript"`
	ProtocolKey   string        `json:"protocol_key,omitempty" bson:"protocol_key,omitempty"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
	ClosedAt      *time.Time    `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
}

// NewSession creates a new session in the categorizing state
func NewSession(userID, description string) *Session {
	now := time.Now()
	return &Session{
		UserID:        userID,
		EmergencyType: EmergencyTypeUnknown,
		Description:   description,
		Status:        SessionStatusCategorizing,
		Transcript:    make([]Message, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddMessage appends a message to the transcript
func (s *Session) AddMessage(msg Message) {
	s.Transcript = append(s.Transcript, msg)
	s.UpdatedAt = time.Now()
}

// LastAssistantMessage returns the most recent assistant message, if any
func (s *Session) LastAssistantMessage() (Message, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == MessageRoleAssistant {
			return s.Transcript[i], true
		}
	}
	return Message{}, false
}

// Close marks the session complete
func (s *Session) Close() {
	now := time.Now()
	s.Status = SessionStatusComplete
	s.UpdatedAt = now
	s.ClosedAt = &now
}

// Snapshot returns a deep copy safe to hand to other goroutines
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.Transcript = make([]Message, len(s.Transcript))
	copy(cp.Transcript, s.Transcript)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.Description == "" {
		return errors.New("description is required")
	}

	if !s.Status.Valid() {
		return errors.New("invalid session status")
	}

	return nil
}
