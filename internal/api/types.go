package api

import (
	"time"

	"github.com/satriahrh/lifeline/domain/entities"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ClassifyRequest struct {
	Text string `json:"text"`
}

type ClassifyResponse struct {
	Prediction string `json:"prediction"`
}

type SpeechRequest struct {
	Texts []string `json:"texts"`
}

type SpeechResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// SessionActionRequest is the body of the call and notification endpoints
type SessionActionRequest struct {
	SessionID string `json:"sessionId"`
}

type CallResponse struct {
	Message string `json:"message"`
	CallSID string `json:"callSid"`
}

type NotifyResponse struct {
	Message string `json:"message"`
}

type CallScriptResponse struct {
	Script string `json:"script"`
}

// MessageView is a transcript message with its visual aid resolved
type MessageView struct {
	entities.Message
	AssetURL string `json:"asset_url,omitempty"`
}

type SessionResponse struct {
	ID            string                 `json:"id"`
	EmergencyType string                 `json:"emergency_type"`
	Description   string                 `json:"description"`
	Status        entities.SessionStatus `json:"status"`
	ProtocolKey   string                 `json:"protocol_key,omitempty"`
	Transcript    []MessageView          `json:"transcript"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	ClosedAt      *time.Time             `json:"closed_at,omitempty"`
}

type ProtocolSummary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ProfileRequest struct {
	FullName              string                  `json:"full_name"`
	EmergencyContactName  string                  `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string                  `json:"emergency_contact_phone,omitempty"`
	FamilyMembers         []entities.FamilyMember `json:"family_members"`
}
