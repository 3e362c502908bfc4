package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/checklist"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server
const (
	MessageTypeSessionStart      MessageType = "session_start"
	MessageTypeUserText          MessageType = "user_text"
	MessageTypeInterrupt         MessageType = "interrupt"
	MessageTypePause             MessageType = "pause"
	MessageTypeListen            MessageType = "listen"
	MessageTypeCallContact       MessageType = "call_contact"
	MessageTypeNotifyContacts    MessageType = "notify_contacts"
	MessageTypeClose             MessageType = "close"
	MessageTypePlaybackEnded     MessageType = "playback_ended"
	MessageTypeChecklistStart    MessageType = "checklist_start"
	MessageTypeChecklistNext     MessageType = "checklist_next"
	MessageTypeChecklistPrevious MessageType = "checklist_previous"
	MessageTypeChecklistSelect   MessageType = "checklist_select"
	MessageTypeChecklistRead     MessageType = "checklist_read"
	MessageTypePing              MessageType = "ping"
)

// Server to client
const (
	MessageTypeSession           MessageType = "session"
	MessageTypeStatus            MessageType = "status"
	MessageTypeMessage           MessageType = "message"
	MessageTypeTranscriptInterim MessageType = "transcript_interim"
	MessageTypeDegraded          MessageType = "degraded"
	MessageTypeAudioStart        MessageType = "audio_start"
	MessageTypeAudioEnd          MessageType = "audio_end"
	MessageTypeAudioStop         MessageType = "audio_stop"
	MessageTypeChecklist         MessageType = "checklist"
	MessageTypeError             MessageType = "error"
	MessageTypePong              MessageType = "pong"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage    = "invalid_message"
	ErrorCodeSessionActive     = "session_active"
	ErrorCodeNoSession         = "no_session"
	ErrorCodeNoChecklist       = "no_checklist"
	ErrorCodeInvalidTransition = "invalid_transition"
	ErrorCodeSessionClosed     = "session_closed"
	ErrorCodeInternal          = "internal_error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// SettingsOverride lets a client change user settings for one session
type SettingsOverride struct {
	VoiceGuidance         *bool `json:"voice_guidance,omitempty"`
	NotifyContactsOnStart *bool `json:"notify_contacts_on_start,omitempty"`
}

// InboundMessage is any client message. Fields are used depending on Type.
type InboundMessage struct {
	BaseMessage
	Description string            `json:"description,omitempty"`
	Text        string            `json:"text,omitempty"`
	ClipID      string            `json:"clip_id,omitempty"`
	Index       *int              `json:"index,omitempty"`
	Settings    *SettingsOverride `json:"settings,omitempty"`
}

// SessionMessage announces the id of the running emergency session
type SessionMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	Persisted bool   `json:"persisted"`
}

type StatusMessage struct {
	BaseMessage
	Status   entities.SessionStatus `json:"status"`
	Previous entities.SessionStatus `json:"previous"`
}

// ChatMessage carries one transcript message with its visual aid resolved
type ChatMessage struct {
	BaseMessage
	ID             string               `json:"id"`
	Role           entities.MessageRole `json:"role"`
	Content        string               `json:"content"`
	AwaitsResponse bool                 `json:"awaits_response"`
	AssetKey       string               `json:"asset_key,omitempty"`
	AssetURL       string               `json:"asset_url,omitempty"`
	SessionID      string               `json:"session_id,omitempty"`
}

type InterimMessage struct {
	BaseMessage
	Text string `json:"text"`
}

type DegradedMessage struct {
	BaseMessage
	Reason string `json:"reason"`
}

type AudioMessage struct {
	BaseMessage
	ClipID string `json:"clip_id"`
	Bytes  int    `json:"bytes,omitempty"`
}

type ChecklistMessage struct {
	BaseMessage
	State checklist.State `json:"state"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses a client message and checks the fields its type requires
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if msg.Timestamp == "" {
		msg.Timestamp = now()
	}

	switch msg.Type {
	case MessageTypeSessionStart, MessageTypeChecklistStart:
		if strings.TrimSpace(msg.Description) == "" {
			return nil, fmt.Errorf("description is required")
		}
	case MessageTypeUserText:
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
	case MessageTypePlaybackEnded:
		if msg.ClipID == "" {
			return nil, fmt.Errorf("clip_id is required")
		}
	case MessageTypeChecklistSelect:
		if msg.Index == nil {
			return nil, fmt.Errorf("index is required")
		}
	case MessageTypeInterrupt, MessageTypePause, MessageTypeListen, MessageTypeCallContact,
		MessageTypeNotifyContacts, MessageTypeClose, MessageTypeChecklistNext,
		MessageTypeChecklistPrevious, MessageTypeChecklistRead, MessageTypePing:
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}

	return &msg, nil
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func base(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: now()}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: base(MessageTypeError), Code: code, Message: message}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage() *PongMessage {
	return &PongMessage{BaseMessage: base(MessageTypePong)}
}

func CreateSessionMessage(sessionID string, persisted bool) *SessionMessage {
	return &SessionMessage{BaseMessage: base(MessageTypeSession), SessionID: sessionID, Persisted: persisted}
}

func CreateStatusMessage(previous, current entities.SessionStatus) *StatusMessage {
	return &StatusMessage{BaseMessage: base(MessageTypeStatus), Status: current, Previous: previous}
}

// CreateChatMessage converts a transcript message. resolve maps asset keys to URLs.
func CreateChatMessage(msg entities.Message, sessionID string, resolve func(string) (string, bool)) *ChatMessage {
	out := &ChatMessage{
		BaseMessage:    base(MessageTypeMessage),
		ID:             msg.ID,
		Role:           msg.Role,
		Content:        msg.Content,
		AwaitsResponse: msg.AwaitsResponse,
		AssetKey:       msg.AssetKey,
		SessionID:      sessionID,
	}
	if msg.AssetKey != "" && resolve != nil {
		if url, ok := resolve(msg.AssetKey); ok {
			out.AssetURL = url
		}
	}
	return out
}

func CreateInterimMessage(text string) *InterimMessage {
	return &InterimMessage{BaseMessage: base(MessageTypeTranscriptInterim), Text: text}
}

func CreateDegradedMessage(reason string) *DegradedMessage {
	return &DegradedMessage{BaseMessage: base(MessageTypeDegraded), Reason: reason}
}

func CreateAudioMessage(t MessageType, clipID string, size int) *AudioMessage {
	return &AudioMessage{BaseMessage: base(t), ClipID: clipID, Bytes: size}
}

func CreateChecklistMessage(state checklist.State) *ChecklistMessage {
	return &ChecklistMessage{BaseMessage: base(MessageTypeChecklist), State: state}
}
