package repositories

import "context"

// Telephony places voice calls and sends SMS messages
type Telephony interface {
	PlaceCall(ctx context.Context, to, twiml string) (string, error)
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// CallResult describes an initiated emergency-contact call
type CallResult struct {
	Message      string `json:"message"`
	CallSID      string `json:"callSid"`
	ContactName  string `json:"-"`
	ContactPhone string `json:"-"`
}

// NotifyResult describes a notification dispatch attempt
type NotifyResult struct {
	Message   string `json:"message"`
	Attempted int    `json:"attempted"`
	Failed    int    `json:"failed"`
}

// ContactCaller calls the primary emergency contact of a session owner
type ContactCaller interface {
	CallEmergencyContact(ctx context.Context, sessionID string) (CallResult, error)
}

// ContactNotifier texts every known family contact of a session owner
type ContactNotifier interface {
	NotifyEmergencyContacts(ctx context.Context, sessionID string) (NotifyResult, error)
}
