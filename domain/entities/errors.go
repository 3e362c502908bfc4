package entities

import "errors"

// Error taxonomy shared by the orchestrator, its collaborators and the API layer.
var (
	// ErrCapabilityUnavailable means speech capture or synthesis is not supported on this host.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrClassificationFailed  = errors.New("classification failed")
	ErrDialogueMalformed     = errors.New("dialogue response malformed")
	ErrSynthesisFailed       = errors.New("speech synthesis failed")
	// ErrGatewayRejected covers missing phone numbers and telephony provider errors.
	ErrGatewayRejected = errors.New("gateway rejected request")
	ErrUnauthorized    = errors.New("unauthorized")

	ErrSessionNotFound    = errors.New("session not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSessionClosed     = errors.New("session closed")
)
