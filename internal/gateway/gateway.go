// Package gateway implements the side effects a session can trigger:
// calling the primary emergency contact and texting family contacts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
	"github.com/satriahrh/lifeline/internal/phone"
)

const (
	callVoice    = "Polly.Matthew-Neural"
	callLanguage = "en-US"

	// smsConcurrency bounds parallel SMS requests per notification
	smsConcurrency = 5

	noContactsMessage = "No valid emergency contacts found to notify."
)

// Caller places the emergency-contact call for a session owner
type Caller struct {
	sessions  repositories.SessionRepository
	profiles  repositories.ProfileRepository
	telephony repositories.Telephony
	logger    *zap.Logger
}

var _ repositories.ContactCaller = (*Caller)(nil)

func NewCaller(sessions repositories.SessionRepository, profiles repositories.ProfileRepository, telephony repositories.Telephony, logger *zap.Logger) *Caller {
	return &Caller{sessions: sessions, profiles: profiles, telephony: telephony, logger: logger}
}

func (c *Caller) CallEmergencyContact(ctx context.Context, sessionID string) (repositories.CallResult, error) {
	session, profile, err := load(ctx, c.sessions, c.profiles, sessionID)
	if err != nil {
		return repositories.CallResult{}, err
	}

	to, err := phone.Normalize(profile.EmergencyContactPhone)
	if err != nil {
		return repositories.CallResult{}, fmt.Errorf("%w: no valid primary emergency contact phone number: %w", entities.ErrGatewayRejected, err)
	}

	doc, err := CallTwiML(session, profile)
	if err != nil {
		return repositories.CallResult{}, fmt.Errorf("failed to build call twiml: %w", err)
	}

	sid, err := c.telephony.PlaceCall(ctx, to, doc)
	if err != nil {
		if !errors.Is(err, entities.ErrGatewayRejected) {
			err = fmt.Errorf("%w: %w", entities.ErrGatewayRejected, err)
		}
		return repositories.CallResult{}, err
	}

	c.logger.Info("Emergency contact call initiated",
		zap.String("sessionID", session.ID),
		zap.String("callSid", sid))

	return repositories.CallResult{
		Message:      fmt.Sprintf("Call initiated to %s.", to),
		CallSID:      sid,
		ContactName:  profile.EmergencyContactName,
		ContactPhone: to,
	}, nil
}

// CallMessage is the alert spoken to the emergency contact
func CallMessage(session *entities.Session, profile *entities.Profile) string {
	emergency := entities.FriendlyLabel(session.EmergencyType)
	return fmt.Sprintf("This is an automated alert from LifeLine. An emergency has been reported for %s. "+
		"The situation is a possible %s. The reported description is: %s. Please check on them immediately. "+
		"Repeating: a possible %s has been reported for %s.",
		profile.FullName, emergency, session.Description, emergency, profile.FullName)
}

// CallTwiML renders the alert as a TwiML document. Text is XML-escaped.
func CallTwiML(session *entities.Session, profile *entities.Profile) (string, error) {
	say := &twiml.VoiceSay{
		Message:  CallMessage(session, profile),
		Voice:    callVoice,
		Language: callLanguage,
	}
	return twiml.Voice([]twiml.Element{say})
}

// Notifier texts every family contact of a session owner
type Notifier struct {
	sessions  repositories.SessionRepository
	profiles  repositories.ProfileRepository
	telephony repositories.Telephony
	logger    *zap.Logger
}

var _ repositories.ContactNotifier = (*Notifier)(nil)

func NewNotifier(sessions repositories.SessionRepository, profiles repositories.ProfileRepository, telephony repositories.Telephony, logger *zap.Logger) *Notifier {
	return &Notifier{sessions: sessions, profiles: profiles, telephony: telephony, logger: logger}
}

// NotifyEmergencyContacts sends one SMS per unique contact number. Individual
// delivery failures are logged and counted but do not fail the dispatch.
func (n *Notifier) NotifyEmergencyContacts(ctx context.Context, sessionID string) (repositories.NotifyResult, error) {
	session, profile, err := load(ctx, n.sessions, n.profiles, sessionID)
	if err != nil {
		return repositories.NotifyResult{}, err
	}

	raws := make([]string, 0, len(profile.FamilyMembers))
	for _, m := range profile.FamilyMembers {
		raws = append(raws, m.EmergencyContact)
	}
	contacts := phone.NormalizeAll(raws)

	if len(contacts) == 0 {
		n.logger.Info("No valid emergency contacts to notify", zap.String("sessionID", session.ID))
		return repositories.NotifyResult{Message: noContactsMessage}, nil
	}

	body := SMSBody(session, profile)
	failures := make([]bool, len(contacts))

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(smsConcurrency)
	for i, to := range contacts {
		g.Go(func() error {
			if _, err := n.telephony.SendSMS(gctx, to, body); err != nil {
				failures[i] = true
				n.logger.Warn("Failed to send emergency SMS",
					zap.String("sessionID", session.ID),
					zap.String("to", to),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}

	n.logger.Info("Emergency contacts notified",
		zap.String("sessionID", session.ID),
		zap.Int("attempted", len(contacts)),
		zap.Int("failed", failed))

	return repositories.NotifyResult{
		Message:   fmt.Sprintf("Attempted to notify %d contacts.", len(contacts)),
		Attempted: len(contacts),
		Failed:    failed,
	}, nil
}

func SMSBody(session *entities.Session, profile *entities.Profile) string {
	emergency := strings.ToUpper(entities.FriendlyLabel(session.EmergencyType))
	return fmt.Sprintf("LifeLine Alert: An emergency (%s) has been reported for %s. Description: \"%s\". The user is receiving first-aid guidance.",
		emergency, profile.FullName, session.Description)
}

// CallScript is what the user reads to the 911 operator
func CallScript(session *entities.Session) string {
	description := session.Description
	if strings.TrimSpace(description) == "" {
		description = "Medical emergency in progress"
	}
	return fmt.Sprintf("Emergency Type: %s\nDescription: %s\n\nPlease send help to my location immediately.",
		entities.FriendlyLabel(session.EmergencyType), description)
}

func load(ctx context.Context, sessions repositories.SessionRepository, profiles repositories.ProfileRepository, sessionID string) (*entities.Session, *entities.Profile, error) {
	if sessionID == "" {
		return nil, nil, fmt.Errorf("%w: session id is required", entities.ErrSessionNotFound)
	}

	session, err := sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	profile, err := profiles.GetByUserID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, entities.ErrProfileNotFound) {
			return nil, nil, fmt.Errorf("%w: %w", entities.ErrGatewayRejected, err)
		}
		return nil, nil, err
	}

	return session, profile, nil
}
