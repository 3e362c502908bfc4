package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
	"github.com/satriahrh/lifeline/internal/capture"
	"github.com/satriahrh/lifeline/internal/gateway"
	"github.com/satriahrh/lifeline/internal/orchestrator"
	"github.com/satriahrh/lifeline/internal/protocols"
	"github.com/satriahrh/lifeline/internal/speech"
)

// RecognizerFactory binds a speech recognizer to one client's microphone
type RecognizerFactory func(source repositories.AudioSource) repositories.SpeechRecognizer

// EmergencyDeps are the shared adapters every session is built from
type EmergencyDeps struct {
	Classifier    repositories.Classifier
	Dialogue      repositories.DialogueModel
	Synthesizer   repositories.SpeechSynthesizer
	Recognizers   RecognizerFactory
	Sessions      repositories.SessionRepository
	Profiles      repositories.ProfileRepository
	Caller        repositories.ContactCaller
	Notifier      repositories.ContactNotifier
	Registry      *protocols.Registry
	CapturePolicy capture.RestartPolicy
	Defaults      orchestrator.Settings
}

// EmergencyService builds per-client orchestrators and serves the REST
// operations around a session.
type EmergencyService struct {
	deps   EmergencyDeps
	logger *zap.Logger
}

func NewEmergencyService(deps EmergencyDeps, logger *zap.Logger) *EmergencyService {
	if deps.Registry == nil {
		deps.Registry = protocols.Default()
	}
	if deps.CapturePolicy == (capture.RestartPolicy{}) {
		deps.CapturePolicy = capture.DefaultRestartPolicy()
	}
	return &EmergencyService{deps: deps, logger: logger}
}

func (s *EmergencyService) Registry() *protocols.Registry {
	return s.deps.Registry
}

// DefaultSettings are the server-side user settings before client overrides
func (s *EmergencyService) DefaultSettings() orchestrator.Settings {
	return s.deps.Defaults
}

// NewPlayer creates the speech player of one client
func (s *EmergencyService) NewPlayer(output repositories.AudioOutput, settings orchestrator.Settings) *speech.Player {
	return speech.NewPlayer(s.deps.Synthesizer, output, speech.Settings{VoiceGuidance: settings.VoiceGuidance}, s.logger)
}

// NewSession wires an orchestrator to a client's player and microphone.
// A nil source, or no recognizer backend, leaves the session text-only.
func (s *EmergencyService) NewSession(player *speech.Player, source repositories.AudioSource, settings orchestrator.Settings, events orchestrator.Events) *orchestrator.Orchestrator {
	var recognizer repositories.SpeechRecognizer
	if s.deps.Recognizers != nil && source != nil {
		recognizer = s.deps.Recognizers(source)
	}

	listener := capture.NewAdapter(recognizer, s.deps.CapturePolicy, s.logger)

	return orchestrator.New(orchestrator.Dependencies{
		Classifier: s.deps.Classifier,
		Dialogue:   s.deps.Dialogue,
		Speaker:    player,
		Listener:   listener,
		Sessions:   s.deps.Sessions,
		Caller:     s.deps.Caller,
		Notifier:   s.deps.Notifier,
		Registry:   s.deps.Registry,
	}, settings, events, s.logger)
}

// GetSession returns a session owned by userID. Sessions of other users are
// reported as not found.
func (s *EmergencyService) GetSession(ctx context.Context, userID, sessionID string) (*entities.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", entities.ErrSessionNotFound)
	}
	if s.deps.Sessions == nil {
		return nil, entities.ErrSessionNotFound
	}

	session, err := s.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		s.logger.Warn("Session access denied",
			zap.String("sessionID", sessionID),
			zap.String("userID", userID))
		return nil, entities.ErrSessionNotFound
	}
	return session, nil
}

func (s *EmergencyService) Call(ctx context.Context, userID, sessionID string) (repositories.CallResult, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return repositories.CallResult{}, err
	}
	if s.deps.Caller == nil {
		return repositories.CallResult{}, fmt.Errorf("%w: calling is not configured", entities.ErrGatewayRejected)
	}
	return s.deps.Caller.CallEmergencyContact(ctx, sessionID)
}

func (s *EmergencyService) Notify(ctx context.Context, userID, sessionID string) (repositories.NotifyResult, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return repositories.NotifyResult{}, err
	}
	if s.deps.Notifier == nil {
		return repositories.NotifyResult{}, fmt.Errorf("%w: notifications are not configured", entities.ErrGatewayRejected)
	}
	return s.deps.Notifier.NotifyEmergencyContacts(ctx, sessionID)
}

// CallScript returns what to tell the 911 operator
func (s *EmergencyService) CallScript(ctx context.Context, userID, sessionID string) (string, error) {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	return gateway.CallScript(session), nil
}

// Classify proxies the classifier. Failures yield "unknown".
func (s *EmergencyService) Classify(ctx context.Context, text string) string {
	if s.deps.Classifier == nil || strings.TrimSpace(text) == "" {
		return entities.EmergencyTypeUnknown
	}

	label, err := s.deps.Classifier.Classify(ctx, text)
	if err != nil || strings.TrimSpace(label) == "" {
		s.logger.Warn("Classification failed", zap.Error(err))
		return entities.EmergencyTypeUnknown
	}
	return label
}

// Synthesize proxies the speech backend for clients that play audio themselves
func (s *EmergencyService) Synthesize(ctx context.Context, texts []string) ([]byte, error) {
	if s.deps.Synthesizer == nil {
		return nil, fmt.Errorf("%w: no synthesizer configured", entities.ErrSynthesisFailed)
	}

	audio, err := s.deps.Synthesizer.Synthesize(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, entities.ErrSynthesisFailed
	}
	return audio, nil
}

// UpsertProfile stores the caller's contact profile
func (s *EmergencyService) UpsertProfile(ctx context.Context, userID string, profile *entities.Profile) error {
	if s.deps.Profiles == nil {
		return errors.New("profile storage is not configured")
	}
	profile.UserID = userID
	if err := profile.Validate(); err != nil {
		return err
	}
	return s.deps.Profiles.Upsert(ctx, profile)
}

func (s *EmergencyService) GetProfile(ctx context.Context, userID string) (*entities.Profile, error) {
	if s.deps.Profiles == nil {
		return nil, entities.ErrProfileNotFound
	}
	return s.deps.Profiles.GetByUserID(ctx, userID)
}
