package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/adapters/classifier"
	"github.com/satriahrh/lifeline/adapters/llm"
	"github.com/satriahrh/lifeline/adapters/memory"
	"github.com/satriahrh/lifeline/adapters/mongo"
	"github.com/satriahrh/lifeline/adapters/redis"
	"github.com/satriahrh/lifeline/adapters/stt"
	"github.com/satriahrh/lifeline/adapters/tts"
	"github.com/satriahrh/lifeline/adapters/twilio"
	"github.com/satriahrh/lifeline/domain/repositories"
	"github.com/satriahrh/lifeline/internal/capture"
	"github.com/satriahrh/lifeline/internal/config"
	"github.com/satriahrh/lifeline/internal/gateway"
	"github.com/satriahrh/lifeline/internal/orchestrator"
	"github.com/satriahrh/lifeline/internal/protocols"
	"github.com/satriahrh/lifeline/usecase"
)

// adapterSet holds the shared backends. Optional ones stay nil when not configured.
type adapterSet struct {
	sessions    repositories.SessionRepository
	profiles    repositories.ProfileRepository
	classifier  repositories.Classifier
	dialogue    repositories.DialogueModel
	synthesizer repositories.SpeechSynthesizer
	recognizers usecase.RecognizerFactory
	caller      repositories.ContactCaller
	notifier    repositories.ContactNotifier
	registry    *protocols.Registry

	closers []func(context.Context) error
}

func buildAdapters(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*adapterSet, error) {
	set := &adapterSet{registry: protocols.Default()}

	if err := set.buildStorage(ctx, cfg, logger); err != nil {
		set.close(logger)
		return nil, err
	}

	if cfg.Classifier.URL != "" {
		set.classifier = classifier.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.Timeout.Duration, logger)
	} else {
		logger.Warn("Classifier url not configured, every session uses the generic assessment")
	}

	dialogue, err := llm.NewGeminiDialogue(ctx, llm.GeminiConfig{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		Temperature:    cfg.Gemini.Temperature,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	}, set.registry, logger)
	if err != nil {
		set.close(logger)
		return nil, fmt.Errorf("failed to create dialogue model: %w", err)
	}
	set.dialogue = dialogue

	if err := set.buildSynthesizer(cfg, logger); err != nil {
		logger.Warn("Speech synthesis unavailable, sessions run without voice", zap.Error(err))
	}

	if cfg.Recognition.Enabled {
		set.buildRecognizers(ctx, cfg, logger)
	}

	set.buildTelephony(cfg, logger)

	return set, nil
}

func (s *adapterSet) buildStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	switch cfg.Storage.Driver {
	case config.StorageMongo:
		client, err := mongo.NewClient(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, logger)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, client.Close)
		s.sessions = mongo.NewSessionRepository(client.Database)
		s.profiles = mongo.NewProfileRepository(client.Database)

	case config.StorageRedis:
		rdb, err := redis.NewClient(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func(context.Context) error { return rdb.Close() })
		s.sessions = redis.NewSessionRepository(rdb, cfg.Storage.SessionTTL.Duration)
		s.profiles = redis.NewProfileRepository(rdb)

	default:
		logger.Warn("Using in-memory storage, sessions are lost on restart")
		s.sessions = memory.NewSessionRepository()
		s.profiles = memory.NewProfileRepository()
	}

	logger.Info("Storage ready", zap.String("driver", cfg.Storage.Driver))
	return nil
}

func (s *adapterSet) buildSynthesizer(cfg *config.Config, logger *zap.Logger) error {
	switch cfg.Speech.Backend {
	case config.SpeechRemote:
		synth, err := tts.NewRemoteSynthesizer(cfg.Speech.ServiceURL, cfg.Speech.ServiceAuth, logger)
		if err != nil {
			return err
		}
		s.synthesizer = synth
	default:
		synth, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return err
		}
		s.synthesizer = synth
	}
	return nil
}

func (s *adapterSet) buildRecognizers(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	google, err := stt.NewGoogleSpeech(ctx, repositories.AudioConfig{
		SampleRate: cfg.Recognition.SampleRate,
		Encoding:   cfg.Recognition.Encoding,
		Language:   cfg.Recognition.Language,
	}, logger)
	if err != nil {
		// Sessions start degraded: typed input only
		logger.Warn("Speech recognition unavailable", zap.Error(err))
		return
	}

	s.closers = append(s.closers, func(context.Context) error { return google.Close() })
	s.recognizers = func(source repositories.AudioSource) repositories.SpeechRecognizer {
		return google.Recognizer(source)
	}
}

func (s *adapterSet) buildTelephony(cfg *config.Config, logger *zap.Logger) {
	client, err := twilio.New(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
	}, logger)
	if err != nil {
		logger.Warn("Telephony not configured, contact calls and SMS are disabled", zap.Error(err))
		return
	}

	s.caller = gateway.NewCaller(s.sessions, s.profiles, client, logger)
	s.notifier = gateway.NewNotifier(s.sessions, s.profiles, client, logger)
}

func (s *adapterSet) emergencyDeps(cfg *config.Config) usecase.EmergencyDeps {
	return usecase.EmergencyDeps{
		Classifier:  s.classifier,
		Dialogue:    s.dialogue,
		Synthesizer: s.synthesizer,
		Recognizers: s.recognizers,
		Sessions:    s.sessions,
		Profiles:    s.profiles,
		Caller:      s.caller,
		Notifier:    s.notifier,
		Registry:    s.registry,
		CapturePolicy: capture.RestartPolicy{
			MinBackoff:             cfg.Recognition.MinBackoff.Duration,
			MaxBackoff:             cfg.Recognition.MaxBackoff.Duration,
			MaxConsecutiveFailures: cfg.Recognition.MaxConsecutiveFailures,
		},
		Defaults: orchestrator.Settings{
			VoiceGuidance:         cfg.Guidance.VoiceGuidance,
			NotifyContactsOnStart: cfg.Guidance.NotifyContactsOnStart,
		},
	}
}

func (s *adapterSet) close(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("Failed to close adapter", zap.Error(err))
		}
	}
}
