package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
	StorageRedis  = "redis"
)

// Speech synthesis backends
const (
	SpeechElevenLabs = "elevenlabs"
	SpeechRemote     = "remote"
)

// Config is the full server configuration
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Storage     StorageConfig     `toml:"storage"`
	Classifier  ClassifierConfig  `toml:"classifier"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Speech      SpeechConfig      `toml:"speech"`
	Recognition RecognitionConfig `toml:"recognition"`
	Twilio      TwilioConfig      `toml:"twilio"`
	Guidance    GuidanceConfig    `toml:"guidance"`
}

type ServerConfig struct {
	Port            string   `toml:"port"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	IdleTimeout     Duration `toml:"idle_timeout"`
	RateLimit       float64  `toml:"rate_limit"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

type StorageConfig struct {
	Driver        string   `toml:"driver"`
	MongoURI      string   `toml:"mongo_uri"`
	MongoDatabase string   `toml:"mongo_database"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	SessionTTL    Duration `toml:"session_ttl"`
}

type ClassifierConfig struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float32 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// SpeechConfig selects the synthesis backend. ElevenLabs settings are read
// by the tts adapter from ELEVEN_LABS_* variables.
type SpeechConfig struct {
	Backend     string `toml:"backend"`
	ServiceURL  string `toml:"service_url"`
	ServiceAuth string `toml:"service_token"`
}

type RecognitionConfig struct {
	Enabled                bool     `toml:"enabled"`
	Language               string   `toml:"language"`
	SampleRate             int      `toml:"sample_rate"`
	Encoding               string   `toml:"encoding"`
	MinBackoff             Duration `toml:"min_backoff"`
	MaxBackoff             Duration `toml:"max_backoff"`
	MaxConsecutiveFailures int      `toml:"max_consecutive_failures"`
}

type TwilioConfig struct {
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	FromNumber string `toml:"from_number"`
}

// GuidanceConfig holds the server-side defaults of the per-session user settings
type GuidanceConfig struct {
	VoiceGuidance         bool     `toml:"voice_guidance"`
	NotifyContactsOnStart bool     `toml:"notify_contacts_on_start"`
	PlaybackTimeout       Duration `toml:"playback_timeout"`
}

// Duration decodes TOML strings such as "500ms"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: Duration{10 * time.Second},
			IdleTimeout:     Duration{30 * time.Minute},
			RateLimit:       20,
		},
		Auth: AuthConfig{JWTSecret: "lifeline-dev-secret"},
		Storage: StorageConfig{
			Driver:        StorageMemory,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "lifeline",
			RedisAddr:     "localhost:6379",
			SessionTTL:    Duration{24 * time.Hour},
		},
		Classifier: ClassifierConfig{Timeout: Duration{10 * time.Second}},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 30,
		},
		Speech: SpeechConfig{Backend: SpeechElevenLabs},
		Recognition: RecognitionConfig{
			Enabled:                true,
			Language:               "en-US",
			SampleRate:             16000,
			Encoding:               "LINEAR16",
			MinBackoff:             Duration{100 * time.Millisecond},
			MaxBackoff:             Duration{500 * time.Millisecond},
			MaxConsecutiveFailures: 5,
		},
		Guidance: GuidanceConfig{
			VoiceGuidance:   true,
			PlaybackTimeout: Duration{2 * time.Minute},
		},
	}
}

// Load builds the configuration: .env, defaults, optional TOML file, then
// environment overrides.
func Load(path string) (*Config, error) {
	// A missing .env is fine in production
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("LIFELINE_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.MongoURI, "MONGODB_URI")
	setString(&c.Storage.MongoDatabase, "MONGODB_DATABASE")
	setString(&c.Storage.RedisAddr, "REDIS_ADDR")
	setString(&c.Storage.RedisPassword, "REDIS_PASSWORD")

	setString(&c.Classifier.URL, "CLASSIFIER_URL")

	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")

	setString(&c.Speech.Backend, "SPEECH_BACKEND")
	setString(&c.Speech.ServiceURL, "SPEECH_SERVICE_URL")
	setString(&c.Speech.ServiceAuth, "SPEECH_SERVICE_TOKEN")

	setString(&c.Recognition.Language, "RECOGNITION_LANGUAGE")
	setString(&c.Recognition.Encoding, "RECOGNITION_ENCODING")

	setString(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&c.Twilio.FromNumber, "TWILIO_PHONE_NUMBER")

	var errs []error
	errs = append(errs,
		setInt(&c.Storage.RedisDB, "REDIS_DB"),
		setInt(&c.Recognition.SampleRate, "RECOGNITION_SAMPLE_RATE"),
		setBool(&c.Recognition.Enabled, "RECOGNITION_ENABLED"),
		setBool(&c.Guidance.VoiceGuidance, "VOICE_GUIDANCE"),
		setBool(&c.Guidance.NotifyContactsOnStart, "NOTIFY_CONTACTS_ON_START"),
	)
	return errors.Join(errs...)
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageMongo, StorageRedis:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Speech.Backend {
	case SpeechElevenLabs:
	case SpeechRemote:
		if c.Speech.ServiceURL == "" {
			return errors.New("speech service url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown speech backend %q", c.Speech.Backend)
	}

	if c.Server.ShutdownTimeout.Duration <= 0 || c.Classifier.Timeout.Duration <= 0 || c.Guidance.PlaybackTimeout.Duration <= 0 || c.Server.IdleTimeout.Duration <= 0 {
		return errors.New("timeouts must be positive")
	}

	if c.Recognition.MinBackoff.Duration <= 0 || c.Recognition.MaxBackoff.Duration < c.Recognition.MinBackoff.Duration {
		return fmt.Errorf("invalid recognition backoff %s..%s", c.Recognition.MinBackoff, c.Recognition.MaxBackoff)
	}

	if c.Recognition.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("max consecutive failures must be positive, got %d", c.Recognition.MaxConsecutiveFailures)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
