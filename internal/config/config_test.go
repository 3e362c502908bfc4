package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if !cfg.Guidance.VoiceGuidance {
		t.Error("Voice guidance should default to on")
	}
	if cfg.Recognition.MinBackoff.Duration != 100*time.Millisecond || cfg.Recognition.MaxBackoff.Duration != 500*time.Millisecond {
		t.Errorf("Unexpected backoff defaults %s..%s", cfg.Recognition.MinBackoff, cfg.Recognition.MaxBackoff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lifeline.toml")
	content := `
[server]
port = "9090"

[storage]
driver = "redis"
session_ttl = "2h"

[recognition]
min_backoff = "200ms"
max_backoff = "400ms"

[guidance]
voice_guidance = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("NOTIFY_CONTACTS_ON_START", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected env to override port, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Driver != StorageRedis || cfg.Storage.SessionTTL.Duration != 2*time.Hour {
		t.Errorf("Unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Recognition.MinBackoff.Duration != 200*time.Millisecond {
		t.Errorf("Expected min backoff 200ms, got %s", cfg.Recognition.MinBackoff)
	}
	if cfg.Guidance.VoiceGuidance {
		t.Error("Expected voice guidance off from file")
	}
	if !cfg.Guidance.NotifyContactsOnStart {
		t.Error("Expected notify on start from env")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown storage", env: map[string]string{"STORAGE_DRIVER": "postgres"}},
		{name: "remote speech without url", env: map[string]string{"SPEECH_BACKEND": "remote"}},
		{name: "bad bool", env: map[string]string{"VOICE_GUIDANCE": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("Expected load error")
			}
		})
	}
}
