package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lifeline/domain/entities"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Setenv("ELEVEN_LABS_API_KEY", "")
	config := NewElevenLabsConfigFromEnv()
	if _, err := NewElevenLabsTTS(config, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}

	t.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}
	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}
	if tts.modelID != "eleven_turbo_v2" || tts.stability != 0.7 || tts.clarity != 0.2 {
		t.Errorf("Unexpected voice defaults: model=%s stability=%f clarity=%f", tts.modelID, tts.stability, tts.clarity)
	}
}

func TestElevenLabsSynthesizeConcatenatesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req ElevenLabsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.ModelID != defaultModelID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("<" + req.Text + ">"))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	audio, err := tts.Synthesize(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "<one><two><three>" {
		t.Errorf("Expected ordered concatenation, got %q", audio)
	}
}

func TestElevenLabsSynthesizeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.Synthesize(context.Background(), []string{"hello"}); !errors.Is(err, entities.ErrSynthesisFailed) {
		t.Errorf("Expected ErrSynthesisFailed, got %v", err)
	}
	if _, err := tts.Synthesize(context.Background(), nil); !errors.Is(err, entities.ErrSynthesisFailed) {
		t.Errorf("Expected ErrSynthesisFailed for empty batch, got %v", err)
	}
}

func TestRemoteSynthesizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			json.NewEncoder(w).Encode(map[string]string{"audio_base64": base64.StdEncoding.EncodeToString([]byte("mp3"))})
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	logger := zaptest.NewLogger(t)
	synth := func(token string) *RemoteSynthesizer {
		r, err := NewRemoteSynthesizer(server.URL, token, logger)
		if err != nil {
			t.Fatalf("NewRemoteSynthesizer failed: %v", err)
		}
		return r
	}

	audio, err := synth("good").Synthesize(context.Background(), []string{"hi"})
	if err != nil || string(audio) != "mp3" {
		t.Errorf("Expected decoded audio, got %q, %v", audio, err)
	}

	if _, err := synth("nope").Synthesize(context.Background(), []string{"hi"}); !errors.Is(err, entities.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}

	if _, err := synth("broken").Synthesize(context.Background(), []string{"hi"}); !errors.Is(err, entities.ErrSynthesisFailed) {
		t.Errorf("Expected ErrSynthesisFailed, got %v", err)
	}

	if _, err := NewRemoteSynthesizer("", "", logger); err == nil {
		t.Error("Expected error for missing url")
	}
}

func TestElevenLabsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "revoked", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	if _, err := tts.Synthesize(context.Background(), []string{"hello"}); !errors.Is(err, entities.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestElevenLabsTTS_Synthesize_Integration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	tts, err := NewElevenLabsTTS(NewElevenLabsConfigFromEnv(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	audio, err := tts.Synthesize(context.Background(), []string{"Stay calm.", "Help is on the way."})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(audio) == 0 {
		t.Error("Expected audio data")
	}
}
