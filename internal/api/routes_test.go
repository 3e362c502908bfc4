package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lifeline/adapters/memory"
	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/auth"
	"github.com/satriahrh/lifeline/internal/gateway"
	"github.com/satriahrh/lifeline/internal/websocket"
	"github.com/satriahrh/lifeline/usecase"
)

type stubClassifier struct {
	label string
	err   error
}

func (s stubClassifier) Classify(ctx context.Context, text string) (string, error) {
	return s.label, s.err
}

type stubSynth struct {
	audio []byte
	err   error
}

func (s stubSynth) Synthesize(ctx context.Context, texts []string) ([]byte, error) {
	return s.audio, s.err
}

type stubTelephony struct {
	callErr error
}

func (s stubTelephony) PlaceCall(ctx context.Context, to, twiml string) (string, error) {
	if s.callErr != nil {
		return "", s.callErr
	}
	return "CA123", nil
}

func (s stubTelephony) SendSMS(ctx context.Context, to, body string) (string, error) {
	return "SM1", nil
}

type fixture struct {
	e         *echo.Echo
	sessions  *memory.SessionRepository
	profiles  *memory.ProfileRepository
	token     string
	sessionID string
}

type options struct {
	classifier stubClassifier
	synth      stubSynth
	telephony  stubTelephony
}

func newFixture(t *testing.T, opts options) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	sessions := memory.NewSessionRepository()
	profiles := memory.NewProfileRepository()

	session := entities.NewSession("user-1", "he is not breathing")
	session.EmergencyType = "CPR_NEEDED"
	session.AddMessage(entities.NewAssistantMessage(entities.Turn{Text: "Push hard.", AssetKey: "cpr_compressions"}))
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	emergency := usecase.NewEmergencyService(usecase.EmergencyDeps{
		Classifier:  opts.classifier,
		Synthesizer: opts.synth,
		Sessions:    sessions,
		Profiles:    profiles,
		Caller:      gateway.NewCaller(sessions, profiles, opts.telephony, logger),
		Notifier:    gateway.NewNotifier(sessions, profiles, opts.telephony, logger),
	}, logger)
	checklists := usecase.NewChecklistService(opts.classifier, emergency.Registry(), logger)

	authenticator, err := auth.NewAuthenticator("test-secret")
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	token, _, err := authenticator.GenerateUserToken("user-1")
	if err != nil {
		t.Fatalf("GenerateUserToken failed: %v", err)
	}

	e := echo.New()
	InitRoutes(e, Dependencies{
		Emergency: emergency,
		Hub:       websocket.NewHub(emergency, checklists, websocket.Config{PlaybackTimeout: time.Second}, logger),
		Auth:      authenticator,
		Logger:    logger,
	})

	return &fixture{e: e, sessions: sessions, profiles: profiles, token: token, sessionID: session.ID}
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authed {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, options{})
	if rec := f.do(http.MethodGet, "/health", "", false); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestProtocols(t *testing.T) {
	f := newFixture(t, options{})

	rec := f.do(http.MethodGet, "/api/v1/protocols", "", false)
	var list []ProtocolSummary
	decode(t, rec, &list)
	if len(list) != 5 {
		t.Errorf("Expected 5 protocols, got %d", len(list))
	}

	rec = f.do(http.MethodGet, "/api/v1/protocols/CHOKING", "", false)
	var p entities.Protocol
	decode(t, rec, &p)
	if rec.Code != http.StatusOK || len(p.Steps) == 0 {
		t.Errorf("Unexpected protocol %d %+v", rec.Code, p)
	}

	if rec := f.do(http.MethodGet, "/api/v1/protocols/NOPE", "", false); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	f := newFixture(t, options{classifier: stubClassifier{label: "BURN"}})
	var res ClassifyResponse
	decode(t, f.do(http.MethodPost, "/api/v1/classify", `{"text":"hot pan"}`, false), &res)
	if res.Prediction != "BURN" {
		t.Errorf("Expected BURN, got %s", res.Prediction)
	}

	f = newFixture(t, options{classifier: stubClassifier{err: errors.New("down")}})
	rec := f.do(http.MethodPost, "/api/v1/classify", `{"text":"hot pan"}`, false)
	decode(t, rec, &res)
	if rec.Code != http.StatusOK || res.Prediction != "unknown" {
		t.Errorf("Expected 200 unknown, got %d %s", rec.Code, res.Prediction)
	}
}

func TestSpeech(t *testing.T) {
	tests := []struct {
		name  string
		synth stubSynth
		body  string
		want  int
	}{
		{"ok", stubSynth{audio: []byte("abc")}, `{"texts":["hello"]}`, http.StatusOK},
		{"no texts", stubSynth{audio: []byte("abc")}, `{"texts":[]}`, http.StatusBadRequest},
		{"blank texts", stubSynth{audio: []byte("abc")}, `{"texts":["  "]}`, http.StatusBadRequest},
		{"unauthorized", stubSynth{err: entities.ErrUnauthorized}, `{"texts":["hello"]}`, http.StatusUnauthorized},
		{"empty audio", stubSynth{}, `{"texts":["hello"]}`, http.StatusInternalServerError},
		{"failure", stubSynth{err: entities.ErrSynthesisFailed}, `{"texts":["hello"]}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, options{synth: tt.synth})
			rec := f.do(http.MethodPost, "/api/v1/speech", tt.body, false)
			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusOK {
				var res SpeechResponse
				decode(t, rec, &res)
				audio, _ := base64.StdEncoding.DecodeString(res.AudioBase64)
				if string(audio) != "abc" {
					t.Errorf("Unexpected audio %q", audio)
				}
			}
		})
	}
}

func TestCalls(t *testing.T) {
	validProfile := &entities.Profile{UserID: "user-1", FullName: "Ann", EmergencyContactName: "Bob", EmergencyContactPhone: "(248) 756-3656"}
	invalidProfile := &entities.Profile{UserID: "user-1", FullName: "Ann", EmergencyContactPhone: "12"}

	tests := []struct {
		name      string
		profile   *entities.Profile
		telephony stubTelephony
		body      func(f *fixture) string
		authed    bool
		want      int
	}{
		{"ok", validProfile, stubTelephony{}, func(f *fixture) string { return `{"sessionId":"` + f.sessionID + `"}` }, true, http.StatusOK},
		{"no token", validProfile, stubTelephony{}, func(f *fixture) string { return `{"sessionId":"` + f.sessionID + `"}` }, false, http.StatusUnauthorized},
		{"missing session id", validProfile, stubTelephony{}, func(f *fixture) string { return `{}` }, true, http.StatusBadRequest},
		{"unknown session", validProfile, stubTelephony{}, func(f *fixture) string { return `{"sessionId":"nope"}` }, true, http.StatusNotFound},
		{"invalid phone", invalidProfile, stubTelephony{}, func(f *fixture) string { return `{"sessionId":"` + f.sessionID + `"}` }, true, http.StatusBadRequest},
		{"missing profile", nil, stubTelephony{}, func(f *fixture) string { return `{"sessionId":"` + f.sessionID + `"}` }, true, http.StatusBadRequest},
		{"provider error", validProfile, stubTelephony{callErr: errors.New("twilio down")}, func(f *fixture) string { return `{"sessionId":"` + f.sessionID + `"}` }, true, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, options{telephony: tt.telephony})
			if tt.profile != nil {
				if err := f.profiles.Upsert(context.Background(), tt.profile); err != nil {
					t.Fatalf("Failed to upsert profile: %v", err)
				}
			}

			rec := f.do(http.MethodPost, "/api/v1/calls", tt.body(f), tt.authed)
			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusOK {
				var res CallResponse
				decode(t, rec, &res)
				if res.CallSID != "CA123" || res.Message != "Call initiated to +12487563656." {
					t.Errorf("Unexpected response %+v", res)
				}
			}
		})
	}
}

func TestNotifications(t *testing.T) {
	f := newFixture(t, options{})
	profile := &entities.Profile{
		UserID:   "user-1",
		FullName: "Ann",
		FamilyMembers: []entities.FamilyMember{
			{Name: "Bob", EmergencyContact: "2487563656"},
			{Name: "Cy", EmergencyContact: "+1 248 756 3656"},
		},
	}
	if err := f.profiles.Upsert(context.Background(), profile); err != nil {
		t.Fatalf("Failed to upsert profile: %v", err)
	}

	rec := f.do(http.MethodPost, "/api/v1/notifications", `{"sessionId":"`+f.sessionID+`"}`, true)
	var res NotifyResponse
	decode(t, rec, &res)
	if rec.Code != http.StatusOK || res.Message != "Attempted to notify 1 contacts." {
		t.Errorf("Unexpected response %d %+v", rec.Code, res)
	}
}

func TestGetSession(t *testing.T) {
	f := newFixture(t, options{})

	rec := f.do(http.MethodGet, "/api/v1/sessions/"+f.sessionID, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var res SessionResponse
	decode(t, rec, &res)
	if len(res.Transcript) == 0 {
		t.Fatal("Expected transcript messages")
	}
	last := res.Transcript[len(res.Transcript)-1]
	if last.AssetURL == "" || !strings.HasSuffix(last.AssetURL, "Chest_compressions.gif") {
		t.Errorf("Expected resolved asset url, got %q", last.AssetURL)
	}

	if rec := f.do(http.MethodGet, "/api/v1/sessions/nope", "", true); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	rec = f.do(http.MethodGet, "/api/v1/sessions/"+f.sessionID+"/call-script", "", true)
	var script CallScriptResponse
	decode(t, rec, &script)
	if !strings.Contains(script.Script, "Emergency Type: cpr needed") {
		t.Errorf("Unexpected script %q", script.Script)
	}
}

func TestProfile(t *testing.T) {
	f := newFixture(t, options{})

	if rec := f.do(http.MethodGet, "/api/v1/profile", "", true); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before upsert, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPut, "/api/v1/profile", `{"full_name":""}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing name, got %d", rec.Code)
	}

	rec := f.do(http.MethodPut, "/api/v1/profile", `{"full_name":"Ann","emergency_contact_phone":"2487563656"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/v1/profile", "", true)
	var p entities.Profile
	decode(t, rec, &p)
	if p.UserID != "user-1" || p.FullName != "Ann" {
		t.Errorf("Unexpected profile %+v", p)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	f := newFixture(t, options{})
	if rec := f.do(http.MethodGet, "/ws", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
