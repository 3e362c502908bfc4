package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/protocols"
)

func TestBuildPromptWithProtocol(t *testing.T) {
	registry := protocols.Default()
	choking, ok := registry.Lookup("CHOKING")
	if !ok {
		t.Fatal("Expected CHOKING protocol")
	}

	transcript := []entities.Message{
		entities.NewUserMessage("he can't breathe"),
		entities.NewAssistantMessage(entities.Turn{Text: "Can he cough?", AwaitsResponse: true}),
	}

	prompt := BuildPrompt(transcript, choking, registry.Assets())

	for _, want := range []string{
		"identified as '" + choking.Name + "'",
		"user: he can't breathe\nassistant: Can he cough?",
		"1. " + choking.Steps[0],
		"- " + choking.WarningSigns[0],
		"- 'heimlich_maneuver': Use when instructing on abdominal thrusts.",
		"'call_emergency_contact'",
		`"responses"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestBuildPromptGeneric(t *testing.T) {
	prompt := BuildPrompt([]entities.Message{entities.NewUserMessage("something is wrong")}, nil, nil)

	if !strings.Contains(prompt, "could not be automatically categorized") {
		t.Error("Expected generic assessment prompt")
	}
	if !strings.Contains(prompt, "user: something is wrong") {
		t.Error("Expected history in prompt")
	}
	if strings.Contains(prompt, "Visual Aids") {
		t.Error("Generic prompt should not list visual aids")
	}
}

func TestParseDialogueResponse(t *testing.T) {
	logger := zaptest.NewLogger(t)

	raw := `{"responses":[
		{"text":"Okay, calling them now.","awaits_response":false,"action":"call_emergency_contact"},
		{"text":"Push hard and fast.","awaits_response":true,"asset_key":"cpr_compressions"},
		{"text":"I'll order food.","awaits_response":false,"action":"order_pizza","asset_key":"mystery"}
	]}`

	turns, err := ParseDialogueResponse(raw, logger)
	if err != nil {
		t.Fatalf("ParseDialogueResponse failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(turns))
	}
	if turns[0].Action != entities.ActionCallEmergencyContact || turns[0].AwaitsResponse {
		t.Errorf("Unexpected first turn %+v", turns[0])
	}
	if turns[1].AssetKey != "cpr_compressions" || !turns[1].AwaitsResponse {
		t.Errorf("Unexpected second turn %+v", turns[1])
	}
	if turns[2].Action != entities.ActionNone {
		t.Errorf("Unknown action should be dropped, got %q", turns[2].Action)
	}
	if turns[2].AssetKey != "mystery" {
		t.Errorf("Unknown asset key should be kept, got %q", turns[2].AssetKey)
	}
}

func TestParseDialogueResponseRejects(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "sure, here you go"},
		{"empty list", `{"responses":[]}`},
		{"missing key", `{"answer":"x"}`},
		{"missing text", `{"responses":[{"awaits_response":true}]}`},
		{"missing awaits", `{"responses":[{"text":"hi"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDialogueResponse(tt.raw, logger)
			if !errors.Is(err, entities.ErrDialogueMalformed) {
				t.Errorf("Expected ErrDialogueMalformed, got %v", err)
			}
		})
	}
}

func TestParseDialogueResponseCodeFence(t *testing.T) {
	raw := "```json\n{\"responses\":[{\"text\":\"Stay calm.\",\"awaits_response\":true}]}\n```"
	turns, err := ParseDialogueResponse(raw, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("ParseDialogueResponse failed: %v", err)
	}
	if turns[0].Text != "Stay calm." {
		t.Errorf("Unexpected text %q", turns[0].Text)
	}
}

type fakeModels struct {
	errs     []error
	text     string
	calls    int
	lastConf *genai.GenerateContentConfig
	lastText string
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastConf = config
	f.lastText = contents[0].Parts[0].Text
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func newTestDialogue(t *testing.T, models *fakeModels) *GeminiDialogue {
	d := newGeminiDialogue(models, GeminiConfig{APIKey: "k"}, protocols.Default(), zaptest.NewLogger(t))
	d.retryDelay = 0
	return d
}

func TestGeminiDialogueRespond(t *testing.T) {
	models := &fakeModels{text: `{"responses":[{"text":"Is the person breathing?","awaits_response":true}]}`}
	d := newTestDialogue(t, models)

	turns, err := d.Respond(context.Background(), []entities.Message{entities.NewUserMessage("help")}, nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "Is the person breathing?" {
		t.Errorf("Unexpected turns %+v", turns)
	}
	if models.lastConf.ResponseMIMEType != "application/json" || models.lastConf.ResponseSchema == nil {
		t.Error("Expected structured JSON output config")
	}
	if !strings.Contains(models.lastText, "user: help") {
		t.Error("Expected transcript in prompt")
	}
}

func TestGeminiDialogueRetries(t *testing.T) {
	models := &fakeModels{
		errs: []error{errors.New("unavailable"), nil},
		text: `{"responses":[{"text":"ok","awaits_response":false}]}`,
	}
	d := newTestDialogue(t, models)

	if _, err := d.Respond(context.Background(), nil, nil); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if models.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", models.calls)
	}
}

func TestGeminiDialogueGivesUp(t *testing.T) {
	boom := errors.New("unavailable")
	models := &fakeModels{errs: []error{boom, boom, boom}}
	d := newTestDialogue(t, models)

	if _, err := d.Respond(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped provider error, got %v", err)
	}
	if models.calls != maxAttempts {
		t.Errorf("Expected %d calls, got %d", maxAttempts, models.calls)
	}
}

func TestGeminiDialogueMalformed(t *testing.T) {
	d := newTestDialogue(t, &fakeModels{text: `{"responses":[]}`})

	if _, err := d.Respond(context.Background(), nil, nil); !errors.Is(err, entities.ErrDialogueMalformed) {
		t.Errorf("Expected ErrDialogueMalformed, got %v", err)
	}
}

func TestValidateGeminiConfig(t *testing.T) {
	if err := ValidateGeminiConfig(GeminiConfig{}); err == nil {
		t.Error("Expected error without API key")
	}
	if err := ValidateGeminiConfig(GeminiConfig{APIKey: "k", Temperature: 3}); err == nil {
		t.Error("Expected error for out-of-range temperature")
	}
}
