package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
	"github.com/satriahrh/lifeline/internal/protocols"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.4
	defaultTimeoutSeconds = 30
	maxAttempts           = 3
)

// GeminiConfig holds configuration for the Gemini dialogue adapter
type GeminiConfig struct {
	APIKey         string
	Model          string
	Temperature    float32
	TimeoutSeconds int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// contentGenerator is the subset of *genai.Models the dialogue adapter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiDialogue implements DialogueModel using Google's Gemini API
type GeminiDialogue struct {
	models      contentGenerator
	logger      *zap.Logger
	registry    *protocols.Registry
	model       string
	temperature float32
	timeout     time.Duration
	retryDelay  time.Duration
}

var _ repositories.DialogueModel = (*GeminiDialogue)(nil)

// NewGeminiDialogue creates a new Gemini dialogue model
func NewGeminiDialogue(ctx context.Context, config GeminiConfig, registry *protocols.Registry, logger *zap.Logger) (*GeminiDialogue, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiDialogue(client.Models, config, registry, logger), nil
}

func newGeminiDialogue(models contentGenerator, config GeminiConfig, registry *protocols.Registry, logger *zap.Logger) *GeminiDialogue {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiDialogue{
		models:      models,
		logger:      logger,
		registry:    registry,
		model:       model,
		temperature: temperature,
		timeout:     time.Duration(timeoutSeconds) * time.Second,
		retryDelay:  time.Second,
	}
}

// responseSchema constrains the model to {"responses": [{text, awaits_response, asset_key?, action?}]}
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"responses": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"text":            {Type: genai.TypeString},
						"awaits_response": {Type: genai.TypeBoolean},
						"asset_key":       {Type: genai.TypeString},
						"action":          {Type: genai.TypeString},
					},
					Required: []string{"text", "awaits_response"},
				},
			},
		},
		Required: []string{"responses"},
	}
}

// Respond generates the next assistant turns for the transcript
func (g *GeminiDialogue) Respond(ctx context.Context, transcript []entities.Message, protocol *entities.Protocol) ([]entities.Turn, error) {
	var assets []protocols.Asset
	if g.registry != nil {
		assets = g.registry.Assets()
	}
	prompt := BuildPrompt(transcript, protocol, assets)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to generate dialogue: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return nil, fmt.Errorf("%w: no content generated", entities.ErrDialogueMalformed)
	}

	turns, err := ParseDialogueResponse(text, g.logger)
	if err != nil {
		g.logger.Warn("Dialogue response rejected", zap.Error(err), zap.String("response_preview", preview(text)))
		return nil, err
	}

	g.logger.Info("Dialogue turns generated",
		zap.Int("turns", len(turns)),
		zap.Bool("protocol", protocol != nil))

	return turns, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text += part.Text
		}
	}
	return text
}

func preview(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
