package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

// RemoteSynthesizer calls a hosted speech endpoint that accepts
// {"texts": [...]} and answers {"audio_base64": "..."}.
type RemoteSynthesizer struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

var _ repositories.SpeechSynthesizer = (*RemoteSynthesizer)(nil)

type remoteRequest struct {
	Texts []string `json:"texts"`
}

type remoteResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Error       string `json:"error"`
}

func NewRemoteSynthesizer(url, token string, logger *zap.Logger) (*RemoteSynthesizer, error) {
	if url == "" {
		return nil, errors.New("speech service url is required")
	}
	return &RemoteSynthesizer{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

func (r *RemoteSynthesizer) Synthesize(ctx context.Context, texts []string) ([]byte, error) {
	body, err := json.Marshal(remoteRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, entities.ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		r.logger.Error("Speech service returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", strings.TrimSpace(string(raw))))
		return nil, fmt.Errorf("%w: speech service status %d", entities.ErrSynthesisFailed, resp.StatusCode)
	}

	var decoded remoteResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err)
	}

	audio, err := base64.StdEncoding.DecodeString(decoded.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid audio encoding: %v", entities.ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", entities.ErrSynthesisFailed)
	}

	return audio, nil
}
