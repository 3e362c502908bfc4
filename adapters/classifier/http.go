package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

// HTTPClassifier calls the hosted emergency classification model.
// Request: {"text": "..."}; response: {"prediction": "CHOKING"}.
type HTTPClassifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

var _ repositories.Classifier = (*HTTPClassifier)(nil)

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Prediction string `json:"prediction"`
}

func NewHTTPClassifier(url string, timeout time.Duration, logger *zap.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Classify returns the predicted label. Any transport, status or decoding
// failure is reported as ErrClassificationFailed.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("%w: classifier url is not configured", entities.ErrClassificationFailed)
	}

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrClassificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrClassificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrClassificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		details, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
		c.logger.Warn("Classifier returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("details", string(details)))
		return "", fmt.Errorf("%w: status %d", entities.ErrClassificationFailed, resp.StatusCode)
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrClassificationFailed, err)
	}

	label := strings.TrimSpace(decoded.Prediction)
	if label == "" {
		return "", fmt.Errorf("%w: missing prediction", entities.ErrClassificationFailed)
	}

	c.logger.Info("Emergency classified",
		zap.String("label", label),
		zap.Duration("latency", time.Since(start)))

	return label, nil
}
