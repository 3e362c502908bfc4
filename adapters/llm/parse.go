package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
)

type rawTurn struct {
	Text           *string `json:"text"`
	AwaitsResponse *bool   `json:"awaits_response"`
	AssetKey       string  `json:"asset_key"`
	Action         string  `json:"action"`
}

type rawResponse struct {
	Responses []rawTurn `json:"responses"`
}

// ParseDialogueResponse decodes a model reply into turns. Unknown actions
// are dropped. Asset keys are passed through unchecked; resolution happens
// at render time.
func ParseDialogueResponse(raw string, logger *zap.Logger) ([]entities.Turn, error) {
	raw = stripCodeFence(raw)

	var resp rawResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrDialogueMalformed, err)
	}

	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty responses", entities.ErrDialogueMalformed)
	}

	turns := make([]entities.Turn, 0, len(resp.Responses))
	for i, r := range resp.Responses {
		if r.Text == nil || r.AwaitsResponse == nil {
			return nil, fmt.Errorf("%w: response %d is missing text or awaits_response", entities.ErrDialogueMalformed, i)
		}

		action, ok := entities.ParseAction(r.Action)
		if !ok {
			logger.Warn("Dropping unknown dialogue action", zap.String("action", r.Action))
		}

		turns = append(turns, entities.Turn{
			Text:           *r.Text,
			AwaitsResponse: *r.AwaitsResponse,
			AssetKey:       strings.TrimSpace(r.AssetKey),
			Action:         action,
		})
	}

	return turns, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
