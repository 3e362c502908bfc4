package entities

import "strings"

// Action is a side effect requested by the dialogue model.
type Action string

const (
	ActionNone                 Action = ""
	ActionCallEmergencyContact Action = "call_emergency_contact"
)

// ParseAction maps a raw action string onto the supported vocabulary.
// Unknown values report false and must be ignored by the caller.
func ParseAction(raw string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ActionNone, true
	case string(ActionCallEmergencyContact):
		return ActionCallEmergencyContact, true
	default:
		return ActionNone, false
	}
}

// Turn is one unit of assistant output
type Turn struct {
	Text           string `json:"text"`
	AwaitsResponse bool   `json:"awaits_response"`
	AssetKey       string `json:"asset_key,omitempty"`
	Action         Action `json:"action,omitempty"`
}

// TurnTexts returns the spoken segments of a batch of turns in order.
// Blank texts are skipped.
func TurnTexts(turns []Turn) []string {
	texts := make([]string, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Text) != "" {
			texts = append(texts, t.Text)
		}
	}
	return texts
}
