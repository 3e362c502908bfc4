package repositories

import (
	"context"

	"github.com/satriahrh/lifeline/domain/entities"
)

// Classifier maps a freeform emergency description to a coarse label
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// DialogueModel abstracts the remote LLM that produces assistant turns
type DialogueModel interface {
	// Respond returns the next assistant turns for the transcript. A nil
	// protocol selects the generic assessment prompt.
	Respond(ctx context.Context, transcript []entities.Message, protocol *entities.Protocol) ([]entities.Turn, error)
}
