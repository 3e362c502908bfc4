package orchestrator

import (
	"fmt"

	"github.com/satriahrh/lifeline/domain/entities"
)

const (
	callFailedMessage   = "Failed to initiate call to emergency contact."
	notifyFailedMessage = "Failed to notify emergency contacts."
)

func protocolTurns(label string) []entities.Turn {
	return []entities.Turn{
		{Text: fmt.Sprintf("Okay, it looks like we are dealing with a potential %s.", entities.FriendlyLabel(label))},
		{Text: "I will guide you through the required steps. Stay calm and listen carefully. Tell me when you're ready to start.", AwaitsResponse: true},
	}
}

func unknownTurns() []entities.Turn {
	return []entities.Turn{
		{Text: "Okay, I understand."},
		{Text: "I will do my best to guide you. Please describe what you see in more detail.", AwaitsResponse: true},
	}
}

func classifierFailureTurns() []entities.Turn {
	return []entities.Turn{
		{Text: "I'm having trouble connecting. I'll do my best to help. Can you tell me more about what's happening?", AwaitsResponse: true},
	}
}

func dialogueFailureTurns() []entities.Turn {
	return []entities.Turn{
		{Text: "I'm having trouble connecting. Let's try that again. Can you repeat what you said?", AwaitsResponse: true},
	}
}

func callingMessage(label string) string {
	return "Calling emergency contact: " + label
}
