package orchestrator

import "github.com/satriahrh/lifeline/domain/entities"

// validTransitions lists the allowed targets for each status. A dialogue
// result moves to speaking from whatever state the session is in.
var validTransitions = map[entities.SessionStatus][]entities.SessionStatus{
	entities.SessionStatusCategorizing: {
		entities.SessionStatusSpeaking,
		entities.SessionStatusComplete,
	},
	entities.SessionStatusSpeaking: {
		entities.SessionStatusSpeaking,
		entities.SessionStatusListening,
		entities.SessionStatusProcessing,
		entities.SessionStatusPaused,
		entities.SessionStatusComplete,
	},
	entities.SessionStatusListening: {
		entities.SessionStatusSpeaking,
		entities.SessionStatusProcessing,
		entities.SessionStatusPaused,
		entities.SessionStatusComplete,
	},
	entities.SessionStatusProcessing: {
		entities.SessionStatusSpeaking,
		entities.SessionStatusComplete,
	},
	entities.SessionStatusPaused: {
		entities.SessionStatusSpeaking,
		entities.SessionStatusListening,
		entities.SessionStatusProcessing,
		entities.SessionStatusComplete,
	},
}

func canTransition(from, to entities.SessionStatus) bool {
	for _, valid := range validTransitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}
