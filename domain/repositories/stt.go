package repositories

import "context"

// SpeechRecognizer runs one capture session.
// It returns the final transcript, or "" with a nil error when the
// session ended without recognizing anything.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, onInterim func(text string)) (string, error)
}

// AudioSource yields raw microphone audio chunks
type AudioSource interface {
	Read(ctx context.Context) ([]byte, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
