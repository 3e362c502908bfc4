package repositories

import "context"

// SpeechSynthesizer turns an ordered batch of texts into one encoded clip
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, texts []string) ([]byte, error)
}

// AudioOutput plays a clip. Play blocks until playback finished or ctx is cancelled.
type AudioOutput interface {
	Play(ctx context.Context, clip []byte) error
}
