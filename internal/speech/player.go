// Package speech implements the batch speech player: one synthesis request
// per batch, one continuous clip, one completion callback.
package speech

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/repositories"
)

// Settings are the user-level playback preferences
type Settings struct {
	VoiceGuidance bool `json:"voice_guidance"`
}

// Player speaks batches of text segments. Only the most recent batch is live;
// any earlier one is cancelled and its completion suppressed.
type Player struct {
	synth    repositories.SpeechSynthesizer
	output   repositories.AudioOutput
	settings Settings
	logger   *zap.Logger

	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelFunc
}

func NewPlayer(synth repositories.SpeechSynthesizer, output repositories.AudioOutput, settings Settings, logger *zap.Logger) *Player {
	return &Player{
		synth:    synth,
		output:   output,
		settings: settings,
		logger:   logger,
	}
}

// Speak synthesizes and plays segments as one clip, then calls onComplete.
// onComplete never fires for a batch superseded by Speak or Cancel.
func (p *Player) Speak(ctx context.Context, segments []string, onComplete func()) {
	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	p.release()

	if !p.settings.VoiceGuidance || len(segments) == 0 || p.synth == nil || p.output == nil {
		p.mu.Unlock()
		onComplete()
		return
	}

	bctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(bctx, epoch, segments, onComplete)
}

// Cancel stops playback and suppresses the pending completion
func (p *Player) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.epoch++
	p.release()
}

// Active reports whether a batch is being synthesized or played
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// release must be called with mu held
func (p *Player) release() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) run(ctx context.Context, epoch uint64, segments []string, onComplete func()) {
	clip, err := p.synth.Synthesize(ctx, segments)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			p.logger.Warn("Speech synthesis failed, skipping playback",
				zap.Int("segments", len(segments)),
				zap.Error(err))
		}
	case len(clip) == 0:
		p.logger.Warn("Speech synthesis returned no audio, skipping playback")
	default:
		if err := p.output.Play(ctx, clip); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("Audio playback failed", zap.Error(err))
		}
	}

	p.finish(epoch, onComplete)
}

func (p *Player) finish(epoch uint64, onComplete func()) {
	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		return
	}
	p.release()
	p.mu.Unlock()

	onComplete()
}
