// Package capture keeps a speech recognizer "live" while the session is
// listening. A recognition pass that ends without a transcript is restarted,
// failing passes are retried on a bounded backoff, and too many consecutive
// failures degrade the session to text-only input.
package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

// ResultKind tells what a capture Result carries
type ResultKind int

const (
	ResultInterim ResultKind = iota
	ResultFinal
	ResultUnavailable
)

func (k ResultKind) String() string {
	switch k {
	case ResultInterim:
		return "interim"
	case ResultFinal:
		return "final"
	case ResultUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is emitted to the Start callback
type Result struct {
	Kind ResultKind
	Text string
	Err  error
}

// RestartPolicy bounds the automatic restart loop
type RestartPolicy struct {
	MinBackoff             time.Duration
	MaxBackoff             time.Duration
	MaxConsecutiveFailures int
}

func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		MinBackoff:             100 * time.Millisecond,
		MaxBackoff:             500 * time.Millisecond,
		MaxConsecutiveFailures: 5,
	}
}

func (p RestartPolicy) backoff(failures int) time.Duration {
	d := p.MinBackoff
	for i := 1; i < failures && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Adapter is the Speech Capture Adapter. At most one capture runs at a time.
type Adapter struct {
	recognizer repositories.SpeechRecognizer
	policy     RestartPolicy
	logger     *zap.Logger

	mu      sync.Mutex
	current *run
}

type run struct {
	cancel   context.CancelFunc
	onResult func(Result)

	mu      sync.Mutex
	stopped bool
}

// NewAdapter creates a capture adapter. A nil recognizer means speech
// capture is not available on this host.
func NewAdapter(recognizer repositories.SpeechRecognizer, policy RestartPolicy, logger *zap.Logger) *Adapter {
	def := DefaultRestartPolicy()
	if policy.MinBackoff <= 0 {
		policy.MinBackoff = def.MinBackoff
	}
	if policy.MaxBackoff < policy.MinBackoff {
		policy.MaxBackoff = policy.MinBackoff
	}
	if policy.MaxConsecutiveFailures <= 0 {
		policy.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}

	return &Adapter{
		recognizer: recognizer,
		policy:     policy,
		logger:     logger,
	}
}

// Available reports whether a recognizer is configured
func (a *Adapter) Available() bool {
	return a.recognizer != nil
}

// Start begins capturing. onResult receives zero or more interim results and
// then at most one Final or Unavailable result.
func (a *Adapter) Start(ctx context.Context, onResult func(Result)) error {
	if a.recognizer == nil {
		return entities.ErrCapabilityUnavailable
	}

	a.Stop()

	rctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, onResult: onResult}

	a.mu.Lock()
	a.current = r
	a.mu.Unlock()

	go a.loop(rctx, r)
	return nil
}

// Stop halts the current capture, discarding any result not yet produced.
// Calling Stop when nothing is running is a no-op.
func (a *Adapter) Stop() {
	a.mu.Lock()
	r := a.current
	a.current = nil
	a.mu.Unlock()

	if r == nil {
		return
	}

	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
}

// Active reports whether a capture is running
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

func (a *Adapter) loop(ctx context.Context, r *run) {
	defer a.finish(r)

	failures := 0
	for {
		text, err := a.recognizer.Recognize(ctx, func(interim string) {
			r.emit(Result{Kind: ResultInterim, Text: interim})
		})

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures >= a.policy.MaxConsecutiveFailures {
				a.logger.Warn("Speech capture unavailable after repeated failures",
					zap.Int("failures", failures),
					zap.Error(err))
				r.emit(Result{Kind: ResultUnavailable, Err: err})
				return
			}
			a.logger.Warn("Speech capture failed, restarting",
				zap.Int("failures", failures),
				zap.Error(err))
			if !sleep(ctx, a.policy.backoff(failures)) {
				return
			}

		case text == "":
			failures = 0
			a.logger.Debug("Speech capture ended without result, restarting")
			if !sleep(ctx, a.policy.MinBackoff) {
				return
			}

		default:
			// A produced transcript is delivered even if Stop raced with it
			r.onResult(Result{Kind: ResultFinal, Text: text})
			return
		}
	}
}

func (a *Adapter) finish(r *run) {
	r.cancel()

	a.mu.Lock()
	if a.current == r {
		a.current = nil
	}
	a.mu.Unlock()
}

func (r *run) emit(res Result) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()

	if !stopped {
		r.onResult(res)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
