package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lifeline/domain/entities"
)

type step struct {
	interim string
	text    string
	err     error
	block   bool
}

// scriptedRecognizer replays steps in order, then blocks until cancelled
type scriptedRecognizer struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedRecognizer) Recognize(ctx context.Context, onInterim func(string)) (string, error) {
	s.mu.Lock()
	s.calls++
	var st step
	if len(s.steps) == 0 {
		st = step{block: true}
	} else {
		st = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	if st.interim != "" {
		onInterim(st.interim)
	}
	if st.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return st.text, st.err
}

func (s *scriptedRecognizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var fastPolicy = RestartPolicy{MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, MaxConsecutiveFailures: 3}

func collect() (func(Result), chan Result) {
	ch := make(chan Result, 16)
	return func(r Result) { ch <- r }, ch
}

func next(t *testing.T, ch chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for capture result")
		return Result{}
	}
}

func TestStartUnavailable(t *testing.T) {
	a := NewAdapter(nil, fastPolicy, zaptest.NewLogger(t))

	if a.Available() {
		t.Error("Adapter without recognizer should not be available")
	}
	if err := a.Start(context.Background(), func(Result) {}); !errors.Is(err, entities.ErrCapabilityUnavailable) {
		t.Errorf("Expected ErrCapabilityUnavailable, got %v", err)
	}
}

func TestFinalAfterInterim(t *testing.T) {
	rec := &scriptedRecognizer{steps: []step{{interim: "he is", text: "he is not breathing"}}}
	a := NewAdapter(rec, fastPolicy, zaptest.NewLogger(t))

	onResult, ch := collect()
	if err := a.Start(context.Background(), onResult); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if r := next(t, ch); r.Kind != ResultInterim || r.Text != "he is" {
		t.Errorf("Expected interim, got %+v", r)
	}
	if r := next(t, ch); r.Kind != ResultFinal || r.Text != "he is not breathing" {
		t.Errorf("Expected final, got %+v", r)
	}

	select {
	case r := <-ch:
		t.Errorf("Expected exactly one final, got extra %+v", r)
	case <-time.After(20 * time.Millisecond):
	}
	if rec.Calls() != 1 {
		t.Errorf("Expected one recognize pass, got %d", rec.Calls())
	}
}

func TestRestartsAfterEmptyResult(t *testing.T) {
	rec := &scriptedRecognizer{steps: []step{{}, {}, {text: "help"}}}
	a := NewAdapter(rec, fastPolicy, zaptest.NewLogger(t))

	onResult, ch := collect()
	if err := a.Start(context.Background(), onResult); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if r := next(t, ch); r.Kind != ResultFinal || r.Text != "help" {
		t.Errorf("Expected final after restarts, got %+v", r)
	}
	if rec.Calls() != 3 {
		t.Errorf("Expected 3 recognize passes, got %d", rec.Calls())
	}
}

func TestUnavailableAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("mic busy")
	rec := &scriptedRecognizer{steps: []step{{err: boom}, {err: boom}, {err: boom}}}
	a := NewAdapter(rec, fastPolicy, zaptest.NewLogger(t))

	onResult, ch := collect()
	if err := a.Start(context.Background(), onResult); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	r := next(t, ch)
	if r.Kind != ResultUnavailable || !errors.Is(r.Err, boom) {
		t.Errorf("Expected unavailable with cause, got %+v", r)
	}
	if rec.Calls() != fastPolicy.MaxConsecutiveFailures {
		t.Errorf("Expected %d passes, got %d", fastPolicy.MaxConsecutiveFailures, rec.Calls())
	}
}

func TestEmptyResultResetsFailures(t *testing.T) {
	boom := errors.New("network")
	rec := &scriptedRecognizer{steps: []step{{err: boom}, {err: boom}, {}, {err: boom}, {err: boom}, {text: "ok"}}}
	a := NewAdapter(rec, fastPolicy, zaptest.NewLogger(t))

	onResult, ch := collect()
	if err := a.Start(context.Background(), onResult); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if r := next(t, ch); r.Kind != ResultFinal {
		t.Errorf("Expected final once failures reset, got %+v", r)
	}
}

func TestStopIsIdempotentAndSilent(t *testing.T) {
	rec := &scriptedRecognizer{}
	a := NewAdapter(rec, fastPolicy, zaptest.NewLogger(t))

	a.Stop()

	onResult, ch := collect()
	if err := a.Start(context.Background(), onResult); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !a.Active() {
		t.Error("Expected active capture")
	}

	a.Stop()
	a.Stop()

	if a.Active() {
		t.Error("Expected capture to be stopped")
	}

	select {
	case r := <-ch:
		t.Errorf("Expected no result after stop, got %+v", r)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBackoffClamped(t *testing.T) {
	p := RestartPolicy{MinBackoff: 100 * time.Millisecond, MaxBackoff: 500 * time.Millisecond, MaxConsecutiveFailures: 5}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := p.backoff(tt.failures); got != tt.want {
			t.Errorf("backoff(%d) = %s, want %s", tt.failures, got, tt.want)
		}
	}
}
