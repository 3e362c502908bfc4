// Package checklist is the linear, read-only presentation of a protocol.
// It keeps a step index and a set of completed steps, and can read the
// current step aloud through the same player the conversational flow uses.
package checklist

import (
	"context"
	"sync"

	"github.com/satriahrh/lifeline/domain/entities"
)

// Speaker is satisfied by speech.Player
type Speaker interface {
	Speak(ctx context.Context, segments []string, onComplete func())
	Cancel()
}

// State is what the client renders
type State struct {
	ProtocolKey  string   `json:"protocol_key,omitempty"`
	ProtocolName string   `json:"protocol_name"`
	Steps        []string `json:"steps"`
	WarningSigns []string `json:"warning_signs,omitempty"`
	Current      int      `json:"current"`
	Completed    []bool   `json:"completed"`
	Speaking     bool     `json:"speaking"`
}

type Navigator struct {
	protocol *entities.Protocol
	speaker  Speaker

	mu        sync.Mutex
	current   int
	completed []bool
	speaking  bool
	epoch     uint64
	onChange  func(State)
}

func NewNavigator(protocol *entities.Protocol, speaker Speaker) *Navigator {
	return &Navigator{
		protocol:  protocol,
		speaker:   speaker,
		completed: make([]bool, len(protocol.Steps)),
	}
}

// OnChange registers a callback for state changes that happen outside a
// method call, i.e. reading finishing on its own.
func (n *Navigator) OnChange(fn func(State)) {
	n.mu.Lock()
	n.onChange = fn
	n.mu.Unlock()
}

func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Next marks the current step complete and advances. At the last step it
// does nothing.
func (n *Navigator) Next() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current >= len(n.completed)-1 {
		return
	}
	n.completed[n.current] = true
	n.stopLocked()
	n.current++
}

func (n *Navigator) Previous() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current > 0 {
		n.stopLocked()
		n.current--
	}
}

// Select jumps to step i. Out-of-range indices are ignored.
func (n *Navigator) Select(i int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if i < 0 || i >= len(n.completed) || i == n.current {
		return
	}
	n.stopLocked()
	n.current = i
}

// MarkComplete is monotonic; there is no way to unmark a step
func (n *Navigator) MarkComplete(i int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if i >= 0 && i < len(n.completed) {
		n.completed[i] = true
	}
}

func (n *Navigator) IsComplete(i int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if i < 0 || i >= len(n.completed) {
		return false
	}
	return n.completed[i]
}

// ReadAloud speaks the current step. A previous reading is cancelled first.
func (n *Navigator) ReadAloud(ctx context.Context) {
	n.mu.Lock()
	if len(n.protocol.Steps) == 0 || n.speaker == nil {
		n.mu.Unlock()
		return
	}

	n.epoch++
	epoch := n.epoch
	n.speaking = true
	step := n.protocol.Steps[n.current]
	n.mu.Unlock()

	n.speaker.Speak(ctx, []string{step}, func() { n.finishReading(epoch) })
}

func (n *Navigator) StopReading() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *Navigator) stopLocked() {
	if !n.speaking {
		return
	}
	n.epoch++
	n.speaking = false
	if n.speaker != nil {
		n.speaker.Cancel()
	}
}

func (n *Navigator) finishReading(epoch uint64) {
	n.mu.Lock()
	if epoch != n.epoch || !n.speaking {
		n.mu.Unlock()
		return
	}
	n.speaking = false
	state := n.stateLocked()
	onChange := n.onChange
	n.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
}

func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateLocked()
}

func (n *Navigator) stateLocked() State {
	return State{
		ProtocolKey:  n.protocol.Key,
		ProtocolName: n.protocol.Name,
		Steps:        append([]string(nil), n.protocol.Steps...),
		WarningSigns: append([]string(nil), n.protocol.WarningSigns...),
		Current:      n.current,
		Completed:    append([]bool(nil), n.completed...),
		Speaking:     n.speaking,
	}
}
