// Package orchestrator implements the emergency session state machine.
//
// Every state mutation runs on a single loop goroutine. Public methods and
// asynchronous completions (classification, dialogue, playback, capture,
// contact calls) are posted to the loop as closures. Playback and capture
// completions carry an epoch captured when the operation started; a
// completion whose epoch no longer matches has been superseded and is
// dropped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
	"github.com/satriahrh/lifeline/internal/capture"
	"github.com/satriahrh/lifeline/internal/protocols"
)

const gatewayTimeout = 30 * time.Second

// Speaker plays batches of assistant text. See speech.Player.
type Speaker interface {
	Speak(ctx context.Context, segments []string, onComplete func())
	Cancel()
	Active() bool
}

// Listener captures user speech. See capture.Adapter.
type Listener interface {
	Start(ctx context.Context, onResult func(capture.Result)) error
	Stop()
	Active() bool
}

// Dependencies are the collaborators of one orchestrator
type Dependencies struct {
	Classifier repositories.Classifier
	Dialogue   repositories.DialogueModel
	Speaker    Speaker
	Listener   Listener
	Sessions   repositories.SessionRepository
	Caller     repositories.ContactCaller
	Notifier   repositories.ContactNotifier
	Registry   *protocols.Registry
}

// Settings is the user-level configuration injected per session
type Settings struct {
	VoiceGuidance         bool `json:"voice_guidance"`
	NotifyContactsOnStart bool `json:"notify_contacts_on_start"`
}

// Events are optional observers. They run on the loop goroutine and must not
// call back into synchronous Orchestrator methods.
type Events struct {
	OnStatus   func(previous, current entities.SessionStatus)
	OnMessage  func(msg entities.Message)
	OnInterim  func(text string)
	OnDegraded func(err error)
	// OnSession reports the session id once it is assigned
	OnSession func(id string, persisted bool)
}

type view struct {
	status    entities.SessionStatus
	sessionID string
	session   *entities.Session
	protocol  *entities.Protocol
	degraded  bool
}

// Orchestrator drives one emergency session
type Orchestrator struct {
	deps     Dependencies
	settings Settings
	events   Events
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  *queue
	done   chan struct{}
	saver  *saver

	// Owned by the loop goroutine
	status       entities.SessionStatus
	session      *entities.Session
	protocol     *entities.Protocol
	persisted    bool
	degraded     bool
	pendingCalls int
	speechEpoch  uint64
	captureEpoch uint64

	startMu sync.Mutex
	started bool

	viewMu sync.RWMutex
	view   view
}

// New creates an orchestrator and starts its loop. The session begins when
// Start is called.
func New(deps Dependencies, settings Settings, events Events, logger *zap.Logger) *Orchestrator {
	if deps.Registry == nil {
		deps.Registry = protocols.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:     deps,
		settings: settings,
		events:   events,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		queue:    newQueue(),
		done:     make(chan struct{}),
		status:   entities.SessionStatusCategorizing,
	}
	o.view.status = o.status

	if deps.Sessions != nil {
		o.saver = newSaver(deps.Sessions, logger)
		go o.saver.run()
	}

	go o.loop()
	return o
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		task, ok := o.queue.pop(o.ctx.Done())
		if !ok {
			return
		}
		task()
		if o.status.IsTerminal() {
			return
		}
	}
}

func (o *Orchestrator) post(task func()) bool {
	return o.queue.push(task)
}

// do runs fn on the loop and waits for its result
func (o *Orchestrator) do(fn func() error) error {
	reply := make(chan error, 1)
	if !o.post(func() { reply <- fn() }) {
		return entities.ErrSessionClosed
	}

	select {
	case err := <-reply:
		return err
	case <-o.done:
		select {
		case err := <-reply:
			return err
		default:
			return entities.ErrSessionClosed
		}
	}
}

// Start begins the session with the user's initial description. Cancelling
// ctx closes the session.
func (o *Orchestrator) Start(ctx context.Context, userID, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return errors.New("description is required")
	}

	o.startMu.Lock()
	if o.started {
		o.startMu.Unlock()
		return fmt.Errorf("%w: session already started", entities.ErrInvalidTransition)
	}
	o.started = true
	o.startMu.Unlock()

	if err := o.do(func() error {
		o.beginCategorizing(userID, description)
		return nil
	}); err != nil {
		return err
	}

	context.AfterFunc(ctx, func() { o.Close() })
	return nil
}

// SubmitText accepts typed input while listening, paused or speaking
func (o *Orchestrator) SubmitText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("text is required")
	}

	return o.do(func() error {
		switch o.status {
		case entities.SessionStatusListening, entities.SessionStatusPaused, entities.SessionStatusSpeaking:
			o.submit(text)
			return nil
		default:
			return o.rejected("submit text")
		}
	})
}

// Interrupt cancels playback and starts listening. Only valid while speaking.
func (o *Orchestrator) Interrupt() error {
	return o.do(func() error {
		if o.status != entities.SessionStatusSpeaking {
			return o.rejected("interrupt")
		}
		o.enterListening()
		return nil
	})
}

// Pause stops both playback and capture
func (o *Orchestrator) Pause() error {
	return o.do(func() error {
		if o.status != entities.SessionStatusSpeaking && o.status != entities.SessionStatusListening {
			return o.rejected("pause")
		}
		o.stopSpeaking()
		o.stopListening()
		o.setStatus(entities.SessionStatusPaused)
		return nil
	})
}

// Listen resumes listening from paused ("tap to speak")
func (o *Orchestrator) Listen() error {
	return o.do(func() error {
		if o.status != entities.SessionStatusPaused {
			return o.rejected("listen")
		}
		o.enterListening()
		return nil
	})
}

// CallContact asks the gateway to call the user's emergency contact
func (o *Orchestrator) CallContact() error {
	return o.do(func() error {
		if o.session == nil || o.session.ID == "" {
			return fmt.Errorf("%w: session not created yet", entities.ErrInvalidTransition)
		}
		o.dispatchCall()
		return nil
	})
}

// NotifyContacts texts every family contact of the user
func (o *Orchestrator) NotifyContacts() error {
	return o.do(func() error {
		if o.session == nil || o.session.ID == "" {
			return fmt.Errorf("%w: session not created yet", entities.ErrInvalidTransition)
		}
		o.dispatchNotify()
		return nil
	})
}

// Close ends the session. Closing twice is a no-op.
func (o *Orchestrator) Close() error {
	err := o.do(func() error {
		o.complete()
		return nil
	})
	if errors.Is(err, entities.ErrSessionClosed) {
		return nil
	}
	return err
}

// Done is closed once the session is complete
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) Status() entities.SessionStatus {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	return o.view.status
}

func (o *Orchestrator) SessionID() string {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	return o.view.sessionID
}

// Transcript returns a copy of the conversation so far
func (o *Orchestrator) Transcript() []entities.Message {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	if o.view.session == nil {
		return nil
	}
	return append([]entities.Message(nil), o.view.session.Transcript...)
}

// Snapshot returns a copy of the session, or nil before Start
func (o *Orchestrator) Snapshot() *entities.Session {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	if o.view.session == nil {
		return nil
	}
	return o.view.session.Snapshot()
}

// Protocol returns the selected protocol, nil when classification yielded none
func (o *Orchestrator) Protocol() *entities.Protocol {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	return o.view.protocol
}

// Degraded reports whether the session fell back to text-only input
func (o *Orchestrator) Degraded() bool {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()
	return o.view.degraded
}

func (o *Orchestrator) publish() {
	v := view{
		status:   o.status,
		protocol: o.protocol,
		degraded: o.degraded,
	}
	if o.session != nil {
		v.sessionID = o.session.ID
		v.session = o.session.Snapshot()
	}

	o.viewMu.Lock()
	o.view = v
	o.viewMu.Unlock()
}

func (o *Orchestrator) rejected(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", entities.ErrInvalidTransition, action, o.status)
}

// newSessionID is used when the repository could not assign one
func newSessionID() string {
	return uuid.New().String()
}
