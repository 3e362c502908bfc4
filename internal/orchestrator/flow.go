package orchestrator

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/capture"
)

// Everything in this file runs on the loop goroutine.

func (o *Orchestrator) setStatus(next entities.SessionStatus) bool {
	prev := o.status
	if !canTransition(prev, next) {
		o.logger.Warn("Rejected state transition",
			zap.String("from", string(prev)),
			zap.String("to", string(next)))
		return false
	}

	o.status = next
	if o.session != nil {
		o.session.Status = next
	}
	o.publish()

	o.logger.Debug("Session state changed",
		zap.String("sessionID", o.sessionID()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))

	if o.events.OnStatus != nil {
		o.events.OnStatus(prev, next)
	}
	return true
}

func (o *Orchestrator) sessionID() string {
	if o.session == nil {
		return ""
	}
	return o.session.ID
}

func (o *Orchestrator) appendMessage(msg entities.Message) {
	o.session.AddMessage(msg)
	o.publish()
	if o.events.OnMessage != nil {
		o.events.OnMessage(msg)
	}
}

func (o *Orchestrator) persist() {
	if o.persisted && o.saver != nil {
		o.saver.submit(o.session.Snapshot())
	}
}

func (o *Orchestrator) beginCategorizing(userID, description string) {
	o.session = entities.NewSession(userID, description)
	o.appendMessage(entities.NewUserMessage(description))

	o.logger.Info("Categorizing emergency", zap.String("userID", userID))

	if o.deps.Classifier == nil {
		o.onClassified("", entities.ErrClassificationFailed)
		return
	}

	go func() {
		label, err := o.deps.Classifier.Classify(o.ctx, description)
		o.post(func() { o.onClassified(label, err) })
	}()
}

func (o *Orchestrator) onClassified(label string, err error) {
	if o.status != entities.SessionStatusCategorizing {
		return
	}

	var turns []entities.Turn
	switch {
	case err != nil:
		o.logger.Warn("Classification failed, continuing without protocol", zap.Error(err))
		o.session.EmergencyType = entities.EmergencyTypeUnknown
		turns = classifierFailureTurns()

	default:
		label = strings.TrimSpace(label)
		if label == "" {
			label = entities.EmergencyTypeUnknown
		}
		o.session.EmergencyType = label

		if p, ok := o.deps.Registry.Lookup(label); ok {
			o.protocol = p
			o.session.ProtocolKey = p.Key
			turns = protocolTurns(label)
		} else {
			turns = unknownTurns()
		}
	}

	o.logger.Info("Emergency categorized",
		zap.String("emergencyType", o.session.EmergencyType),
		zap.Bool("protocol", o.protocol != nil))

	o.createSession()
	o.speak(turns)
}

// createSession stores the session in the background. Until the id arrives,
// contact actions are rejected.
func (o *Orchestrator) createSession() {
	if o.deps.Sessions == nil {
		o.onCreated(newSessionID(), false)
		return
	}

	snapshot := o.session.Snapshot()
	go func() {
		ctx, cancel := context.WithTimeout(o.ctx, saveTimeout)
		defer cancel()

		err := o.deps.Sessions.Create(ctx, snapshot)
		o.post(func() {
			if err != nil {
				o.logger.Warn("Failed to create session record, using local id", zap.Error(err))
				o.onCreated(newSessionID(), false)
				return
			}
			o.onCreated(snapshot.ID, true)
		})
	}()
}

func (o *Orchestrator) onCreated(id string, persisted bool) {
	o.session.ID = id
	o.persisted = persisted
	o.publish()
	o.persist()

	o.logger.Info("Session created",
		zap.String("sessionID", id),
		zap.Bool("persisted", persisted))

	if o.events.OnSession != nil {
		o.events.OnSession(id, persisted)
	}

	pending := o.pendingCalls
	o.pendingCalls = 0
	for i := 0; i < pending; i++ {
		o.dispatchCall()
	}
	if o.settings.NotifyContactsOnStart {
		o.dispatchNotify()
	}
}

// speak appends the turns, dispatches their actions and plays them
func (o *Orchestrator) speak(turns []entities.Turn) {
	for _, t := range turns {
		o.appendMessage(entities.NewAssistantMessage(t))
	}
	segments := entities.TurnTexts(turns)

	for _, t := range turns {
		if t.Action == entities.ActionCallEmergencyContact {
			o.dispatchCall()
		}
	}

	o.stopListening()
	o.stopSpeaking()
	if !o.setStatus(entities.SessionStatusSpeaking) {
		return
	}

	epoch := o.speechEpoch
	o.deps.Speaker.Speak(o.ctx, segments, func() {
		o.post(func() { o.onSpeechDone(epoch) })
	})
	o.persist()
}

func (o *Orchestrator) onSpeechDone(epoch uint64) {
	if epoch != o.speechEpoch || o.status != entities.SessionStatusSpeaking {
		return
	}
	o.speechEpoch++

	if last, ok := o.session.LastAssistantMessage(); ok && last.AwaitsResponse {
		o.enterListening()
		return
	}
	o.setStatus(entities.SessionStatusPaused)
	o.persist()
}

func (o *Orchestrator) enterListening() {
	o.stopSpeaking()
	if !o.setStatus(entities.SessionStatusListening) {
		return
	}
	o.startCapture()
	o.persist()
}

func (o *Orchestrator) startCapture() {
	if o.degraded || o.deps.Listener == nil {
		return
	}

	o.captureEpoch++
	epoch := o.captureEpoch
	err := o.deps.Listener.Start(o.ctx, func(r capture.Result) {
		o.post(func() { o.onCapture(epoch, r) })
	})
	if err != nil {
		o.setDegraded(err)
	}
}

func (o *Orchestrator) onCapture(epoch uint64, r capture.Result) {
	if epoch != o.captureEpoch || o.status != entities.SessionStatusListening {
		return
	}

	switch r.Kind {
	case capture.ResultInterim:
		if o.events.OnInterim != nil {
			o.events.OnInterim(r.Text)
		}
	case capture.ResultFinal:
		if strings.TrimSpace(r.Text) == "" {
			o.startCapture()
			return
		}
		o.submit(r.Text)
	case capture.ResultUnavailable:
		o.captureEpoch++
		o.setDegraded(r.Err)
	}
}

func (o *Orchestrator) setDegraded(err error) {
	if o.degraded {
		return
	}
	if err == nil {
		err = entities.ErrCapabilityUnavailable
	}
	if !errors.Is(err, entities.ErrCapabilityUnavailable) {
		err = errors.Join(entities.ErrCapabilityUnavailable, err)
	}

	o.degraded = true
	o.publish()

	o.logger.Warn("Speech capture unavailable, continuing text-only",
		zap.String("sessionID", o.sessionID()),
		zap.Error(err))

	if o.events.OnDegraded != nil {
		o.events.OnDegraded(err)
	}
}

// submit records user input and asks the dialogue model for the next turns.
// The dialogue call is not cancelled by later interrupts; its turns are
// always appended and spoken.
func (o *Orchestrator) submit(text string) {
	o.stopSpeaking()
	o.stopListening()

	o.appendMessage(entities.NewUserMessage(strings.TrimSpace(text)))
	if !o.setStatus(entities.SessionStatusProcessing) {
		return
	}
	o.persist()

	if o.deps.Dialogue == nil {
		o.onDialogue(nil, entities.ErrCapabilityUnavailable)
		return
	}

	transcript := o.session.Snapshot().Transcript
	protocol := o.protocol
	go func() {
		turns, err := o.deps.Dialogue.Respond(o.ctx, transcript, protocol)
		o.post(func() { o.onDialogue(turns, err) })
	}()
}

func (o *Orchestrator) onDialogue(turns []entities.Turn, err error) {
	if err == nil && len(turns) == 0 {
		err = entities.ErrDialogueMalformed
	}
	if err != nil {
		o.logger.Warn("Dialogue failed, asking user to repeat",
			zap.String("sessionID", o.sessionID()),
			zap.Error(err))
		turns = dialogueFailureTurns()
	}
	o.speak(turns)
}

func (o *Orchestrator) stopSpeaking() {
	o.speechEpoch++
	o.deps.Speaker.Cancel()
}

func (o *Orchestrator) stopListening() {
	o.captureEpoch++
	if o.deps.Listener != nil {
		o.deps.Listener.Stop()
	}
}

func (o *Orchestrator) gatewayContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(o.ctx), gatewayTimeout)
}

// dispatchCall is fire-and-forget; the outcome is appended as a system message
func (o *Orchestrator) dispatchCall() {
	if o.deps.Caller == nil {
		o.appendMessage(entities.NewSystemMessage(callFailedMessage))
		return
	}

	// Calls requested before the session record exists go out once it does,
	// one per request.
	sessionID := o.session.ID
	if sessionID == "" {
		o.pendingCalls++
		return
	}

	go func() {
		ctx, cancel := o.gatewayContext()
		defer cancel()

		res, err := o.deps.Caller.CallEmergencyContact(ctx, sessionID)
		o.post(func() { o.onCallResult(res.ContactName, res.ContactPhone, err) })
	}()
}

func (o *Orchestrator) onCallResult(name, phone string, err error) {
	if err != nil {
		o.logger.Error("Emergency contact call failed",
			zap.String("sessionID", o.sessionID()),
			zap.Error(err))
		o.appendMessage(entities.NewSystemMessage(callFailedMessage))
		o.persist()
		return
	}

	label := name
	if label == "" {
		label = phone
	}
	o.appendMessage(entities.NewSystemMessage(callingMessage(label)))
	o.persist()
}

func (o *Orchestrator) dispatchNotify() {
	if o.deps.Notifier == nil {
		return
	}

	sessionID := o.session.ID
	go func() {
		ctx, cancel := o.gatewayContext()
		defer cancel()

		res, err := o.deps.Notifier.NotifyEmergencyContacts(ctx, sessionID)
		o.post(func() { o.onNotifyResult(res.Message, err) })
	}()
}

func (o *Orchestrator) onNotifyResult(message string, err error) {
	if err != nil {
		o.logger.Error("Emergency contact notification failed",
			zap.String("sessionID", o.sessionID()),
			zap.Error(err))
		message = notifyFailedMessage
	}
	o.appendMessage(entities.NewSystemMessage(message))
	o.persist()
}

func (o *Orchestrator) complete() {
	if o.status.IsTerminal() {
		return
	}

	o.stopSpeaking()
	o.stopListening()
	o.setStatus(entities.SessionStatusComplete)

	if o.session != nil {
		o.session.Close()
		o.publish()
		o.persist()
	}
	if o.saver != nil {
		o.saver.close()
	}

	o.queue.close()
	o.cancel()

	o.logger.Info("Session complete", zap.String("sessionID", o.sessionID()))
}
