package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/checklist"
	"github.com/satriahrh/lifeline/internal/orchestrator"
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the services.
// It owns at most one emergency session and one checklist at a time.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; done stops the writer.
	send chan WriteData
	done chan struct{}
	once sync.Once

	id     string
	userID string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	audio *AudioOutput
	mic   *MicSource

	validator  *MessageValidator
	lastActive atomic.Int64

	mu           sync.Mutex
	session      *orchestrator.Orchestrator
	checklist    *checklist.Navigator
	checklistGen uint64
}

func newClient(hub *Hub, conn *websocket.Conn, id, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		done:      make(chan struct{}),
		id:        id,
		userID:    userID,
		logger:    hub.logger.With(zap.String("clientID", id), zap.String("userID", userID)),
		ctx:       ctx,
		cancel:    cancel,
		mic:       NewMicSource(),
		validator: NewMessageValidator(),
	}
	c.audio = NewAudioOutput(c, hub.config.PlaybackTimeout)
	c.touch()
	return c
}

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Client) idleSince() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Client) enqueue(data WriteData) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendBinary(data []byte) bool {
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: data})
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(CreateErrorMessage(code, message))
}

// shutdown closes the session, the checklist and the microphone. Safe to call twice.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		session, nav := c.session, c.checklist
		c.mu.Unlock()

		if session != nil {
			if err := session.Close(); err != nil {
				c.logger.Warn("Failed to close session", zap.Error(err))
			}
		}
		if nav != nil {
			nav.StopReading()
		}

		c.mic.Close()
		c.cancel()
		close(c.done)
	})
}

// readPump pumps messages from the websocket connection to the client handlers.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
			c.shutdown()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.touch()
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Microphone frames do not count as activity; an open mic alone
			// keeps nobody's session alive.
			c.mic.Push(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one validated client message
func (c *Client) processMessage(raw []byte) {
	msg, err := c.validator.ValidateMessage(raw)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case MessageTypeSessionStart:
		c.handleSessionStart(msg)
	case MessageTypeUserText:
		c.withSession(func(s *orchestrator.Orchestrator) error { return s.SubmitText(msg.Text) })
	case MessageTypeInterrupt:
		c.withSession((*orchestrator.Orchestrator).Interrupt)
	case MessageTypePause:
		c.withSession((*orchestrator.Orchestrator).Pause)
	case MessageTypeListen:
		c.withSession((*orchestrator.Orchestrator).Listen)
	case MessageTypeCallContact:
		c.withSession((*orchestrator.Orchestrator).CallContact)
	case MessageTypeNotifyContacts:
		c.withSession((*orchestrator.Orchestrator).NotifyContacts)
	case MessageTypeClose:
		c.withSession((*orchestrator.Orchestrator).Close)
	case MessageTypePlaybackEnded:
		if !c.audio.Ended(msg.ClipID) {
			c.logger.Debug("Playback ended for unknown clip", zap.String("clipID", msg.ClipID))
		}
	case MessageTypeChecklistStart:
		c.handleChecklistStart(msg)
	case MessageTypeChecklistNext:
		c.withChecklist(func(n *checklist.Navigator) { n.Next() })
	case MessageTypeChecklistPrevious:
		c.withChecklist(func(n *checklist.Navigator) { n.Previous() })
	case MessageTypeChecklistSelect:
		c.withChecklist(func(n *checklist.Navigator) { n.Select(*msg.Index) })
	case MessageTypeChecklistRead:
		c.withChecklist(func(n *checklist.Navigator) { n.ReadAloud(c.ctx) })
	case MessageTypePing:
		c.sendJSON(CreatePongMessage())
	}
}

func (c *Client) settingsFor(override *SettingsOverride) orchestrator.Settings {
	settings := c.hub.emergency.DefaultSettings()
	if override == nil {
		return settings
	}
	if override.VoiceGuidance != nil {
		settings.VoiceGuidance = *override.VoiceGuidance
	}
	if override.NotifyContactsOnStart != nil {
		settings.NotifyContactsOnStart = *override.NotifyContactsOnStart
	}
	return settings
}

func (c *Client) handleSessionStart(msg *InboundMessage) {
	c.mu.Lock()
	if c.session != nil && c.session.Status() != entities.SessionStatusComplete {
		c.mu.Unlock()
		c.sendError(ErrorCodeSessionActive, "an emergency session is already running")
		return
	}

	settings := c.settingsFor(msg.Settings)
	player := c.hub.emergency.NewPlayer(c.audio, settings)
	var session *orchestrator.Orchestrator
	session = c.hub.emergency.NewSession(player, c.mic, settings, orchestrator.Events{
		OnStatus: func(previous, current entities.SessionStatus) {
			c.sendJSON(CreateStatusMessage(previous, current))
		},
		OnMessage: func(m entities.Message) {
			c.sendJSON(CreateChatMessage(m, session.SessionID(), c.hub.emergency.Registry().AssetURL))
		},
		OnInterim: func(text string) {
			c.sendJSON(CreateInterimMessage(text))
		},
		OnDegraded: func(err error) {
			c.sendJSON(CreateDegradedMessage(err.Error()))
		},
		OnSession: func(id string, persisted bool) {
			c.sendJSON(CreateSessionMessage(id, persisted))
		},
	})
	c.session = session
	c.mu.Unlock()

	if err := session.Start(c.ctx, c.userID, msg.Description); err != nil {
		c.logger.Error("Failed to start session", zap.Error(err))
		c.sendError(errorCode(err), err.Error())
		return
	}

	c.logger.Info("Emergency session started", zap.String("sessionID", session.SessionID()))
}

func (c *Client) withSession(fn func(*orchestrator.Orchestrator) error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		c.sendError(ErrorCodeNoSession, "no emergency session has been started")
		return
	}
	if err := fn(session); err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

// handleChecklistStart classifies off the read pump; the checklist message
// goes out once the navigator exists. A newer checklist_start wins.
func (c *Client) handleChecklistStart(msg *InboundMessage) {
	c.mu.Lock()
	if c.checklist != nil {
		c.checklist.StopReading()
	}
	c.checklistGen++
	gen := c.checklistGen
	c.mu.Unlock()

	// The checklist gets its own player so reading a step never cancels
	// the session's playback.
	player := c.hub.emergency.NewPlayer(c.audio, c.settingsFor(msg.Settings))

	go func() {
		nav := c.hub.checklists.Start(c.ctx, msg.Description, player)
		nav.OnChange(func(state checklist.State) {
			c.sendJSON(CreateChecklistMessage(state))
		})

		c.mu.Lock()
		if gen != c.checklistGen || c.ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.checklist = nav
		c.mu.Unlock()

		c.sendJSON(CreateChecklistMessage(nav.State()))
	}()
}

func (c *Client) withChecklist(fn func(*checklist.Navigator)) {
	c.mu.Lock()
	nav := c.checklist
	c.mu.Unlock()

	if nav == nil {
		c.sendError(ErrorCodeNoChecklist, "no checklist has been started")
		return
	}
	fn(nav)
	c.sendJSON(CreateChecklistMessage(nav.State()))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, entities.ErrInvalidTransition):
		return ErrorCodeInvalidTransition
	case errors.Is(err, entities.ErrSessionClosed):
		return ErrorCodeSessionClosed
	default:
		return ErrorCodeInternal
	}
}
