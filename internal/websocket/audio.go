package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/lifeline/domain/repositories"
)

const (
	// audioChunkSize keeps binary frames well under the client read limit
	audioChunkSize = 32 * 1024

	micBufferFrames = 64
	micStaleAfter   = 500 * time.Millisecond
)

var (
	ErrPlaybackTimeout = errors.New("playback not acknowledged in time")
	ErrClientGone      = errors.New("client disconnected")
)

// sink is the outbound side of a client connection
type sink interface {
	sendJSON(v interface{}) bool
	sendBinary(data []byte) bool
}

// AudioOutput plays clips on the browser. A clip is streamed as
// audio_start, binary chunks and audio_end; playback is finished when the
// client answers playback_ended with the same clip id.
type AudioOutput struct {
	sink    sink
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan struct{}
}

var _ repositories.AudioOutput = (*AudioOutput)(nil)

func NewAudioOutput(s sink, timeout time.Duration) *AudioOutput {
	return &AudioOutput{sink: s, timeout: timeout, pending: make(map[string]chan struct{})}
}

func (o *AudioOutput) Play(ctx context.Context, clip []byte) error {
	clipID := uuid.New().String()
	ended := make(chan struct{})

	o.mu.Lock()
	o.pending[clipID] = ended
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.pending, clipID)
		o.mu.Unlock()
	}()

	if !o.sink.sendJSON(CreateAudioMessage(MessageTypeAudioStart, clipID, len(clip))) {
		return ErrClientGone
	}

	for start := 0; start < len(clip); start += audioChunkSize {
		if ctx.Err() != nil {
			o.sink.sendJSON(CreateAudioMessage(MessageTypeAudioStop, clipID, 0))
			return ctx.Err()
		}
		end := min(start+audioChunkSize, len(clip))
		if !o.sink.sendBinary(clip[start:end]) {
			return ErrClientGone
		}
	}

	if !o.sink.sendJSON(CreateAudioMessage(MessageTypeAudioEnd, clipID, 0)) {
		return ErrClientGone
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case <-ended:
		return nil
	case <-ctx.Done():
		o.sink.sendJSON(CreateAudioMessage(MessageTypeAudioStop, clipID, 0))
		return ctx.Err()
	case <-timer.C:
		return ErrPlaybackTimeout
	}
}

// Ended marks a clip as played. Unknown ids are ignored.
func (o *AudioOutput) Ended(clipID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch, ok := o.pending[clipID]
	if !ok {
		return false
	}
	delete(o.pending, clipID)
	close(ch)
	return true
}

type micFrame struct {
	data []byte
	at   time.Time
}

// MicSource buffers microphone frames from the client. Frames nobody reads
// are dropped: the buffer never blocks the read pump, and frames older than
// micStaleAfter are skipped on read.
type MicSource struct {
	frames chan micFrame
	closed chan struct{}
	once   sync.Once
	now    func() time.Time
}

var _ repositories.AudioSource = (*MicSource)(nil)

func NewMicSource() *MicSource {
	return &MicSource{
		frames: make(chan micFrame, micBufferFrames),
		closed: make(chan struct{}),
		now:    time.Now,
	}
}

// Push reports whether the frame was buffered
func (m *MicSource) Push(data []byte) bool {
	select {
	case <-m.closed:
		return false
	default:
	}

	frame := micFrame{data: data, at: m.now()}
	select {
	case m.frames <- frame:
		return true
	default:
	}

	// Full: drop the oldest frame to keep the newest audio
	select {
	case <-m.frames:
	default:
	}
	select {
	case m.frames <- frame:
		return true
	default:
		return false
	}
}

func (m *MicSource) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case frame := <-m.frames:
			if m.now().Sub(frame.at) > micStaleAfter {
				continue
			}
			return frame.data, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.closed:
			return nil, io.EOF
		}
	}
}

func (m *MicSource) Close() {
	m.once.Do(func() { close(m.closed) })
}
