package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/domain/repositories"
)

const saveTimeout = 5 * time.Second

// saver writes session snapshots in the background. Only the latest pending
// snapshot is written; older ones are overwritten before they hit the store.
type saver struct {
	repo   repositories.SessionRepository
	logger *zap.Logger

	mu      sync.Mutex
	pending *entities.Session

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSaver(repo repositories.SessionRepository, logger *zap.Logger) *saver {
	return &saver{
		repo:   repo,
		logger: logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *saver) submit(snapshot *entities.Session) {
	s.mu.Lock()
	s.pending = snapshot
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *saver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *saver) flush() {
	s.mu.Lock()
	snapshot := s.pending
	s.pending = nil
	s.mu.Unlock()

	if snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.repo.Update(ctx, snapshot); err != nil {
		s.logger.Warn("Failed to persist session",
			zap.String("sessionID", snapshot.ID),
			zap.Error(err))
	}
}

// close flushes the last snapshot and stops the saver
func (s *saver) close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
