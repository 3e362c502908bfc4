package websocket

import (
	"time"

	"go.uber.org/zap"
)

// IdleReaper disconnects clients that sent no control message for a while.
// Disconnecting closes their session, which persists it as complete.
type IdleReaper struct {
	hub      *Hub
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewIdleReaper creates a reaper that checks every minute, or every timeout
// when that is shorter.
func NewIdleReaper(hub *Hub, timeout time.Duration, logger *zap.Logger) *IdleReaper {
	interval := time.Minute
	if timeout < interval {
		interval = timeout
	}
	return &IdleReaper{
		hub:      hub,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background loop
func (r *IdleReaper) Start() {
	go r.loop()
	r.logger.Info("Idle reaper started", zap.Duration("timeout", r.timeout))
}

// Stop ends the background loop
func (r *IdleReaper) Stop() {
	close(r.stopChan)
	r.logger.Info("Idle reaper stopped")
}

func (r *IdleReaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case now := <-ticker.C:
			r.reap(now)
		}
	}
}

func (r *IdleReaper) reap(now time.Time) int {
	closed := r.hub.closeIdle(now.Add(-r.timeout))
	if closed > 0 {
		r.logger.Info("Closed idle clients", zap.Int("count", closed))
	}
	return closed
}
