package chat

import (
	"context"
	"log/slog"
	"time"
)

// ActionStore abstracts the pending-action expiry operation.
type ActionStore interface {
	ExpirePendingActionsBefore(cutoff time.Time) (int64, error)
}

// Sweeper periodically expires pending actions that were never confirmed or
// rejected, so stale confirmation tokens cannot be replayed much later.
type Sweeper struct {
	store    ActionStore
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. If interval or maxAge is <= 0, they default
// to 1 minute and 30 minutes respectively.
func NewSweeper(store ActionStore, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   slog.Default(),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}

		if err := s.RunOnce(); err != nil {
			s.logger.Error("pending action sweep failed", "error", err)
		}
	}
}

// RunOnce expires all open pending actions older than maxAge.
func (s *Sweeper) RunOnce() error {
	n, err := s.store.ExpirePendingActionsBefore(time.Now().UTC().Add(-s.maxAge))
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("expired stale pending actions", "count", n)
	}
	return nil
}
