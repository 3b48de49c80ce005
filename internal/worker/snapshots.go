package worker

import (
	"context"
	"sync"
	"time"

	"finassist/internal/services"

	"github.com/rs/zerolog"
)

// Recalculator is the batch entry point of the ledger service.
type Recalculator interface {
	RecalculateAll(ctx context.Context, batchSize int, persistSnapshot bool) (services.RecalcSummary, error)
}

// SnapshotScheduler recalculates every account on a fixed interval and
// stores the day's balance snapshot. It runs once right after Start.
type SnapshotScheduler struct {
	recalc    Recalculator
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSnapshotScheduler(recalc Recalculator, interval time.Duration, batchSize int, logger zerolog.Logger) *SnapshotScheduler {
	return &SnapshotScheduler{
		recalc:    recalc,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "snapshot_scheduler").Logger(),
	}
}

// Start launches the loop. A non-positive interval disables the scheduler,
// and starting twice is a no-op.
func (s *SnapshotScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval <= 0 {
		s.logger.Info().Msg("disabled")
		return
	}
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.logger.Info().Dur("interval", s.interval).Int("batch_size", s.batchSize).Msg("started")
}

// Stop cancels the loop and waits for a running pass to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.logger.Info().Msg("stopped")
}

func (s *SnapshotScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs one recalculation pass with snapshots.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) services.RecalcSummary {
	started := time.Now()
	summary, err := s.recalc.RecalculateAll(ctx, s.batchSize, true)
	if err != nil {
		s.logger.Error().Err(err).Int("processed", summary.Processed).Msg("snapshot pass aborted")
		return summary
	}
	event := s.logger.Info()
	if summary.Errors > 0 {
		event = s.logger.Warn()
	}
	event.Int("processed", summary.Processed).
		Int("errors", summary.Errors).
		Dur("took", time.Since(started)).
		Msg("snapshot pass finished")
	return summary
}
