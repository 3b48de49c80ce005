package db

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// SoftFailer is the single path for writes that are observability, not
// correctness: audit rows and balance snapshots. A failure is rolled back to
// a savepoint, logged and counted; it never reaches the caller and never
// poisons the enclosing transaction.
type SoftFailer struct {
	logger zerolog.Logger
	mu     sync.Mutex
	counts map[string]int64
}

func NewSoftFailer(logger zerolog.Logger) *SoftFailer {
	return &SoftFailer{logger: logger, counts: map[string]int64{}}
}

// Run executes fn inside a savepoint named after kind. It returns false when
// fn failed. A nil tx runs fn without a savepoint.
func (s *SoftFailer) Run(ctx context.Context, tx *sqlx.Tx, kind string, fn func() error) bool {
	if tx == nil {
		return s.check(kind, fn())
	}
	savepoint := "sp_" + kind
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return s.check(kind, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("kind", kind).Msg("rollback to savepoint failed")
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
		return s.check(kind, err)
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return s.check(kind, err)
	}
	return true
}

func (s *SoftFailer) check(kind string, err error) bool {
	if err == nil {
		return true
	}
	s.mu.Lock()
	s.counts[kind]++
	total := s.counts[kind]
	s.mu.Unlock()
	s.logger.Warn().Err(err).Str("kind", kind).Int64("total", total).Msg("soft failure discarded")
	return false
}

// Counts returns a copy of the failure counters keyed by kind.
func (s *SoftFailer) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
