package worker

// report_sweep.go
// Background goroutine that re-enqueues closing reports that never went out:
// the enqueue after close is best effort, and SMTP may have been down.
// Skips its tick while the mailer circuit breaker is open.

import (
	"context"
	"time"

	"washly/internal/infra"
	"washly/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sweepBatchSize = 20
	// sweepGrace leaves freshly closed sessions to the job enqueued by close.
	sweepGrace = 2 * time.Minute
)

// UnreportedLister is the slice of repository.CajaRepository the sweep needs.
type UnreportedLister interface {
	ListUnreported(ctx context.Context, closedBefore time.Time, limit int) ([]model.CashSession, error)
}

// ReportEnqueuer is satisfied by *Dispatcher.
type ReportEnqueuer interface {
	EnqueueSessionReport(ctx context.Context, sessionID uuid.UUID) error
}

// ReportSweepConfig holds all dependencies for the sweep goroutine.
type ReportSweepConfig struct {
	Sessions   UnreportedLister
	Dispatcher ReportEnqueuer
	CB         *infra.CircuitBreaker
	Interval   time.Duration
}

// StartReportSweep ticks every cfg.Interval until ctx is cancelled.
func StartReportSweep(ctx context.Context, cfg ReportSweepConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("report_sweep: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("report_sweep: shutting down")
				return
			case <-ticker.C:
				sweepUnreported(ctx, cfg, time.Now())
			}
		}
	}()
}

// sweepUnreported returns how many sessions were enqueued.
func sweepUnreported(ctx context.Context, cfg ReportSweepConfig, now time.Time) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("report_sweep: circuit breaker is open, skipping tick")
		return 0
	}

	sessions, err := cfg.Sessions.ListUnreported(ctx, now.Add(-sweepGrace), sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("report_sweep: failed to query unreported sessions")
		return 0
	}

	enqueued := 0
	for i := range sessions {
		if err := cfg.Dispatcher.EnqueueSessionReport(ctx, sessions[i].ID); err != nil {
			log.Warn().Err(err).Str("session_id", sessions[i].ID.String()).Msg("report_sweep: enqueue failed")
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		log.Info().Int("count", enqueued).Msg("report_sweep: reports re-enqueued")
	}
	return enqueued
}
