package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"washly/internal/infra"
	"washly/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type listedSessions struct {
	sessions []model.CashSession
	cutoff   time.Time
	limit    int
	err      error
}

func (l *listedSessions) ListUnreported(_ context.Context, closedBefore time.Time, limit int) ([]model.CashSession, error) {
	l.cutoff = closedBefore
	l.limit = limit
	return l.sessions, l.err
}

type recordingEnqueuer struct {
	ids  []uuid.UUID
	fail map[uuid.UUID]bool
}

func (r *recordingEnqueuer) EnqueueSessionReport(_ context.Context, id uuid.UUID) error {
	if r.fail[id] {
		return errors.New("redis: connection refused")
	}
	r.ids = append(r.ids, id)
	return nil
}

func TestSweepUnreported_EnqueuesBatch(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	lister := &listedSessions{sessions: []model.CashSession{{ID: a}, {ID: b}, {ID: c}}}
	enq := &recordingEnqueuer{fail: map[uuid.UUID]bool{b: true}}
	now := time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC)

	n := sweepUnreported(context.Background(), ReportSweepConfig{Sessions: lister, Dispatcher: enq}, now)

	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{a, c}, enq.ids)
	assert.Equal(t, now.Add(-sweepGrace), lister.cutoff)
	assert.Equal(t, sweepBatchSize, lister.limit)
}

func TestSweepUnreported_SkipsWhileBreakerOpen(t *testing.T) {
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "smtp", FailureThreshold: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(func() error { return errors.New("down") })

	lister := &listedSessions{sessions: []model.CashSession{{ID: uuid.New()}}}
	enq := &recordingEnqueuer{}
	n := sweepUnreported(context.Background(), ReportSweepConfig{Sessions: lister, Dispatcher: enq, CB: cb}, time.Now())

	assert.Zero(t, n)
	assert.Empty(t, enq.ids)
}

func TestSweepUnreported_ListError(t *testing.T) {
	lister := &listedSessions{err: errors.New("db gone")}
	n := sweepUnreported(context.Background(), ReportSweepConfig{Sessions: lister, Dispatcher: &recordingEnqueuer{}}, time.Now())
	assert.Zero(t, n)
}
