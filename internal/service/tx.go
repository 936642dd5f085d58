package service

import (
	"context"
	"errors"
	"fmt"

	"washly/internal/apierror"
	"washly/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// heldLocks collects in-process entity locks so they are released after the
// transaction commits, in reverse acquisition order.
type heldLocks struct {
	locker  *infra.KeyedLocker
	unlocks []func()
}

func (h *heldLocks) lock(key string) {
	h.unlocks = append(h.unlocks, h.locker.Lock(key))
}

func (h *heldLocks) release() {
	for i := len(h.unlocks) - 1; i >= 0; i-- {
		h.unlocks[i]()
	}
	h.unlocks = nil
}

func userKey(id uuid.UUID) string    { return "user:" + id.String() }
func ticketKey(id uuid.UUID) string  { return "ticket:" + id.String() }
func sessionKey(id uuid.UUID) string { return "session:" + id.String() }

// notFoundOr maps gorm.ErrRecordNotFound to a NotFound error with msg and
// wraps anything else.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// hasCents reports whether d has at most two decimal places.
func hasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
