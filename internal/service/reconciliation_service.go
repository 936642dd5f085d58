package service

import (
	"context"
	"time"

	"washly/internal/apierror"
	"washly/internal/dto"
	"washly/internal/infra"
	"washly/internal/model"
	"washly/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportDispatcher queues the closing report of a session for delivery.
type ReportDispatcher interface {
	EnqueueSessionReport(ctx context.Context, sessionID uuid.UUID) error
}

type ReconciliationService interface {
	Close(ctx context.Context, actor Actor, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.CashSessionReport, error)
}

type reconciliationService struct {
	repo       repository.CajaRepository
	payments   repository.PaymentRepository
	locker     *infra.KeyedLocker
	dispatcher ReportDispatcher // nil disables notifications
}

func NewReconciliationService(
	repo repository.CajaRepository,
	payments repository.PaymentRepository,
	locker *infra.KeyedLocker,
	dispatcher ReportDispatcher,
) ReconciliationService {
	return &reconciliationService{repo: repo, payments: payments, locker: locker, dispatcher: dispatcher}
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Blind count: the variance is computed from the stored aggregates after the
// cashier declares the counted cash. Closing is final; a second close is
// rejected so the first variance is never overwritten. Only the owner or a
// supervisor closes a session.

func (s *reconciliationService) Close(ctx context.Context, actor Actor, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.CashSessionReport, error) {
	if req.CountedAmount.IsNegative() {
		return nil, apierror.Validation("el monto contado no puede ser negativo")
	}
	if !hasCents(req.CountedAmount) {
		return nil, apierror.Validation("el monto contado admite como maximo 2 decimales")
	}

	unlock := s.locker.Lock(sessionKey(sessionID))
	defer unlock()

	var sess *model.CashSession
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sess, err = s.repo.FindSessionForUpdate(ctx, tx, sessionID)
		if err != nil {
			return notFoundOr(err, "sesion de caja no encontrada")
		}
		if err := checkSessionOwner(actor, sess); err != nil {
			return err
		}
		if !sess.IsOpen() {
			return apierror.AlreadyClosed("la sesion de caja ya fue cerrada")
		}

		theoretical := sess.TheoreticalCash()
		variance := req.CountedAmount.Sub(theoretical)
		class := classifyVariance(variance, theoretical)
		now := time.Now()

		counted := req.CountedAmount
		sess.CountedAmount = &counted
		sess.Variance = &variance
		sess.VarianceClass = &class
		sess.Comments = req.Comments
		sess.ClosedAt = &now
		sess.Status = model.SessionClosed
		return s.repo.UpdateSessionTx(ctx, tx, sess)
	})
	if txErr != nil {
		return nil, txErr
	}

	ev := log.Info()
	if *sess.VarianceClass == model.VarianceCritical {
		ev = log.Warn()
	}
	ev.Str("session_id", sessionID.String()).
		Str("theoretical", sess.TheoreticalCash().StringFixed(2)).
		Str("variance", sess.Variance.StringFixed(2)).
		Str("class", string(*sess.VarianceClass)).
		Msg("sesion de caja cerrada")

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueSessionReport(ctx, sessionID); err != nil {
			// The sweep picks it up later.
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("no se pudo encolar el reporte de cierre")
		}
	}

	return buildReport(ctx, s.repo, s.payments, sess)
}

// classifyVariance grades |variance| relative to the theoretical cash:
// normal ≤ 1%, warning ≤ 5%, critical above. With no theoretical cash any
// difference is critical.
func classifyVariance(variance, theoretical decimal.Decimal) model.VarianceClass {
	if variance.IsZero() {
		return model.VarianceNormal
	}
	if theoretical.IsZero() {
		return model.VarianceCritical
	}
	pct := variance.Abs().Div(theoretical.Abs()).Mul(decimal.NewFromInt(100))
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(1)):
		return model.VarianceNormal
	case pct.LessThanOrEqual(decimal.NewFromInt(5)):
		return model.VarianceWarning
	default:
		return model.VarianceCritical
	}
}
