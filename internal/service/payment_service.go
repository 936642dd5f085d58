package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type PaymentService interface {
	Record(ctx context.Context, actorID, ticketID uuid.UUID, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error)
	Void(ctx context.Context, actorID, paymentID uuid.UUID, req dto.VoidPaymentRequest) (*dto.PaymentResponse, error)
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]dto.PaymentResponse, error)
}

// ── ledger ────────────────────────────────────────────────────────────────────
// Shared by PaymentService and TicketService (initial payment on creation).
// Every write goes through appendTx so the payment row and the session
// aggregates always land in the same transaction.

type ledger struct {
	payments         repository.PaymentRepository
	caja             repository.CajaRepository
	allowOverpayment bool
}

func validatePaymentInput(amount decimal.Decimal, method string) (model.PaymentMethod, error) {
	if !amount.IsPositive() {
		return "", apierror.Validation("el monto del pago debe ser mayor a 0")
	}
	if !hasCents(amount) {
		return "", apierror.Validation("el monto del pago admite como maximo 2 decimales")
	}
	m := model.PaymentMethod(method)
	if !m.Valid() {
		return "", apierror.Validation("metodo de pago invalido: %q", method)
	}
	return m, nil
}

// openSessionTx returns the actor's OPEN session, locked in-process (held) and
// in the database (tx) until the caller's transaction ends. The lookup takes no
// row lock; the session key is always acquired before the row, as in Close,
// RecordMovement and Void.
func (l *ledger) openSessionTx(ctx context.Context, tx *gorm.DB, actorID uuid.UUID, held *heldLocks) (*model.CashSession, error) {
	sess, err := l.caja.FindOpenByUser(ctx, tx, actorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NoOpenSession("no hay una sesion de caja abierta para el usuario")
	}
	if err != nil {
		return nil, fmt.Errorf("buscar sesion abierta: %w", err)
	}

	id := sess.ID
	held.lock(sessionKey(id))
	// Re-read under the session lock: a concurrent close may have won.
	sess, err = l.caja.FindSessionForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("bloquear sesion %s: %w", id, err)
	}
	if !sess.IsOpen() {
		return nil, apierror.NoOpenSession("la sesion de caja del usuario ya fue cerrada")
	}
	return sess, nil
}

// checkOverpayment rejects amounts above the outstanding balance unless the
// policy allows crediting the client.
func (l *ledger) checkOverpayment(total, paid, amount decimal.Decimal) error {
	if l.allowOverpayment {
		return nil
	}
	outstanding := total.Sub(paid)
	if amount.GreaterThan(outstanding) {
		return apierror.Validation("el monto %s excede el saldo pendiente %s", amount.StringFixed(2), outstanding.StringFixed(2))
	}
	return nil
}

// appendTx writes p against sess and bumps the session aggregates.
func (l *ledger) appendTx(ctx context.Context, tx *gorm.DB, p *model.Payment, sess *model.CashSession) error {
	p.SessionID = &sess.ID
	p.Status = model.PaymentActive
	if err := l.payments.CreateTx(ctx, tx, p); err != nil {
		return fmt.Errorf("registrar pago: %w", err)
	}
	sess.ApplyPayment(p.Method, p.Amount, 1)
	if err := l.caja.UpdateSessionTx(ctx, tx, sess); err != nil {
		return fmt.Errorf("actualizar totales de sesion: %w", err)
	}
	return nil
}

// ── PaymentService ────────────────────────────────────────────────────────────

type paymentService struct {
	ledger
	tickets repository.TicketRepository
	locker  *infra.KeyedLocker
}

func NewPaymentService(
	tickets repository.TicketRepository,
	payments repository.PaymentRepository,
	caja repository.CajaRepository,
	locker *infra.KeyedLocker,
	allowOverpayment bool,
) PaymentService {
	return &paymentService{
		ledger:  ledger{payments: payments, caja: caja, allowOverpayment: allowOverpayment},
		tickets: tickets,
		locker:  locker,
	}
}

// ── Record ────────────────────────────────────────────────────────────────────
// Order of checks: input → ticket exists → ticket accepts payments →
// actor has an open session → over-payment policy.

func (s *paymentService) Record(ctx context.Context, actorID, ticketID uuid.UUID, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	method, err := validatePaymentInput(req.Amount, req.Method)
	if err != nil {
		return nil, err
	}

	held := &heldLocks{locker: s.locker}
	defer held.release()
	held.lock(userKey(actorID))

	if req.IdempotencyKey != nil {
		if prev, ok, err := s.replay(ctx, actorID, ticketID, *req.IdempotencyKey); err != nil || ok {
			return prev, err
		}
	}

	held.lock(ticketKey(ticketID))

	var payment *model.Payment
	txErr := runTx(ctx, s.tickets.DB(), func(tx *gorm.DB) error {
		ticket, err := s.tickets.FindByIDForUpdate(ctx, tx, ticketID)
		if err != nil {
			return notFoundOr(err, "ticket no encontrado")
		}
		paid, err := s.payments.SumActiveByTicket(ctx, tx, ticketID)
		if err != nil {
			return fmt.Errorf("sumar pagos: %w", err)
		}
		total := ticket.Total()

		switch {
		case ticket.Status == model.TicketCancelled:
			return apierror.Validation("el ticket %d esta anulado y no admite pagos", ticket.Number)
		case ticket.Status == model.TicketDelivered && paid.GreaterThanOrEqual(total):
			return apierror.Validation("el ticket %d ya fue entregado y esta pagado", ticket.Number)
		}

		sess, err := s.openSessionTx(ctx, tx, actorID, held)
		if err != nil {
			return err
		}
		if err := s.checkOverpayment(total, paid, req.Amount); err != nil {
			return err
		}

		payment = &model.Payment{
			ID:             uuid.New(),
			TicketID:       ticketID,
			Amount:         req.Amount,
			Method:         method,
			Origin:         model.OriginTicketPayment,
			UserID:         actorID,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now(),
		}
		return s.appendTx(ctx, tx, payment, sess)
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) && req.IdempotencyKey != nil {
			// Another instance stored the same key first.
			if prev, ok, err := s.replay(ctx, actorID, ticketID, *req.IdempotencyKey); err == nil && ok {
				return prev, nil
			}
		}
		return nil, txErr
	}

	log.Info().
		Str("payment_id", payment.ID.String()).
		Str("ticket_id", ticketID.String()).
		Str("method", string(method)).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("pago registrado")

	resp := toPaymentResponse(payment)
	return &resp, nil
}

// replay returns the payment already stored under key, if any. A key reused
// for another ticket is rejected.
func (s *paymentService) replay(ctx context.Context, actorID, ticketID uuid.UUID, key string) (*dto.PaymentResponse, bool, error) {
	prev, err := s.payments.FindByIdempotencyKey(ctx, actorID, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("buscar clave de idempotencia: %w", err)
	}
	if prev.TicketID != ticketID {
		return nil, false, apierror.Validation("la clave de idempotencia ya fue usada para otro ticket")
	}
	resp := toPaymentResponse(prev)
	resp.Replayed = true
	return &resp, true, nil
}

// ── Void ──────────────────────────────────────────────────────────────────────
// The payment stays in the ledger with status VOID. An open session is
// decremented; a closed one is left frozen and a post-close adjustment row is
// written instead.

func (s *paymentService) Void(ctx context.Context, actorID, paymentID uuid.UUID, req dto.VoidPaymentRequest) (*dto.PaymentResponse, error) {
	probe, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, notFoundOr(err, "pago no encontrado")
	}

	held := &heldLocks{locker: s.locker}
	defer held.release()
	held.lock(ticketKey(probe.TicketID))
	if probe.SessionID != nil {
		held.lock(sessionKey(*probe.SessionID))
	}

	var payment *model.Payment
	txErr := runTx(ctx, s.tickets.DB(), func(tx *gorm.DB) error {
		p, err := s.payments.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return notFoundOr(err, "pago no encontrado")
		}
		if p.Status == model.PaymentVoid {
			return apierror.IllegalTransition("el pago ya fue anulado")
		}

		now := time.Now()
		reason := strings.TrimSpace(req.Reason)
		p.Status = model.PaymentVoid
		p.VoidedAt = &now
		p.VoidedBy = &actorID
		if reason != "" {
			p.VoidReason = &reason
		}

		if p.SessionID != nil {
			sess, err := s.caja.FindSessionForUpdate(ctx, tx, *p.SessionID)
			if err != nil {
				return fmt.Errorf("bloquear sesion %s: %w", *p.SessionID, err)
			}
			if sess.IsOpen() {
				sess.ApplyPayment(p.Method, p.Amount, -1)
				if err := s.caja.UpdateSessionTx(ctx, tx, sess); err != nil {
					return fmt.Errorf("actualizar totales de sesion: %w", err)
				}
			} else {
				p.PostCloseAdjustment = true
				adj := &model.PostCloseAdjustment{
					ID:        uuid.New(),
					SessionID: sess.ID,
					PaymentID: p.ID,
					Method:    p.Method,
					Amount:    p.Amount,
					Reason:    reason,
					CreatedBy: actorID,
					CreatedAt: now,
				}
				if err := s.payments.CreateAdjustmentTx(ctx, tx, adj); err != nil {
					return fmt.Errorf("registrar ajuste post-cierre: %w", err)
				}
			}
		}

		if err := s.payments.MarkVoidTx(ctx, tx, p); err != nil {
			return fmt.Errorf("anular pago: %w", err)
		}
		payment = p
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("payment_id", payment.ID.String()).
		Bool("post_close_adjustment", payment.PostCloseAdjustment).
		Msg("pago anulado")

	resp := toPaymentResponse(payment)
	return &resp, nil
}

// ── ListByTicket ──────────────────────────────────────────────────────────────

func (s *paymentService) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]dto.PaymentResponse, error) {
	if _, err := s.tickets.FindByID(ctx, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket no encontrado")
	}
	payments, err := s.payments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("listar pagos: %w", err)
	}
	resp := make([]dto.PaymentResponse, len(payments))
	for i := range payments {
		resp[i] = toPaymentResponse(&payments[i])
	}
	return resp, nil
}

func toPaymentResponse(p *model.Payment) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:                  p.ID.String(),
		TicketID:            p.TicketID.String(),
		Amount:              p.Amount,
		Method:              string(p.Method),
		Status:              string(p.Status),
		Origin:              string(p.Origin),
		UserID:              p.UserID.String(),
		PostCloseAdjustment: p.PostCloseAdjustment,
		VoidReason:          p.VoidReason,
		CreatedAt:           p.CreatedAt.Format(timeLayout),
	}
	if p.SessionID != nil {
		sid := p.SessionID.String()
		resp.SessionID = &sid
	}
	if p.VoidedAt != nil {
		at := p.VoidedAt.Format(timeLayout)
		resp.VoidedAt = &at
	}
	return resp
}
