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

type CajaService interface {
	Open(ctx context.Context, userID uuid.UUID, req dto.OpenSessionRequest) (*dto.CashSessionResponse, error)
	RecordMovement(ctx context.Context, actor Actor, sessionID uuid.UUID, req dto.CashMovementRequest) (*dto.CashMovementResponse, error)
	// GetOpen returns nil, nil when the user has no open session.
	GetOpen(ctx context.Context, userID uuid.UUID) (*dto.CashSessionResponse, error)
	Report(ctx context.Context, sessionID uuid.UUID) (*dto.CashSessionReport, error)
	History(ctx context.Context, page, limit int) (*dto.CashSessionListResponse, error)
}

type cajaService struct {
	repo     repository.CajaRepository
	payments repository.PaymentRepository
	locker   *infra.KeyedLocker
}

func NewCajaService(repo repository.CajaRepository, payments repository.PaymentRepository, locker *infra.KeyedLocker) CajaService {
	return &cajaService{repo: repo, payments: payments, locker: locker}
}

// ── Open ──────────────────────────────────────────────────────────────────────
// One OPEN session per user: checked under the user lock and backed by the
// partial unique index on cash_sessions.

func (s *cajaService) Open(ctx context.Context, userID uuid.UUID, req dto.OpenSessionRequest) (*dto.CashSessionResponse, error) {
	if req.OpeningAmount.IsNegative() {
		return nil, apierror.Validation("el monto inicial no puede ser negativo")
	}
	if !hasCents(req.OpeningAmount) {
		return nil, apierror.Validation("el monto inicial admite como maximo 2 decimales")
	}

	unlock := s.locker.Lock(userKey(userID))
	defer unlock()

	sess := &model.CashSession{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        model.SessionOpen,
		OpeningAmount: req.OpeningAmount,
		OpenedAt:      time.Now(),
	}
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		existing, err := s.repo.FindOpenByUser(ctx, tx, userID)
		switch {
		case err == nil:
			return apierror.AlreadyOpen("el usuario ya tiene una sesion de caja abierta desde %s", existing.OpenedAt.Format(timeLayout))
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("buscar sesion abierta: %w", err)
		}
		return s.repo.CreateSessionTx(ctx, tx, sess)
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return nil, apierror.AlreadyOpen("el usuario ya tiene una sesion de caja abierta")
		}
		return nil, txErr
	}

	log.Info().Str("session_id", sess.ID.String()).Str("user_id", userID.String()).Msg("sesion de caja abierta")
	resp := toCashSessionResponse(sess)
	return &resp, nil
}

// ── RecordMovement ────────────────────────────────────────────────────────────
// Expenses only. Movements are immutable; expense_total moves with them.
// A cashier posts only against their own session.

func (s *cajaService) RecordMovement(ctx context.Context, actor Actor, sessionID uuid.UUID, req dto.CashMovementRequest) (*dto.CashMovementResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, apierror.Validation("el monto del movimiento debe ser mayor a 0")
	}
	if !hasCents(req.Amount) {
		return nil, apierror.Validation("el monto del movimiento admite como maximo 2 decimales")
	}
	category := model.MovementCategory(req.Category)
	if !category.Valid() {
		return nil, apierror.Validation("categoria invalida: %q", req.Category)
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return nil, apierror.Validation("la descripcion del movimiento es obligatoria")
	}

	unlock := s.locker.Lock(sessionKey(sessionID))
	defer unlock()

	mov := &model.CashMovement{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Amount:      req.Amount,
		Category:    category,
		Description: desc,
		CreatedBy:   actor.ID,
		CreatedAt:   time.Now(),
	}
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.repo.FindSessionForUpdate(ctx, tx, sessionID)
		if err != nil {
			return notFoundOr(err, "sesion de caja no encontrada")
		}
		if err := checkSessionOwner(actor, sess); err != nil {
			return err
		}
		if !sess.IsOpen() {
			return apierror.SessionClosed("la sesion de caja esta cerrada")
		}
		if err := s.repo.CreateMovementTx(ctx, tx, mov); err != nil {
			return fmt.Errorf("registrar movimiento: %w", err)
		}
		sess.ExpenseTotal = sess.ExpenseTotal.Add(mov.Amount)
		if err := s.repo.UpdateSessionTx(ctx, tx, sess); err != nil {
			return fmt.Errorf("actualizar totales de sesion: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().Str("session_id", sessionID.String()).Str("category", string(category)).Str("amount", mov.Amount.StringFixed(2)).Msg("egreso registrado")
	resp := toCashMovementResponse(mov)
	return &resp, nil
}

// ── GetOpen ───────────────────────────────────────────────────────────────────

func (s *cajaService) GetOpen(ctx context.Context, userID uuid.UUID) (*dto.CashSessionResponse, error) {
	sess, err := s.repo.FindOpenByUser(ctx, nil, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buscar sesion abierta: %w", err)
	}
	resp := toCashSessionResponse(sess)
	return &resp, nil
}

// ── Report / History ──────────────────────────────────────────────────────────

func (s *cajaService) Report(ctx context.Context, sessionID uuid.UUID) (*dto.CashSessionReport, error) {
	sess, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "sesion de caja no encontrada")
	}
	return buildReport(ctx, s.repo, s.payments, sess)
}

func (s *cajaService) History(ctx context.Context, page, limit int) (*dto.CashSessionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	sessions, total, err := s.repo.ListSessions(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("listar sesiones: %w", err)
	}
	data := make([]dto.CashSessionResponse, len(sessions))
	for i := range sessions {
		data[i] = toCashSessionResponse(&sessions[i])
	}
	return &dto.CashSessionListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// buildReport assembles the live (OPEN) or final (CLOSED) report of sess.
// Aggregates come from the stored columns; the per-method breakdown and the
// movement list are read for display only.
func buildReport(ctx context.Context, repo repository.CajaRepository, payments repository.PaymentRepository, sess *model.CashSession) (*dto.CashSessionReport, error) {
	byMethod, err := payments.SumActiveByMethod(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("totales por metodo: %w", err)
	}
	movs, err := repo.ListMovements(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("listar movimientos: %w", err)
	}
	adjustments, err := payments.ListAdjustments(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("listar ajustes: %w", err)
	}

	report := &dto.CashSessionReport{
		CashSessionResponse: toCashSessionResponse(sess),
		ByMethod:            make(map[string]decimal.Decimal, len(byMethod)),
		CountedAmount:       sess.CountedAmount,
		Variance:            sess.Variance,
		Comments:            sess.Comments,
		Movements:           make([]dto.CashMovementResponse, len(movs)),
		Adjustments:         make([]dto.AdjustmentResponse, len(adjustments)),
	}
	for m, total := range byMethod {
		report.ByMethod[string(m)] = total
	}
	if sess.VarianceClass != nil {
		class := string(*sess.VarianceClass)
		report.VarianceClass = &class
	}
	for i := range movs {
		report.Movements[i] = toCashMovementResponse(&movs[i])
	}
	for i, a := range adjustments {
		report.Adjustments[i] = dto.AdjustmentResponse{
			PaymentID: a.PaymentID.String(),
			Method:    string(a.Method),
			Amount:    a.Amount,
			Reason:    a.Reason,
			CreatedAt: a.CreatedAt.Format(timeLayout),
		}
	}
	return report, nil
}

func toCashSessionResponse(s *model.CashSession) dto.CashSessionResponse {
	resp := dto.CashSessionResponse{
		ID:              s.ID.String(),
		UserID:          s.UserID.String(),
		Status:          string(s.Status),
		OpeningAmount:   s.OpeningAmount,
		CashTotal:       s.CashTotal,
		DigitalTotal:    s.DigitalTotal,
		SalesTotal:      s.SalesTotal(),
		ExpenseTotal:    s.ExpenseTotal,
		TheoreticalCash: s.TheoreticalCash(),
		OpenedAt:        s.OpenedAt.Format(timeLayout),
	}
	if s.ClosedAt != nil {
		at := s.ClosedAt.Format(timeLayout)
		resp.ClosedAt = &at
	}
	return resp
}

func toCashMovementResponse(m *model.CashMovement) dto.CashMovementResponse {
	return dto.CashMovementResponse{
		ID:          m.ID.String(),
		SessionID:   m.SessionID.String(),
		Amount:      m.Amount,
		Category:    string(m.Category),
		Description: m.Description,
		CreatedBy:   m.CreatedBy.String(),
		CreatedAt:   m.CreatedAt.Format(timeLayout),
	}
}
