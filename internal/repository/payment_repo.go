package repository

import (
	"context"

	"washly/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository is the only authority for "amount paid to date".
// Payments are never deleted; voiding is an update of the status columns.
type PaymentRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, p *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Payment, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*model.Payment, error)
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]model.Payment, error)
	// SumActiveByTicket reads inside tx when tx is non-nil so the caller sees its own writes.
	SumActiveByTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (decimal.Decimal, error)
	SumActiveByMethod(ctx context.Context, sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error)
	MarkVoidTx(ctx context.Context, tx *gorm.DB, p *model.Payment) error
	CreateAdjustmentTx(ctx context.Context, tx *gorm.DB, a *model.PostCloseAdjustment) error
	ListAdjustments(ctx context.Context, sessionID uuid.UUID) ([]model.PostCloseAdjustment, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentRepo) CreateTx(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	return r.conn(tx).WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *paymentRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	return &p, err
}

func (r *paymentRepo) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key).First(&p).Error
	return &p, err
}

func (r *paymentRepo) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at ASC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) SumActiveByTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.conn(tx).WithContext(ctx).Model(&model.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("ticket_id = ? AND status = ?", ticketID, model.PaymentActive).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

func (r *paymentRepo) SumActiveByMethod(ctx context.Context, sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error) {
	var rows []struct {
		Method model.PaymentMethod
		Total  decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Select("method, SUM(amount) AS total").
		Where("session_id = ? AND status = ?", sessionID, model.PaymentActive).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[model.PaymentMethod]decimal.Decimal, len(model.PaymentMethods))
	for _, m := range model.PaymentMethods {
		sums[m] = decimal.Zero
	}
	for _, row := range rows {
		sums[row.Method] = row.Total
	}
	return sums, nil
}

func (r *paymentRepo) MarkVoidTx(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	return r.conn(tx).WithContext(ctx).Model(&model.Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
		"status":                p.Status,
		"voided_at":             p.VoidedAt,
		"voided_by":             p.VoidedBy,
		"void_reason":           p.VoidReason,
		"post_close_adjustment": p.PostCloseAdjustment,
	}).Error
}

func (r *paymentRepo) CreateAdjustmentTx(ctx context.Context, tx *gorm.DB, a *model.PostCloseAdjustment) error {
	return r.conn(tx).WithContext(ctx).Create(a).Error
}

func (r *paymentRepo) ListAdjustments(ctx context.Context, sessionID uuid.UUID) ([]model.PostCloseAdjustment, error) {
	var adjustments []model.PostCloseAdjustment
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&adjustments).Error
	return adjustments, err
}
