package repository

import (
	"context"

	"washly/internal/dto"
	"washly/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketRepository interface {
	Create(ctx context.Context, tx *gorm.DB, t *model.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	// FindByIDForUpdate loads the ticket with a row lock held until tx ends.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Ticket, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*model.Ticket, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, t *model.Ticket) error
	AppendHistoryTx(ctx context.Context, tx *gorm.DB, h *model.TicketStatusChange) error
	NextTicketNumber(ctx context.Context, tx *gorm.DB) (int, error)
	List(ctx context.Context, filter dto.TicketFilter) ([]model.Ticket, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ticketRepo struct{ db *gorm.DB }

func NewTicketRepository(db *gorm.DB) TicketRepository { return &ticketRepo{db: db} }

func (r *ticketRepo) DB() *gorm.DB { return r.db }

func (r *ticketRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ticketRepo) Create(ctx context.Context, tx *gorm.DB, t *model.Ticket) error {
	return r.conn(tx).WithContext(ctx).Create(t).Error
}

func (r *ticketRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&t, "id = ?", id).Error
	return &t, err
}

func (r *ticketRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Ticket, error) {
	var t model.Ticket
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	err = r.conn(tx).WithContext(ctx).Where("ticket_id = ?", id).Order("position ASC").Find(&t.Items).Error
	return &t, err
}

func (r *ticketRepo) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("created_by = ? AND idempotency_key = ?", userID, key).
		First(&t).Error
	return &t, err
}

func (r *ticketRepo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, t *model.Ticket) error {
	return r.conn(tx).WithContext(ctx).Model(&model.Ticket{}).Where("id = ?", t.ID).Updates(map[string]any{
		"status":              t.Status,
		"cancellation_reason": t.CancellationReason,
		"cancelled_at":        t.CancelledAt,
		"updated_at":          t.UpdatedAt,
	}).Error
}

func (r *ticketRepo) AppendHistoryTx(ctx context.Context, tx *gorm.DB, h *model.TicketStatusChange) error {
	return r.conn(tx).WithContext(ctx).Create(h).Error
}

func (r *ticketRepo) NextTicketNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	// Uses a PostgreSQL sequence for atomic ticket number generation
	var num int
	err := r.conn(tx).WithContext(ctx).Raw("SELECT nextval('tickets_number_seq')").Scan(&num).Error
	return num, err
}

func (r *ticketRepo) List(ctx context.Context, filter dto.TicketFilter) ([]model.Ticket, int64, error) {
	var tickets []model.Ticket
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Ticket{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&tickets).Error

	return tickets, total, err
}
