package repository

import (
	"context"
	"time"

	"washly/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CajaRepository persists cash sessions and their movements. Movements are
// immutable: there is no Update/Delete for them.
type CajaRepository interface {
	CreateSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error
	// FindOpenByUser is the per-user index of open sessions. Returns
	// gorm.ErrRecordNotFound when the user has none. It never takes a row
	// lock: writers take the in-process session key first and only then lock
	// the row with FindSessionForUpdate.
	FindOpenByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	FindSessionForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	UpdateSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error
	CreateMovementTx(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error)
	ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error)
	// ListUnreported returns CLOSED sessions closed before the cutoff whose report was never sent.
	ListUnreported(ctx context.Context, closedBefore time.Time, limit int) ([]model.CashSession, error)
	// ClaimReportSend stamps report_sent_at on a CLOSED session that has none
	// and reports whether this caller won the row. Only the winner sends.
	ClaimReportSend(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ReleaseReportClaim undoes a claim stamped at at, so a failed send is
	// retried or swept later.
	ReleaseReportClaim(ctx context.Context, id uuid.UUID, at time.Time) error
	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *cajaRepo) CreateSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	return r.conn(tx).WithContext(ctx).Create(s).Error
}

func (r *cajaRepo) FindOpenByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SessionOpen).
		First(&s).Error
	return &s, err
}

func (r *cajaRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) FindSessionForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) UpdateSessionTx(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	return r.conn(tx).WithContext(ctx).Save(s).Error
}

func (r *cajaRepo) CreateMovementTx(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error {
	return r.conn(tx).WithContext(ctx).Create(m).Error
}

func (r *cajaRepo) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64
	q := r.db.WithContext(ctx).Model(&model.CashSession{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("opened_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&sessions).Error
	return sessions, total, err
}

func (r *cajaRepo) ListUnreported(ctx context.Context, closedBefore time.Time, limit int) ([]model.CashSession, error) {
	var sessions []model.CashSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND report_sent_at IS NULL AND closed_at < ?", model.SessionClosed, closedBefore).
		Order("closed_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *cajaRepo) ClaimReportSend(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CashSession{}).
		Where("id = ? AND status = ? AND report_sent_at IS NULL", id, model.SessionClosed).
		Update("report_sent_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *cajaRepo) ReleaseReportClaim(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.CashSession{}).
		Where("id = ? AND report_sent_at = ?", id, at).
		Update("report_sent_at", nil).Error
}
