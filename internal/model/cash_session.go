package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus: OPEN | CLOSED. CLOSED is final.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// VarianceClass: normal (<=1%) | warning (<=5%) | critical (>5%)
type VarianceClass string

const (
	VarianceNormal   VarianceClass = "normal"
	VarianceWarning  VarianceClass = "warning"
	VarianceCritical VarianceClass = "critical"
)

// CashSession is a cashier's working shift. The running totals are stored and
// maintained in the same transaction as every payment or movement that touches
// them; SalesTotal and TheoreticalCash are derived from them.
type CashSession struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status        SessionStatus   `gorm:"type:varchar(10);not null;default:'OPEN'"`
	OpeningAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CashTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DigitalTotal  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ExpenseTotal  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// Closing data, nil while OPEN
	CountedAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Variance      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	VarianceClass *VarianceClass   `gorm:"type:varchar(10)"`
	Comments      *string
	OpenedAt      time.Time
	ClosedAt      *time.Time
	// ReportSentAt is set by the notification worker once the closing report went out.
	ReportSentAt *time.Time
	UpdatedAt    time.Time
}

func (s *CashSession) IsOpen() bool { return s.Status == SessionOpen }

func (s *CashSession) SalesTotal() decimal.Decimal {
	return s.CashTotal.Add(s.DigitalTotal)
}

// TheoreticalCash = opening + cash sales − expenses.
func (s *CashSession) TheoreticalCash() decimal.Decimal {
	return s.OpeningAmount.Add(s.CashTotal).Sub(s.ExpenseTotal)
}

// ApplyPayment adds (sign=+1) or removes (sign=-1) a payment from the totals.
func (s *CashSession) ApplyPayment(method PaymentMethod, amount decimal.Decimal, sign int64) {
	delta := amount.Mul(decimal.NewFromInt(sign))
	if method.IsCash() {
		s.CashTotal = s.CashTotal.Add(delta)
		return
	}
	s.DigitalTotal = s.DigitalTotal.Add(delta)
}

// MovementCategory classifies manual cash outflows.
type MovementCategory string

const (
	CategorySupplies  MovementCategory = "SUPPLIES"
	CategoryServices  MovementCategory = "SERVICES"
	CategoryTransport MovementCategory = "TRANSPORT"
	CategoryWages     MovementCategory = "WAGES"
	CategoryRefund    MovementCategory = "REFUND"
	CategoryOther     MovementCategory = "OTHER"
)

func (c MovementCategory) Valid() bool {
	switch c {
	case CategorySupplies, CategoryServices, CategoryTransport, CategoryWages, CategoryRefund, CategoryOther:
		return true
	}
	return false
}

// CashMovement is an immutable expense taken out of the drawer.
type CashMovement struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SessionID   uuid.UUID        `gorm:"type:uuid;index;not null"`
	Amount      decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	Category    MovementCategory `gorm:"type:varchar(20);not null"`
	Description string           `gorm:"not null"`
	CreatedBy   uuid.UUID        `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
}

// PostCloseAdjustment records a void that hit an already closed session. The
// session keeps its frozen figures; supervisors reconcile these rows by hand.
type PostCloseAdjustment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID       `gorm:"type:uuid;index;not null"`
	PaymentID uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	Method    PaymentMethod   `gorm:"type:varchar(20);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason    string
	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}
