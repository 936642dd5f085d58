package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod: CASH counts towards the drawer, everything else is digital.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodWalletA  PaymentMethod = "WALLET_A"
	MethodWalletB  PaymentMethod = "WALLET_B"
	MethodCard     PaymentMethod = "CARD"
	MethodTransfer PaymentMethod = "TRANSFER"
)

// PaymentMethods lists every accepted method in report order.
var PaymentMethods = []PaymentMethod{MethodCash, MethodWalletA, MethodWalletB, MethodCard, MethodTransfer}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

func (m PaymentMethod) IsCash() bool { return m == MethodCash }

// PaymentStatus: ACTIVE | VOID. A VOID payment is kept for audit.
type PaymentStatus string

const (
	PaymentActive PaymentStatus = "ACTIVE"
	PaymentVoid   PaymentStatus = "VOID"
)

// PaymentOrigin records which flow created the payment.
type PaymentOrigin string

const (
	OriginTicketCreation PaymentOrigin = "TICKET_CREATION"
	OriginTicketPayment  PaymentOrigin = "TICKET_PAYMENT"
)

// Payment is a capture event against a ticket. SessionID is fixed at creation.
type Payment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TicketID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method    PaymentMethod   `gorm:"type:varchar(20);not null"`
	Status    PaymentStatus   `gorm:"type:varchar(10);not null;index"`
	Origin    PaymentOrigin   `gorm:"type:varchar(20);not null"`
	SessionID *uuid.UUID      `gorm:"type:uuid;index"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null"`
	// IdempotencyKey is unique per UserID (partial index, see infra.database)
	IdempotencyKey *string `gorm:"type:varchar(100)"`
	// PostCloseAdjustment is set when the payment was voided after its session closed.
	PostCloseAdjustment bool `gorm:"not null;default:false"`
	VoidedAt            *time.Time
	VoidedBy            *uuid.UUID `gorm:"type:uuid"`
	VoidReason          *string
	CreatedAt           time.Time
}

// PaymentProjection is the derived payment state of a ticket. Never stored.
type PaymentProjection string

const (
	ProjectionPending PaymentProjection = "PENDING"
	ProjectionPartial PaymentProjection = "PARTIAL"
	ProjectionPaid    PaymentProjection = "PAID"
)

// ProjectPayment derives PENDING / PARTIAL / PAID from the ticket total and the
// ledger sum.
func ProjectPayment(total, paid decimal.Decimal) PaymentProjection {
	switch {
	case paid.IsZero():
		return ProjectionPending
	case paid.GreaterThanOrEqual(total):
		return ProjectionPaid
	default:
		return ProjectionPartial
	}
}
