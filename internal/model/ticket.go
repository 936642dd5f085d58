package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketStatus is the lifecycle state of a service order.
type TicketStatus string

const (
	TicketReceived   TicketStatus = "RECEIVED"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketReady      TicketStatus = "READY"
	TicketDelivered  TicketStatus = "DELIVERED"
	TicketCancelled  TicketStatus = "CANCELLED"
)

// ticketTransitions is the only source of truth for legal status moves.
// Terminal states have no entry.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketReceived:   {TicketInProgress, TicketCancelled},
	TicketInProgress: {TicketReady, TicketCancelled},
	TicketReady:      {TicketDelivered, TicketCancelled},
}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketReceived, TicketInProgress, TicketReady, TicketDelivered, TicketCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition out of s exists.
func (s TicketStatus) IsTerminal() bool {
	return len(ticketTransitions[s]) == 0
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	for _, next := range ticketTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s (nil for terminal states).
func (s TicketStatus) NextStatuses() []TicketStatus {
	next := ticketTransitions[s]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}

// DeliveryMode: PICKUP | DELIVERY
type DeliveryMode string

const (
	DeliveryPickup   DeliveryMode = "PICKUP"
	DeliveryDelivery DeliveryMode = "DELIVERY"
)

func (m DeliveryMode) Valid() bool {
	return m == DeliveryPickup || m == DeliveryDelivery
}

// Ticket is a customer service order. Total, paid-to-date and balance are
// derived: items give the total, the payment ledger gives the rest.
type Ticket struct {
	ID                 uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Number             int          `gorm:"uniqueIndex;not null"`
	ClientID           uuid.UUID    `gorm:"type:uuid;index;not null"`
	Status             TicketStatus `gorm:"type:varchar(20);not null;index"`
	DeliveryMode       DeliveryMode `gorm:"type:varchar(20);not null"`
	PromisedAt         *time.Time
	Observations       string
	CancellationReason *string
	CancelledAt        *time.Time
	CreatedBy          uuid.UUID `gorm:"type:uuid;not null"`
	// IdempotencyKey is unique per CreatedBy (partial index, see infra.database)
	IdempotencyKey *string `gorm:"type:varchar(100)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items   []TicketItem         `gorm:"foreignKey:TicketID"`
	History []TicketStatusChange `gorm:"foreignKey:TicketID"`
}

// Total sums the item subtotals.
func (t *Ticket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// TicketItem is immutable once the ticket exists.
type TicketItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TicketID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Position    int             `gorm:"not null"`
	ServiceID   *uuid.UUID      `gorm:"type:uuid"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description string          `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// LineSubtotal is quantity × unit price rounded to cents.
func LineSubtotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// TicketStatusChange is an append-only audit row. FromStatus is empty for the
// creation entry.
type TicketStatusChange struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TicketID   uuid.UUID    `gorm:"type:uuid;index;not null"`
	FromStatus TicketStatus `gorm:"type:varchar(20)"`
	ToStatus   TicketStatus `gorm:"type:varchar(20);not null"`
	Comment    string
	ActorID    uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time
}
