package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / List ──────────────────────────────────────────────────────────

// TicketFilter is bound from the query string of GET /v1/tickets.
type TicketFilter struct {
	Status   string `form:"status"`    // empty = all
	ClientID string `form:"client_id"` // uuid; empty = all
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type TicketListResponse struct {
	Data  []TicketResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type TicketItemRequest struct {
	// ServiceID is optional; when set and UnitPrice is nil the catalog price is used.
	ServiceID   *string          `json:"service_id"  validate:"omitempty,uuid"`
	Quantity    decimal.Decimal  `json:"quantity"    validate:"gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Description string           `json:"description" validate:"required"`
}

type InitialPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Method string          `json:"method" validate:"required,oneof=CASH WALLET_A WALLET_B CARD TRANSFER"`
}

type CreateTicketRequest struct {
	ClientID       string                 `json:"client_id"       validate:"required,uuid"`
	Items          []TicketItemRequest    `json:"items"           validate:"required,min=1,dive"`
	DeliveryMode   string                 `json:"delivery_mode"   validate:"required,oneof=PICKUP DELIVERY"`
	PromisedAt     *time.Time             `json:"promised_at"`
	Observations   string                 `json:"observations"    validate:"max=1000"`
	InitialPayment *InitialPaymentRequest `json:"initial_payment"`
	// IdempotencyKey is filled from the Idempotency-Key header.
	IdempotencyKey *string `json:"-"`
}

type UpdateStatusRequest struct {
	Status  string `json:"status"  validate:"required,oneof=RECEIVED IN_PROGRESS READY DELIVERED CANCELLED"`
	Comment string `json:"comment" validate:"max=500"`
}

type CancelTicketRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TicketItemResponse struct {
	ServiceID   *string         `json:"service_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Description string          `json:"description"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type StatusChangeResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Comment   string `json:"comment"`
	ActorID   string `json:"actor_id"`
	CreatedAt string `json:"created_at"`
}

type TicketBalanceResponse struct {
	TicketID      string          `json:"ticket_id"`
	Total         decimal.Decimal `json:"total"`
	PaidToDate    decimal.Decimal `json:"paid_to_date"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentStatus string          `json:"payment_status"` // PENDING | PARTIAL | PAID
}

type TicketResponse struct {
	ID                 string                 `json:"id"`
	Number             int                    `json:"number"`
	ClientID           string                 `json:"client_id"`
	Status             string                 `json:"status"`
	NextStatuses       []string               `json:"next_statuses"`
	DeliveryMode       string                 `json:"delivery_mode"`
	PromisedAt         *string                `json:"promised_at"`
	Observations       string                 `json:"observations"`
	CancellationReason *string                `json:"cancellation_reason"`
	Items              []TicketItemResponse   `json:"items"`
	History            []StatusChangeResponse `json:"history,omitempty"`
	Balance            TicketBalanceResponse  `json:"balance"`
	InitialPayment     *PaymentResponse       `json:"initial_payment,omitempty"`
	CreatedAt          string                 `json:"created_at"`
	UpdatedAt          string                 `json:"updated_at"`
	// Replayed is true when an idempotency key matched an earlier creation.
	Replayed bool `json:"replayed,omitempty"`
}
