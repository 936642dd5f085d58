package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Method string          `json:"method" validate:"required,oneof=CASH WALLET_A WALLET_B CARD TRANSFER"`
	// IdempotencyKey is filled from the Idempotency-Key header.
	IdempotencyKey *string `json:"-"`
}

type VoidPaymentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PaymentResponse struct {
	ID                  string          `json:"id"`
	TicketID            string          `json:"ticket_id"`
	Amount              decimal.Decimal `json:"amount"`
	Method              string          `json:"method"`
	Status              string          `json:"status"`
	Origin              string          `json:"origin"`
	SessionID           *string         `json:"session_id"`
	UserID              string          `json:"user_id"`
	PostCloseAdjustment bool            `json:"post_close_adjustment"`
	VoidReason          *string         `json:"void_reason,omitempty"`
	VoidedAt            *string         `json:"voided_at,omitempty"`
	CreatedAt           string          `json:"created_at"`
	// Replayed is true when an idempotency key matched an earlier payment.
	Replayed bool `json:"replayed,omitempty"`
}
