package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"min=0"`
}

type CashMovementRequest struct {
	Amount      decimal.Decimal `json:"amount"      validate:"gt=0"`
	Category    string          `json:"category"    validate:"required,oneof=SUPPLIES SERVICES TRANSPORT WAGES REFUND OTHER"`
	Description string          `json:"description" validate:"required,min=3,max=500"`
}

type CloseSessionRequest struct {
	CountedAmount decimal.Decimal `json:"counted_amount" validate:"min=0"`
	Comments      *string         `json:"comments"       validate:"omitempty,max=1000"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CashSessionResponse struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	OpeningAmount   decimal.Decimal `json:"opening_amount"`
	CashTotal       decimal.Decimal `json:"cash_total"`
	DigitalTotal    decimal.Decimal `json:"digital_total"`
	SalesTotal      decimal.Decimal `json:"sales_total"`
	ExpenseTotal    decimal.Decimal `json:"expense_total"`
	TheoreticalCash decimal.Decimal `json:"theoretical_cash"`
	OpenedAt        string          `json:"opened_at"`
	ClosedAt        *string         `json:"closed_at"`
}

type CashMovementResponse struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
}

type AdjustmentResponse struct {
	PaymentID string          `json:"payment_id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt string          `json:"created_at"`
}

// CashSessionReport is returned by close and by the report endpoint.
type CashSessionReport struct {
	CashSessionResponse
	ByMethod      map[string]decimal.Decimal `json:"by_method"`
	CountedAmount *decimal.Decimal           `json:"counted_amount"`
	Variance      *decimal.Decimal           `json:"variance"`
	VarianceClass *string                    `json:"variance_class"` // normal | warning | critical
	Comments      *string                    `json:"comments"`
	Movements     []CashMovementResponse     `json:"movements"`
	Adjustments   []AdjustmentResponse       `json:"post_close_adjustments"`
}

type CashSessionListResponse struct {
	Data  []CashSessionResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
