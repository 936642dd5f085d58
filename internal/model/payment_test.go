package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProjectPayment(t *testing.T) {
	assert.Equal(t, ProjectionPending, ProjectPayment(d("50"), d("0")))
	assert.Equal(t, ProjectionPartial, ProjectPayment(d("50"), d("20")))
	assert.Equal(t, ProjectionPaid, ProjectPayment(d("50"), d("50")))
	assert.Equal(t, ProjectionPaid, ProjectPayment(d("50"), d("55")))
	assert.Equal(t, ProjectionPending, ProjectPayment(d("0"), d("0")))
}

func TestPaymentMethod(t *testing.T) {
	for _, m := range PaymentMethods {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, PaymentMethod("BITCOIN").Valid())
	assert.True(t, MethodCash.IsCash())
	assert.False(t, MethodWalletA.IsCash())
}

func TestCashSession_ApplyPayment(t *testing.T) {
	s := CashSession{OpeningAmount: d("100"), ExpenseTotal: d("20")}

	s.ApplyPayment(MethodCash, d("50"), 1)
	s.ApplyPayment(MethodCard, d("30"), 1)
	assert.True(t, s.CashTotal.Equal(d("50")))
	assert.True(t, s.DigitalTotal.Equal(d("30")))
	assert.True(t, s.SalesTotal().Equal(d("80")))
	assert.True(t, s.TheoreticalCash().Equal(d("130")))

	s.ApplyPayment(MethodCash, d("50"), -1)
	assert.True(t, s.CashTotal.IsZero())
	assert.True(t, s.TheoreticalCash().Equal(d("80")))
}

func TestMovementCategory_Valid(t *testing.T) {
	assert.True(t, CategoryRefund.Valid())
	assert.False(t, MovementCategory("LUNCH").Valid())
}
