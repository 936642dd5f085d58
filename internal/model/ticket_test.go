package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTicketStatus_Transitions(t *testing.T) {
	legal := map[TicketStatus][]TicketStatus{
		TicketReceived:   {TicketInProgress, TicketCancelled},
		TicketInProgress: {TicketReady, TicketCancelled},
		TicketReady:      {TicketDelivered, TicketCancelled},
	}
	all := []TicketStatus{TicketReceived, TicketInProgress, TicketReady, TicketDelivered, TicketCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range legal[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTicketStatus_Terminal(t *testing.T) {
	assert.True(t, TicketDelivered.IsTerminal())
	assert.True(t, TicketCancelled.IsTerminal())
	assert.False(t, TicketReady.IsTerminal())
	assert.Empty(t, TicketDelivered.NextStatuses())
	assert.Equal(t, []TicketStatus{TicketReady, TicketCancelled}, TicketInProgress.NextStatuses())
}

func TestTicketStatus_NextStatusesIsACopy(t *testing.T) {
	next := TicketReceived.NextStatuses()
	next[0] = TicketDelivered
	assert.True(t, TicketReceived.CanTransitionTo(TicketInProgress))
	assert.False(t, TicketReceived.CanTransitionTo(TicketDelivered))
}

func TestTicketStatus_Valid(t *testing.T) {
	assert.True(t, TicketReady.Valid())
	assert.False(t, TicketStatus("LOST").Valid())
	assert.True(t, DeliveryPickup.Valid())
	assert.False(t, DeliveryMode("DRONE").Valid())
}

func TestTicket_Total(t *testing.T) {
	ticket := Ticket{Items: []TicketItem{
		{Subtotal: LineSubtotal(decimal.RequireFromString("2.5"), decimal.RequireFromString("6.50"))},
		{Subtotal: LineSubtotal(decimal.RequireFromString("0.333"), decimal.RequireFromString("10.00"))},
	}}
	// 16.25 + 3.33
	assert.True(t, ticket.Total().Equal(decimal.RequireFromString("19.58")), ticket.Total().String())
	assert.True(t, (&Ticket{}).Total().IsZero())
}
