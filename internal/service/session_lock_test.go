package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"washly/internal/apierror"
	"washly/internal/dto"
	"washly/internal/model"
	"washly/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// rowLockedCaja gives fakeCaja the blocking behaviour of SELECT ... FOR UPDATE
// on cash_sessions. FindSessionForUpdate waits while another writer holds the
// row. The row is released by the UpdateSessionTx that follows, or at once
// when the session is already closed and the caller is about to abort.
// FindOpenByUser stays a plain read, as in the gorm repository.
type rowLockedCaja struct {
	fakeCaja
	mu   sync.Mutex
	rows map[uuid.UUID]chan struct{}
}

func (r *rowLockedCaja) row(id uuid.UUID) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = make(map[uuid.UUID]chan struct{})
	}
	ch, ok := r.rows[id]
	if !ok {
		ch = make(chan struct{}, 1)
		r.rows[id] = ch
	}
	return ch
}

func (r *rowLockedCaja) FindSessionForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	row := r.row(id)
	select {
	case row <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	sess, err := r.fakeCaja.FindSessionForUpdate(ctx, tx, id)
	if err != nil || !sess.IsOpen() {
		<-row
	}
	return sess, err
}

func (r *rowLockedCaja) UpdateSessionTx(ctx context.Context, tx *gorm.DB, sess *model.CashSession) error {
	err := r.fakeCaja.UpdateSessionTx(ctx, tx, sess)
	select {
	case <-r.row(sess.ID):
	default:
	}
	return err
}

func TestSessionWriters_RaceWithCloseWithoutDeadlock(t *testing.T) {
	env := newTestEnvWithCaja(t, false, func(r fakeCaja) repository.CajaRepository {
		return &rowLockedCaja{fakeCaja: r}
	})
	user := uuid.New()
	sess := env.openSession(t, user, "100.00")
	sessID := uuid.MustParse(sess.ID)

	const n = 12
	tickets := make([]*dto.TicketResponse, n)
	for i := range tickets {
		tickets[i] = env.createTicket(t, user, "40.00")
	}
	early := env.pay(t, user, tickets[0].ID, "10.00", "CARD")
	price := dec("25.00")
	clientID := env.seedClient(true).String()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		unexpected []error
		recorded   int
		closedErr  error
	)
	keep := func(err error, allowed ...error) {
		if err == nil {
			return
		}
		for _, a := range allowed {
			if errors.Is(err, a) {
				return
			}
		}
		mu.Lock()
		unexpected = append(unexpected, err)
		mu.Unlock()
	}

	ctx := context.Background()
	start := make(chan struct{})
	for i := 1; i < n; i++ {
		method := "CASH"
		if i%2 == 0 {
			method = "WALLET_A"
		}
		ticketID := uuid.MustParse(tickets[i].ID)
		wg.Add(3)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.payments.Record(ctx, user, ticketID, dto.RecordPaymentRequest{Amount: dec("15.00"), Method: method})
			if err == nil {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
			keep(err, apierror.ErrNoOpenSession)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, err := env.caja.RecordMovement(ctx, cashier(user), sessID, dto.CashMovementRequest{Amount: dec("1.00"), Category: "OTHER", Description: "bolsas"})
			keep(err, apierror.ErrSessionClosed)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, err := env.tickets.Create(ctx, user, dto.CreateTicketRequest{
				ClientID:       clientID,
				DeliveryMode:   "PICKUP",
				Items:          []dto.TicketItemRequest{{Quantity: decimal.NewFromInt(1), UnitPrice: &price, Description: "Frazada"}},
				InitialPayment: &dto.InitialPaymentRequest{Amount: dec("5.00"), Method: "CARD"},
			})
			keep(err, apierror.ErrNoOpenSession)
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, err := env.payments.Void(ctx, user, uuid.MustParse(early.ID), dto.VoidPaymentRequest{Reason: "duplicado"})
		keep(err)
	}()
	go func() {
		defer wg.Done()
		<-start
		time.Sleep(2 * time.Millisecond)
		_, closedErr = env.recon.Close(ctx, cashier(user), sessID, dto.CloseSessionRequest{CountedAmount: dec("100.00")})
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	close(start)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session writers did not finish: lock order between the session key and the session row is inverted")
	}

	require.NoError(t, closedErr)
	assert.Empty(t, unexpected)

	frozen := env.session(sess.ID)
	require.False(t, frozen.IsOpen())

	env.store.mu.Lock()
	captured := decimal.Zero
	payments := 0
	for _, p := range env.store.payments {
		if p.SessionID == nil || *p.SessionID != sessID {
			continue
		}
		if p.Status == model.PaymentActive || p.PostCloseAdjustment {
			captured = captured.Add(p.Amount)
		}
		if p.Origin == model.OriginTicketPayment {
			payments++
		}
	}
	expenses := decimal.Zero
	for _, m := range env.store.movements {
		if m.SessionID == sessID {
			expenses = expenses.Add(m.Amount)
		}
	}
	env.store.mu.Unlock()

	assertDec(t, captured.String(), frozen.SalesTotal())
	assertDec(t, expenses.String(), frozen.ExpenseTotal)
	assert.Equal(t, recorded+1, payments)
	require.NotNil(t, frozen.Variance)
	assertDec(t, dec("100.00").Sub(frozen.TheoreticalCash()).String(), *frozen.Variance)
}
