package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"washly/internal/dto"
	"washly/internal/infra"
	"washly/internal/model"
	"washly/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory store ──────────────────────────────────────────────────────────
// One mutex-guarded store backs every fake repository so concurrent tests see
// a single consistent state. Rows are stored and returned by value.

type memStore struct {
	mu sync.Mutex

	tickets     map[uuid.UUID]model.Ticket
	history     []model.TicketStatusChange
	payments    map[uuid.UUID]model.Payment
	paymentSeq  []uuid.UUID
	sessions    map[uuid.UUID]model.CashSession
	movements   []model.CashMovement
	adjustments []model.PostCloseAdjustment
	clients     map[uuid.UUID]model.Client
	services    map[uuid.UUID]model.CatalogService
	ticketSeq   int
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  make(map[uuid.UUID]model.Ticket),
		payments: make(map[uuid.UUID]model.Payment),
		sessions: make(map[uuid.UUID]model.CashSession),
		clients:  make(map[uuid.UUID]model.Client),
		services: make(map[uuid.UUID]model.CatalogService),
	}
}

func copyTicket(t model.Ticket) model.Ticket {
	t.Items = append([]model.TicketItem(nil), t.Items...)
	t.History = nil
	return t
}

// ── fakeTickets ──────────────────────────────────────────────────────────────

type fakeTickets struct{ s *memStore }

func (r fakeTickets) DB() *gorm.DB { return nil }

func (r fakeTickets) Create(_ context.Context, _ *gorm.DB, t *model.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.IdempotencyKey != nil {
		for _, existing := range r.s.tickets {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *t.IdempotencyKey && existing.CreatedBy == t.CreatedBy {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.s.tickets[t.ID] = copyTicket(*t)
	return nil
}

func (r fakeTickets) find(id uuid.UUID, withHistory bool) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := copyTicket(t)
	if withHistory {
		for _, h := range r.s.history {
			if h.TicketID == id {
				out.History = append(out.History, h)
			}
		}
	}
	return &out, nil
}

func (r fakeTickets) FindByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	return r.find(id, true)
}

func (r fakeTickets) FindByIDForUpdate(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Ticket, error) {
	return r.find(id, false)
}

func (r fakeTickets) FindByIdempotencyKey(_ context.Context, userID uuid.UUID, key string) (*model.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.CreatedBy == userID && t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			out := copyTicket(t)
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeTickets) UpdateStatusTx(_ context.Context, _ *gorm.DB, t *model.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[t.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = t.Status
	stored.CancellationReason = t.CancellationReason
	stored.CancelledAt = t.CancelledAt
	stored.UpdatedAt = t.UpdatedAt
	r.s.tickets[t.ID] = stored
	return nil
}

func (r fakeTickets) AppendHistoryTx(_ context.Context, _ *gorm.DB, h *model.TicketStatusChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r fakeTickets) NextTicketNumber(_ context.Context, _ *gorm.DB) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ticketSeq++
	return r.s.ticketSeq, nil
}

func (r fakeTickets) List(_ context.Context, filter dto.TicketFilter) ([]model.Ticket, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Ticket
	for _, t := range r.s.tickets {
		if filter.Status != "" && string(t.Status) != filter.Status {
			continue
		}
		if filter.ClientID != "" && t.ClientID.String() != filter.ClientID {
			continue
		}
		all = append(all, copyTicket(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number > all[j].Number })
	total := int64(len(all))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// ── fakePayments ─────────────────────────────────────────────────────────────

type fakePayments struct{ s *memStore }

func (r fakePayments) CreateTx(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.IdempotencyKey != nil {
		for _, existing := range r.s.payments {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *p.IdempotencyKey && existing.UserID == p.UserID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.s.payments[p.ID] = *p
	r.s.paymentSeq = append(r.s.paymentSeq, p.ID)
	return nil
}

func (r fakePayments) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r fakePayments) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r fakePayments) FindByIdempotencyKey(_ context.Context, userID uuid.UUID, key string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.UserID == userID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakePayments) ListByTicket(_ context.Context, ticketID uuid.UUID) ([]model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Payment
	for _, id := range r.s.paymentSeq {
		if p := r.s.payments[id]; p.TicketID == ticketID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r fakePayments) SumActiveByTicket(_ context.Context, _ *gorm.DB, ticketID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, p := range r.s.payments {
		if p.TicketID == ticketID && p.Status == model.PaymentActive {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r fakePayments) SumActiveByMethod(_ context.Context, sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sums := make(map[model.PaymentMethod]decimal.Decimal, len(model.PaymentMethods))
	for _, m := range model.PaymentMethods {
		sums[m] = decimal.Zero
	}
	for _, p := range r.s.payments {
		if p.SessionID != nil && *p.SessionID == sessionID && p.Status == model.PaymentActive {
			sums[p.Method] = sums[p.Method].Add(p.Amount)
		}
	}
	return sums, nil
}

func (r fakePayments) MarkVoidTx(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.payments[p.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = p.Status
	stored.VoidedAt = p.VoidedAt
	stored.VoidedBy = p.VoidedBy
	stored.VoidReason = p.VoidReason
	stored.PostCloseAdjustment = p.PostCloseAdjustment
	r.s.payments[p.ID] = stored
	return nil
}

func (r fakePayments) CreateAdjustmentTx(_ context.Context, _ *gorm.DB, a *model.PostCloseAdjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.adjustments = append(r.s.adjustments, *a)
	return nil
}

func (r fakePayments) ListAdjustments(_ context.Context, sessionID uuid.UUID) ([]model.PostCloseAdjustment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PostCloseAdjustment
	for _, a := range r.s.adjustments {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ── fakeCaja ─────────────────────────────────────────────────────────────────

type fakeCaja struct{ s *memStore }

func (r fakeCaja) DB() *gorm.DB { return nil }

func (r fakeCaja) CreateSessionTx(_ context.Context, _ *gorm.DB, sess *model.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.UserID == sess.UserID && existing.IsOpen() {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r fakeCaja) FindOpenByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) (*model.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.UserID == userID && sess.IsOpen() {
			return &sess, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeCaja) FindSessionByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sess, nil
}

func (r fakeCaja) FindSessionForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	return r.FindSessionByID(ctx, id)
}

func (r fakeCaja) UpdateSessionTx(_ context.Context, _ *gorm.DB, sess *model.CashSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[sess.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r fakeCaja) CreateMovementTx(_ context.Context, _ *gorm.DB, m *model.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r fakeCaja) ListMovements(_ context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CashMovement
	for _, m := range r.s.movements {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r fakeCaja) ListSessions(_ context.Context, page, limit int) ([]model.CashSession, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]model.CashSession, 0, len(r.s.sessions))
	for _, sess := range r.s.sessions {
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r fakeCaja) ListUnreported(_ context.Context, closedBefore time.Time, limit int) ([]model.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CashSession
	for _, sess := range r.s.sessions {
		if sess.Status == model.SessionClosed && sess.ReportSentAt == nil && sess.ClosedAt != nil && sess.ClosedAt.Before(closedBefore) {
			out = append(out, sess)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r fakeCaja) ClaimReportSend(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.Status != model.SessionClosed || sess.ReportSentAt != nil {
		return false, nil
	}
	sess.ReportSentAt = &at
	r.s.sessions[id] = sess
	return true, nil
}

func (r fakeCaja) ReleaseReportClaim(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if ok && sess.ReportSentAt != nil && sess.ReportSentAt.Equal(at) {
		sess.ReportSentAt = nil
		r.s.sessions[id] = sess
	}
	return nil
}

// ── fakeCatalogRepo ──────────────────────────────────────────────────────────

type fakeCatalogRepo struct{ s *memStore }

func (r fakeCatalogRepo) FindClientByID(_ context.Context, id uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r fakeCatalogRepo) FindServiceByID(_ context.Context, id uuid.UUID) (*model.CatalogService, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &svc, nil
}

// ── fakeDispatcher ───────────────────────────────────────────────────────────

type fakeDispatcher struct {
	mu   sync.Mutex
	ids  []uuid.UUID
	fail error
}

func (d *fakeDispatcher) EnqueueSessionReport(_ context.Context, sessionID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.ids = append(d.ids, sessionID)
	return nil
}

// ── Test environment ─────────────────────────────────────────────────────────

type testEnv struct {
	store      *memStore
	tickets    TicketService
	payments   PaymentService
	caja       CajaService
	recon      ReconciliationService
	dispatcher *fakeDispatcher
}

func newTestEnv(t *testing.T, allowOverpayment bool) *testEnv {
	t.Helper()
	return newTestEnvWithCaja(t, allowOverpayment, func(r fakeCaja) repository.CajaRepository { return r })
}

// newTestEnvWithCaja lets a test decorate the cash session repository.
func newTestEnvWithCaja(t *testing.T, allowOverpayment bool, wrap func(fakeCaja) repository.CajaRepository) *testEnv {
	t.Helper()
	store := newMemStore()
	locker := infra.NewKeyedLocker()
	ticketRepo := fakeTickets{store}
	paymentRepo := fakePayments{store}
	cajaRepo := wrap(fakeCaja{store})
	catalog := NewCatalogService(fakeCatalogRepo{store}, nil, time.Minute)
	dispatcher := &fakeDispatcher{}

	return &testEnv{
		store:      store,
		tickets:    NewTicketService(ticketRepo, paymentRepo, cajaRepo, catalog, locker, allowOverpayment),
		payments:   NewPaymentService(ticketRepo, paymentRepo, cajaRepo, locker, allowOverpayment),
		caja:       NewCajaService(cajaRepo, paymentRepo, locker),
		recon:      NewReconciliationService(cajaRepo, paymentRepo, locker, dispatcher),
		dispatcher: dispatcher,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cashier(id uuid.UUID) Actor { return Actor{ID: id, Role: model.RoleCajero} }

func supervisorActor() Actor { return Actor{ID: uuid.New(), Role: model.RoleSupervisor} }

func (e *testEnv) seedClient(active bool) uuid.UUID {
	id := uuid.New()
	e.store.mu.Lock()
	e.store.clients[id] = model.Client{ID: id, Name: "Cliente " + id.String()[:4], Active: active}
	e.store.mu.Unlock()
	return id
}

func (e *testEnv) seedService(name, price string, active bool) uuid.UUID {
	id := uuid.New()
	e.store.mu.Lock()
	e.store.services[id] = model.CatalogService{ID: id, Name: name, Unit: "kg", UnitPrice: dec(price), Active: active}
	e.store.mu.Unlock()
	return id
}

func (e *testEnv) openSession(t *testing.T, userID uuid.UUID, amount string) *dto.CashSessionResponse {
	t.Helper()
	sess, err := e.caja.Open(context.Background(), userID, dto.OpenSessionRequest{OpeningAmount: dec(amount)})
	require.NoError(t, err)
	return sess
}

// createTicket creates a ticket with one priced line per amount.
func (e *testEnv) createTicket(t *testing.T, userID uuid.UUID, amounts ...string) *dto.TicketResponse {
	t.Helper()
	req := dto.CreateTicketRequest{
		ClientID:     e.seedClient(true).String(),
		DeliveryMode: "PICKUP",
	}
	for _, a := range amounts {
		price := dec(a)
		req.Items = append(req.Items, dto.TicketItemRequest{Quantity: decimal.NewFromInt(1), UnitPrice: &price, Description: "Lavado"})
	}
	ticket, err := e.tickets.Create(context.Background(), userID, req)
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) pay(t *testing.T, userID uuid.UUID, ticketID string, amount, method string) *dto.PaymentResponse {
	t.Helper()
	p, err := e.payments.Record(context.Background(), userID, uuid.MustParse(ticketID), dto.RecordPaymentRequest{Amount: dec(amount), Method: method})
	require.NoError(t, err)
	return p
}

func (e *testEnv) session(id string) model.CashSession {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.sessions[uuid.MustParse(id)]
}

func (e *testEnv) ticketCount() int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return len(e.store.tickets)
}

func (e *testEnv) paymentCount() int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return len(e.store.payments)
}
