package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"washly/internal/apierror"
	"washly/internal/dto"
	"washly/internal/infra"
	"washly/internal/model"
	"washly/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TicketService interface {
	Create(ctx context.Context, actorID uuid.UUID, req dto.CreateTicketRequest) (*dto.TicketResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error)
	List(ctx context.Context, filter dto.TicketFilter) (*dto.TicketListResponse, error)
	UpdateStatus(ctx context.Context, actorID, id uuid.UUID, req dto.UpdateStatusRequest) (*dto.TicketResponse, error)
	Cancel(ctx context.Context, actorID, id uuid.UUID, req dto.CancelTicketRequest) (*dto.TicketResponse, error)
	Balance(ctx context.Context, id uuid.UUID) (*dto.TicketBalanceResponse, error)
}

type ticketService struct {
	ledger
	repo    repository.TicketRepository
	catalog CatalogService
	locker  *infra.KeyedLocker
}

func NewTicketService(
	repo repository.TicketRepository,
	payments repository.PaymentRepository,
	caja repository.CajaRepository,
	catalog CatalogService,
	locker *infra.KeyedLocker,
	allowOverpayment bool,
) TicketService {
	return &ticketService{
		ledger:  ledger{payments: payments, caja: caja, allowOverpayment: allowOverpayment},
		repo:    repo,
		catalog: catalog,
		locker:  locker,
	}
}

// ── Create ────────────────────────────────────────────────────────────────────
//   1. Validate client, items, delivery mode and the optional initial payment
//   2. Resolve catalog prices, compute subtotals and total
//   3. BEGIN TX: open session (if paying), nextval ticket, ticket+items,
//      history row, payment + session aggregates
//   4. COMMIT

func (s *ticketService) Create(ctx context.Context, actorID uuid.UUID, req dto.CreateTicketRequest) (*dto.TicketResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, apierror.Validation("client_id invalido")
	}
	mode := model.DeliveryMode(req.DeliveryMode)
	if !mode.Valid() {
		return nil, apierror.Validation("modalidad de entrega invalida: %q", req.DeliveryMode)
	}
	if len(req.Items) == 0 {
		return nil, apierror.Validation("el ticket debe tener al menos un item")
	}

	client, err := s.catalog.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, apierror.ErrNotFound) {
			return nil, apierror.Validation("cliente %s no existe", clientID)
		}
		return nil, err
	}
	if !client.Active {
		return nil, apierror.Validation("el cliente %s esta inactivo", client.Name)
	}

	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	ticket := &model.Ticket{
		ID:             uuid.New(),
		ClientID:       clientID,
		Status:         model.TicketReceived,
		DeliveryMode:   mode,
		PromisedAt:     req.PromisedAt,
		Observations:   strings.TrimSpace(req.Observations),
		CreatedBy:      actorID,
		IdempotencyKey: req.IdempotencyKey,
		Items:          items,
	}
	for i := range ticket.Items {
		ticket.Items[i].TicketID = ticket.ID
	}
	total := ticket.Total()

	var method model.PaymentMethod
	if req.InitialPayment != nil {
		method, err = validatePaymentInput(req.InitialPayment.Amount, req.InitialPayment.Method)
		if err != nil {
			return nil, err
		}
		if err := s.checkOverpayment(total, decimal.Zero, req.InitialPayment.Amount); err != nil {
			return nil, err
		}
	}

	held := &heldLocks{locker: s.locker}
	defer held.release()
	held.lock(userKey(actorID))

	if req.IdempotencyKey != nil {
		prev, err := s.repo.FindByIdempotencyKey(ctx, actorID, *req.IdempotencyKey)
		if err == nil {
			return s.replayed(ctx, prev.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("buscar clave de idempotencia: %w", err)
		}
	}

	var payment *model.Payment
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		// Session first: a missing session must fail before anything is written.
		var sess *model.CashSession
		if req.InitialPayment != nil {
			sess, err = s.openSessionTx(ctx, tx, actorID, held)
			if err != nil {
				return err
			}
		}

		number, err := s.repo.NextTicketNumber(ctx, tx)
		if err != nil {
			return fmt.Errorf("numero de ticket: %w", err)
		}
		now := time.Now()
		ticket.Number = number
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
		if err := s.repo.Create(ctx, tx, ticket); err != nil {
			return fmt.Errorf("crear ticket: %w", err)
		}
		if err := s.repo.AppendHistoryTx(ctx, tx, &model.TicketStatusChange{
			ID:        uuid.New(),
			TicketID:  ticket.ID,
			ToStatus:  model.TicketReceived,
			Comment:   "ticket creado",
			ActorID:   actorID,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("historial de ticket: %w", err)
		}

		if sess == nil {
			return nil
		}
		payment = &model.Payment{
			ID:        uuid.New(),
			TicketID:  ticket.ID,
			Amount:    req.InitialPayment.Amount,
			Method:    method,
			Origin:    model.OriginTicketCreation,
			UserID:    actorID,
			CreatedAt: now,
		}
		return s.appendTx(ctx, tx, payment, sess)
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) && req.IdempotencyKey != nil {
			if prev, err := s.repo.FindByIdempotencyKey(ctx, actorID, *req.IdempotencyKey); err == nil {
				return s.replayed(ctx, prev.ID)
			}
		}
		return nil, txErr
	}

	log.Info().
		Str("ticket_id", ticket.ID.String()).
		Int("number", ticket.Number).
		Str("total", total.StringFixed(2)).
		Bool("initial_payment", payment != nil).
		Msg("ticket creado")

	resp, err := s.Get(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		p := toPaymentResponse(payment)
		resp.InitialPayment = &p
	}
	return resp, nil
}

// replayed answers a repeated creation with the stored ticket and the payment
// recorded with it, if any.
func (s *ticketService) replayed(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error) {
	resp, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	resp.Replayed = true
	payments, err := s.payments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("listar pagos: %w", err)
	}
	for i := range payments {
		if payments[i].Origin == model.OriginTicketCreation {
			p := toPaymentResponse(&payments[i])
			resp.InitialPayment = &p
			break
		}
	}
	return resp, nil
}

// resolveItems validates the requested lines and fills missing unit prices
// from the service catalog.
func (s *ticketService) resolveItems(ctx context.Context, reqs []dto.TicketItemRequest) ([]model.TicketItem, error) {
	items := make([]model.TicketItem, 0, len(reqs))
	for i, r := range reqs {
		pos := i + 1
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			return nil, apierror.Validation("item %d: la descripcion es obligatoria", pos)
		}
		if !r.Quantity.IsPositive() {
			return nil, apierror.Validation("item %d: la cantidad debe ser mayor a 0", pos)
		}

		item := model.TicketItem{
			ID:          uuid.New(),
			Position:    pos,
			Quantity:    r.Quantity,
			Description: desc,
		}

		if r.ServiceID != nil {
			sid, err := uuid.Parse(*r.ServiceID)
			if err != nil {
				return nil, apierror.Validation("item %d: service_id invalido", pos)
			}
			svc, err := s.catalog.GetService(ctx, sid)
			if err != nil {
				if errors.Is(err, apierror.ErrNotFound) {
					return nil, apierror.Validation("item %d: servicio %s no existe", pos, sid)
				}
				return nil, err
			}
			if !svc.Active {
				return nil, apierror.Validation("item %d: el servicio %s esta inactivo", pos, svc.Name)
			}
			item.ServiceID = &sid
			item.UnitPrice = svc.UnitPrice
		}

		switch {
		case r.UnitPrice != nil:
			item.UnitPrice = *r.UnitPrice
		case r.ServiceID == nil:
			return nil, apierror.Validation("item %d: precio unitario requerido sin servicio de catalogo", pos)
		}
		if item.UnitPrice.IsNegative() {
			return nil, apierror.Validation("item %d: el precio unitario no puede ser negativo", pos)
		}
		if !hasCents(item.UnitPrice) {
			return nil, apierror.Validation("item %d: el precio unitario admite como maximo 2 decimales", pos)
		}

		item.Subtotal = model.LineSubtotal(item.Quantity, item.UnitPrice)
		items = append(items, item)
	}
	return items, nil
}

// ── UpdateStatus ──────────────────────────────────────────────────────────────
// The transition table in model.TicketStatus is consulted before any write.
// CANCELLED goes through Cancel so the comment becomes the mandatory reason.

func (s *ticketService) UpdateStatus(ctx context.Context, actorID, id uuid.UUID, req dto.UpdateStatusRequest) (*dto.TicketResponse, error) {
	target := model.TicketStatus(req.Status)
	if !target.Valid() {
		return nil, apierror.Validation("estado invalido: %q", req.Status)
	}
	if target == model.TicketCancelled {
		return s.Cancel(ctx, actorID, id, dto.CancelTicketRequest{Reason: req.Comment})
	}

	unlock := s.locker.Lock(ticketKey(id))
	defer unlock()

	var from model.TicketStatus
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		t, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "ticket no encontrado")
		}
		from = t.Status
		if !t.Status.CanTransitionTo(target) {
			return apierror.IllegalTransition("no se puede pasar el ticket %d de %s a %s", t.Number, t.Status, target)
		}

		now := time.Now()
		t.Status = target
		t.UpdatedAt = now
		if err := s.repo.UpdateStatusTx(ctx, tx, t); err != nil {
			return fmt.Errorf("actualizar estado: %w", err)
		}
		return s.repo.AppendHistoryTx(ctx, tx, &model.TicketStatusChange{
			ID:         uuid.New(),
			TicketID:   t.ID,
			FromStatus: from,
			ToStatus:   target,
			Comment:    strings.TrimSpace(req.Comment),
			ActorID:    actorID,
			CreatedAt:  now,
		})
	})
	if txErr != nil {
		if errors.Is(txErr, apierror.ErrIllegalTransition) {
			log.Warn().Str("ticket_id", id.String()).Str("from", string(from)).Str("to", string(target)).Msg("transicion rechazada")
		}
		return nil, txErr
	}

	log.Info().Str("ticket_id", id.String()).Str("from", string(from)).Str("to", string(target)).Msg("estado de ticket actualizado")
	return s.Get(ctx, id)
}

// ── Cancel ────────────────────────────────────────────────────────────────────
// Releases the outstanding balance. Collected payments stay ACTIVE; refunds
// are explicit voids.

func (s *ticketService) Cancel(ctx context.Context, actorID, id uuid.UUID, req dto.CancelTicketRequest) (*dto.TicketResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apierror.Validation("el motivo de anulacion es obligatorio")
	}

	unlock := s.locker.Lock(ticketKey(id))
	defer unlock()

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		t, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "ticket no encontrado")
		}
		if t.Status.IsTerminal() {
			return apierror.IllegalTransition("el ticket %d ya esta en estado final %s", t.Number, t.Status)
		}

		from := t.Status
		now := time.Now()
		t.Status = model.TicketCancelled
		t.CancellationReason = &reason
		t.CancelledAt = &now
		t.UpdatedAt = now
		if err := s.repo.UpdateStatusTx(ctx, tx, t); err != nil {
			return fmt.Errorf("anular ticket: %w", err)
		}
		return s.repo.AppendHistoryTx(ctx, tx, &model.TicketStatusChange{
			ID:         uuid.New(),
			TicketID:   t.ID,
			FromStatus: from,
			ToStatus:   model.TicketCancelled,
			Comment:    reason,
			ActorID:    actorID,
			CreatedAt:  now,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().Str("ticket_id", id.String()).Str("reason", reason).Msg("ticket anulado")
	return s.Get(ctx, id)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *ticketService) Get(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket no encontrado")
	}
	paid, err := s.payments.SumActiveByTicket(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("sumar pagos: %w", err)
	}
	resp := toTicketResponse(t, paid)
	return &resp, nil
}

// Balance is computed from the ledger on every call.
func (s *ticketService) Balance(ctx context.Context, id uuid.UUID) (*dto.TicketBalanceResponse, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket no encontrado")
	}
	paid, err := s.payments.SumActiveByTicket(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("sumar pagos: %w", err)
	}
	b := ticketBalance(t, paid)
	return &b, nil
}

func (s *ticketService) List(ctx context.Context, filter dto.TicketFilter) (*dto.TicketListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Status != "" && !model.TicketStatus(filter.Status).Valid() {
		return nil, apierror.Validation("estado invalido: %q", filter.Status)
	}
	if filter.ClientID != "" {
		if _, err := uuid.Parse(filter.ClientID); err != nil {
			return nil, apierror.Validation("client_id invalido")
		}
	}

	tickets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listar tickets: %w", err)
	}
	data := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		paid, err := s.payments.SumActiveByTicket(ctx, nil, tickets[i].ID)
		if err != nil {
			return nil, fmt.Errorf("sumar pagos: %w", err)
		}
		data = append(data, toTicketResponse(&tickets[i], paid))
	}
	return &dto.TicketListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// ticketBalance derives total, paid-to-date, balance and projection. A
// cancelled ticket owes nothing.
func ticketBalance(t *model.Ticket, paid decimal.Decimal) dto.TicketBalanceResponse {
	total := t.Total()
	balance := total.Sub(paid)
	if t.Status == model.TicketCancelled {
		balance = decimal.Zero
	}
	return dto.TicketBalanceResponse{
		TicketID:      t.ID.String(),
		Total:         total,
		PaidToDate:    paid,
		Balance:       balance,
		PaymentStatus: string(model.ProjectPayment(total, paid)),
	}
}

func toTicketResponse(t *model.Ticket, paid decimal.Decimal) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:                 t.ID.String(),
		Number:             t.Number,
		ClientID:           t.ClientID.String(),
		Status:             string(t.Status),
		DeliveryMode:       string(t.DeliveryMode),
		Observations:       t.Observations,
		CancellationReason: t.CancellationReason,
		Balance:            ticketBalance(t, paid),
		CreatedAt:          t.CreatedAt.Format(timeLayout),
		UpdatedAt:          t.UpdatedAt.Format(timeLayout),
	}
	for _, next := range t.Status.NextStatuses() {
		resp.NextStatuses = append(resp.NextStatuses, string(next))
	}
	if t.PromisedAt != nil {
		at := t.PromisedAt.Format(timeLayout)
		resp.PromisedAt = &at
	}

	resp.Items = make([]dto.TicketItemResponse, len(t.Items))
	for i, item := range t.Items {
		ir := dto.TicketItemResponse{
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Description: item.Description,
			Subtotal:    item.Subtotal,
		}
		if item.ServiceID != nil {
			sid := item.ServiceID.String()
			ir.ServiceID = &sid
		}
		resp.Items[i] = ir
	}

	for _, h := range t.History {
		resp.History = append(resp.History, dto.StatusChangeResponse{
			From:      string(h.FromStatus),
			To:        string(h.ToStatus),
			Comment:   h.Comment,
			ActorID:   h.ActorID.String(),
			CreatedAt: h.CreatedAt.Format(timeLayout),
		})
	}
	return resp
}
