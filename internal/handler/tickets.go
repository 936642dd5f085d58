package handler

import (
	"net/http"

	"washly/internal/apierror"
	"washly/internal/dto"
	"washly/internal/service"

	"github.com/gin-gonic/gin"
)

type TicketsHandler struct{ svc service.TicketService }

func NewTicketsHandler(svc service.TicketService) *TicketsHandler {
	return &TicketsHandler{svc: svc}
}

// Create godoc
// @Summary Crea un ticket (opcionalmente con pago inicial)
// @Description El ticket y el pago inicial se registran en una sola transaccion.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Clave para reintentos seguros"
// @Param body body dto.CreateTicketRequest true "Ticket"
// @Success 201 {object} dto.TicketResponse
// @Success 200 {object} dto.TicketResponse "Reintento con la misma clave"
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/tickets [post]
func (h *TicketsHandler) Create(c *gin.Context) {
	var req dto.CreateTicketRequest
	if !bindAndValidate(c, &req) {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}
	req.IdempotencyKey = key

	resp, err := h.svc.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// List godoc
// @Summary Lista tickets
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param status query string false "Estado"
// @Param client_id query string false "Cliente"
// @Param page query int false "Pagina"
// @Param limit query int false "Tamano de pagina"
// @Success 200 {object} dto.TicketListResponse
// @Router /v1/tickets [get]
func (h *TicketsHandler) List(c *gin.Context) {
	var filter dto.TicketFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "Parametros invalidos: "+err.Error()))
		return
	}
	if !runValidation(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Obtiene un ticket con su saldo e historial
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del ticket"
// @Success 200 {object} dto.TicketResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tickets/{id} [get]
func (h *TicketsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateStatus godoc
// @Summary Cambia el estado de un ticket
// @Description Solo se permiten las transiciones hacia adelante; CANCELLED exige comentario.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del ticket"
// @Param body body dto.UpdateStatusRequest true "Nuevo estado"
// @Success 200 {object} dto.TicketResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/tickets/{id}/status [patch]
func (h *TicketsHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateStatus(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary Anula un ticket
// @Description Los pagos cobrados no se reembolsan automaticamente.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del ticket"
// @Param body body dto.CancelTicketRequest true "Motivo"
// @Success 200 {object} dto.TicketResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/tickets/{id}/cancel [post]
func (h *TicketsHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelTicketRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Balance godoc
// @Summary Saldo del ticket calculado desde los pagos
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del ticket"
// @Success 200 {object} dto.TicketBalanceResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tickets/{id}/balance [get]
func (h *TicketsHandler) Balance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Balance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
