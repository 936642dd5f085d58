package handler

import (
	"net/http"

	"washly/internal/dto"
	"washly/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentsHandler struct{ svc service.PaymentService }

func NewPaymentsHandler(svc service.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{svc: svc}
}

// Record godoc
// @Summary Registra un pago contra un ticket
// @Description Requiere una sesion de caja abierta del usuario. Un Idempotency-Key repetido devuelve el pago original.
// @Tags pagos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del ticket"
// @Param Idempotency-Key header string false "Clave para reintentos seguros"
// @Param body body dto.RecordPaymentRequest true "Pago"
// @Success 201 {object} dto.PaymentResponse
// @Success 200 {object} dto.PaymentResponse "Reintento con la misma clave"
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/tickets/{id}/payments [post]
func (h *PaymentsHandler) Record(c *gin.Context) {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}
	req.IdempotencyKey = key

	resp, err := h.svc.Record(c.Request.Context(), actorID(c), ticketID, req)
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

// ListByTicket godoc
// @Summary Lista los pagos de un ticket (incluye anulados)
// @Tags pagos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del ticket"
// @Success 200 {array} dto.PaymentResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tickets/{id}/payments [get]
func (h *PaymentsHandler) ListByTicket(c *gin.Context) {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListByTicket(c.Request.Context(), ticketID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Void godoc
// @Summary Anula un pago
// @Description Si la sesion del pago ya cerro se registra un ajuste post-cierre.
// @Tags pagos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del pago"
// @Param body body dto.VoidPaymentRequest false "Motivo"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/payments/{id}/void [post]
func (h *PaymentsHandler) Void(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.VoidPaymentRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Void(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
