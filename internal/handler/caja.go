package handler

import (
	"net/http"
	"strconv"

	"washly/internal/dto"
	"washly/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct {
	svc   service.CajaService
	recon service.ReconciliationService
}

func NewCajaHandler(svc service.CajaService, recon service.ReconciliationService) *CajaHandler {
	return &CajaHandler{svc: svc, recon: recon}
}

// Open godoc
// @Summary Abre una sesion de caja para el usuario autenticado
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Monto inicial"
// @Success 201 {object} dto.CashSessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash-sessions/open [post]
func (h *CajaHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Current godoc
// @Summary Sesion de caja abierta del usuario autenticado
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.CashSessionResponse
// @Success 204 "Sin sesion abierta"
// @Router /v1/cash-sessions/current [get]
func (h *CajaHandler) Current(c *gin.Context) {
	resp, err := h.svc.GetOpen(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordMovement godoc
// @Summary Registra un egreso manual en la sesion
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Param body body dto.CashMovementRequest true "Egreso"
// @Success 201 {object} dto.CashMovementResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash-sessions/{id}/movements [post]
func (h *CajaHandler) RecordMovement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CashMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordMovement(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Cierra la sesion con el arqueo ciego
// @Description Calcula la diferencia contra el efectivo teorico. Una sesion cerrada no se vuelve a cerrar.
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Param body body dto.CloseSessionRequest true "Efectivo contado"
// @Success 200 {object} dto.CashSessionReport
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash-sessions/{id}/close [post]
func (h *CajaHandler) Close(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.recon.Close(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Reporte de una sesion de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.CashSessionReport
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash-sessions/{id}/report [get]
func (h *CajaHandler) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Historial de sesiones de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param page query int false "Pagina"
// @Param limit query int false "Tamano de pagina"
// @Success 200 {object} dto.CashSessionListResponse
// @Router /v1/cash-sessions [get]
func (h *CajaHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	resp, err := h.svc.History(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
