package handler

import (
	"net/http"

	"washly/internal/service"

	"github.com/gin-gonic/gin"
)

// CatalogHandler exposes the cached read-only lookups of clients and services.
type CatalogHandler struct{ svc service.CatalogService }

func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// GetClient godoc
// @Summary Datos de un cliente
// @Tags catalogo
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del cliente"
// @Success 200 {object} dto.ClientResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/clients/{id} [get]
func (h *CatalogHandler) GetClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetService godoc
// @Summary Servicio del catalogo con su precio
// @Tags catalogo
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID del servicio"
// @Success 200 {object} dto.CatalogServiceResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/services/{id} [get]
func (h *CatalogHandler) GetService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetService(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
