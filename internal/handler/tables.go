package handler

import (
	"net/http"

	"restopos/internal/dto"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type TablesHandler struct{ svc service.TableService }

func NewTablesHandler(svc service.TableService) *TablesHandler { return &TablesHandler{svc: svc} }

// Click godoc
// @Summary Resolve a click on a table
// @Description Holds or discards the current order, then lists the orders on the table or returns a draft bound to it.
// @Tags tables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tableId path string true "Table ID"
// @Param body body dto.TableClickRequest false "Current order"
// @Success 200 {object} dto.TableClickResponse
// @Router /v1/tables/{tableId}/click [post]
func (h *TablesHandler) Click(c *gin.Context) {
	tableID, ok := uuidParam(c, "tableId")
	if !ok {
		return
	}
	var req dto.TableClickRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := h.svc.ResolveTableClick(c.Request.Context(), actor(c), tableID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Checkout godoc
// @Summary Pay several orders of a table at once
// @Tags tables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tableId path string true "Table ID"
// @Param body body dto.CheckoutRequest true "Orders and payment splits"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/tables/{tableId}/checkout [post]
func (h *TablesHandler) Checkout(c *gin.Context) {
	tableID, ok := uuidParam(c, "tableId")
	if !ok {
		return
	}
	var req dto.CheckoutRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Checkout(c.Request.Context(), actor(c), tableID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status godoc
// @Summary Derived status of tables
// @Tags tables
// @Produce json
// @Security BearerAuth
// @Param table_id query []string true "Table IDs" collectionFormat(multi)
// @Success 200 {object} dto.TableStatusResponse
// @Router /v1/tables/status [get]
func (h *TablesHandler) Status(c *gin.Context) {
	var filter dto.TableStatusFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.TableStatus(c.Request.Context(), actor(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
