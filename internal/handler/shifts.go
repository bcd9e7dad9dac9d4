package handler

import (
	"net/http"

	"restopos/internal/dto"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type ShiftsHandler struct{ svc service.ShiftService }

func NewShiftsHandler(svc service.ShiftService) *ShiftsHandler { return &ShiftsHandler{svc: svc} }

// Open godoc
// @Summary Open a shift for the caller
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenShiftRequest true "Opening cash"
// @Success 201 {object} dto.OpenShiftResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/shifts [post]
func (h *ShiftsHandler) Open(c *gin.Context) {
	var req dto.OpenShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Active godoc
// @Summary The caller's open shift
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ShiftResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/active [get]
func (h *ShiftsHandler) Active(c *gin.Context) {
	resp, err := h.svc.Active(c.Request.Context(), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Closed shifts of the caller
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.ShiftListResponse
// @Router /v1/shifts/history [get]
func (h *ShiftsHandler) History(c *gin.Context) {
	var filter dto.ShiftHistoryFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.History(c.Request.Context(), actor(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Z-report of a shift, computed fresh
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Success 200 {object} dto.ZReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/{id}/report [get]
func (h *ShiftsHandler) Report(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordMovement godoc
// @Summary Record cash put into or taken out of the drawer
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.CashMovementRequest true "Movement"
// @Success 201 {object} dto.CashMovementResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/shifts/{id}/movements [post]
func (h *ShiftsHandler) RecordMovement(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CashMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordMovement(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Close a shift with a blind cash count
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.CloseShiftRequest true "Counted cash"
// @Success 200 {object} dto.ZReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/shifts/{id}/close [post]
func (h *ShiftsHandler) Close(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.CloseShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
