package handler

import (
	"context"
	"net/http"

	"restopos/internal/dto"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrdersHandler struct {
	svc    service.OrderService
	tables service.TableService
}

func NewOrdersHandler(svc service.OrderService, tables service.TableService) *OrdersHandler {
	return &OrdersHandler{svc: svc, tables: tables}
}

// CommitItem godoc
// @Summary Add an item to a draft or an existing order
// @Description With a draft the order is created together with its first line.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CommitItemRequest true "Item"
// @Success 200 {object} dto.OrderResponse
// @Success 201 {object} dto.OrderResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/orders/items [post]
func (h *OrdersHandler) CommitItem(c *gin.Context) {
	var req dto.CommitItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CommitItem(c.Request.Context(), actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if req.Draft != nil {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// Get godoc
// @Summary Get an order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/orders/{id} [get]
func (h *OrdersHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetOrder(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateLineQuantity godoc
// @Summary Change the quantity of an unsent line
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param lineId path string true "Line ID"
// @Param body body dto.UpdateQuantityRequest true "Quantity"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/lines/{lineId} [patch]
func (h *OrdersHandler) UpdateLineQuantity(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := uuidParam(c, "lineId")
	if !ok {
		return
	}
	var req dto.UpdateQuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateLineQuantity(c.Request.Context(), actor(c), orderID, lineID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VoidLine godoc
// @Summary Void a line
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param lineId path string true "Line ID"
// @Param body body dto.ReasonRequest true "Reason"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/lines/{lineId}/void [post]
func (h *OrdersHandler) VoidLine(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := uuidParam(c, "lineId")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.VoidLine(c.Request.Context(), actor(c), orderID, lineID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TransferLine godoc
// @Summary Move a line to another open order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Source order ID"
// @Param lineId path string true "Line ID"
// @Param body body dto.TransferLineRequest true "Target"
// @Success 200 {object} dto.TransferResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/lines/{lineId}/transfer [post]
func (h *OrdersHandler) TransferLine(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := uuidParam(c, "lineId")
	if !ok {
		return
	}
	var req dto.TransferLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.tables.TransferLine(c.Request.Context(), actor(c), orderID, lineID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ApplyDiscount godoc
// @Summary Set the order discount
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.DiscountRequest true "Discount"
// @Success 200 {object} dto.OrderResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/orders/{id}/discount [put]
func (h *OrdersHandler) ApplyDiscount(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.DiscountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApplyDiscount(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveDiscount godoc
// @Summary Remove the order discount
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Router /v1/orders/{id}/discount [delete]
func (h *OrdersHandler) RemoveDiscount(c *gin.Context) {
	h.simple(c, h.svc.RemoveDiscount)
}

// Hold godoc
// @Summary Put an order on hold
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/hold [post]
func (h *OrdersHandler) Hold(c *gin.Context) {
	h.simple(c, h.svc.Hold)
}

// Resume godoc
// @Summary Resume a held order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/resume [post]
func (h *OrdersHandler) Resume(c *gin.Context) {
	h.simple(c, h.svc.Resume)
}

// Reopen godoc
// @Summary Reopen a paid order
// @Description Previous payments are reversed, not deleted. Orders with refunds cannot be reopened.
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/reopen [post]
func (h *OrdersHandler) Reopen(c *gin.Context) {
	h.simple(c, h.svc.Reopen)
}

// Cancel godoc
// @Summary Cancel an unpaid order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.ReasonRequest true "Reason"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/cancel [post]
func (h *OrdersHandler) Cancel(c *gin.Context) {
	h.withReason(c, h.svc.Cancel)
}

// Void godoc
// @Summary Void an unpaid order that reached the kitchen
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.ReasonRequest true "Reason"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/void [post]
func (h *OrdersHandler) Void(c *gin.Context) {
	h.withReason(c, h.svc.Void)
}

// Pay godoc
// @Summary Settle an order
// @Description Retrying with the same idempotency_key returns the first result.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.PayRequest true "Payment splits"
// @Success 200 {object} dto.PaymentResultResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/orders/{id}/pay [post]
func (h *OrdersHandler) Pay(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.PayRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Pay(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refund godoc
// @Summary Refund part or all of a paid order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.RefundRequest true "Refund"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/orders/{id}/refund [post]
func (h *OrdersHandler) Refund(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.RefundRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refund(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SendToKitchen godoc
// @Summary Send unsent lines to the kitchen display
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.KitchenResponse
// @Failure 409 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/orders/{id}/kitchen [post]
func (h *OrdersHandler) SendToKitchen(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.SendToKitchen(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Split godoc
// @Summary Split lines into a new order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.SplitRequest true "Slices"
// @Success 201 {object} dto.SplitResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/split [post]
func (h *OrdersHandler) Split(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.SplitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.tables.Split(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Move godoc
// @Summary Move an order to another table
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.MoveRequest true "Target table"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/move [post]
func (h *OrdersHandler) Move(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.MoveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.tables.Move(c.Request.Context(), actor(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Merge godoc
// @Summary Merge order B into order A
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MergeRequest true "Orders"
// @Success 200 {object} dto.MergeResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/merge [post]
func (h *OrdersHandler) Merge(c *gin.Context) {
	var req dto.MergeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.tables.Merge(c.Request.Context(), actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartNew godoc
// @Summary Park the current order and start a fresh draft
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.StartNewOrderRequest true "Current order and new draft"
// @Success 200 {object} dto.StartNewOrderResponse
// @Router /v1/orders/new [post]
func (h *OrdersHandler) StartNew(c *gin.Context) {
	var req dto.StartNewOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.StartNewOrder(c.Request.Context(), actor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── shared shapes ────────────────────────────────────────────────────────────

type orderOp func(ctx context.Context, a service.Actor, id uuid.UUID) (*dto.OrderResponse, error)

type reasonOp func(ctx context.Context, a service.Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error)

func (h *OrdersHandler) simple(c *gin.Context, op orderOp) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := op(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrdersHandler) withReason(c *gin.Context, op reasonOp) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := op(c.Request.Context(), actor(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
