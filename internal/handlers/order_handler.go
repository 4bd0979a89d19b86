package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tablebite/ordercore/internal/models"
	"github.com/tablebite/ordercore/internal/modifier"
	"github.com/tablebite/ordercore/internal/repository"
	"github.com/tablebite/ordercore/internal/service"
)

// OrderHandler handles order-session HTTP requests.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// AddItemsRequest is the body of an atomic item batch.
type AddItemsRequest struct {
	Items []models.OrderItemRequest `json:"items"`
}

// FinalizeRequest optionally carries a coupon code.
type FinalizeRequest struct {
	CouponCode string `json:"couponCode,omitempty"`
}

// CreateOrder handles POST /api/order
// Opens a new empty order session.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.OpenOrder(r.Context())
	if err != nil {
		h.logger.Error("failed to open order", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	h.logger.Info("order opened", "order_id", order.ID)
	WriteJSON(w, http.StatusCreated, order, h.logger)
}

// GetOrder handles GET /api/order/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			WriteError(w, http.StatusNotFound, "Order not found", h.logger)
			return
		}

		h.logger.Error("failed to load order", "order_id", orderID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, order, h.logger)
}

// AddItems handles POST /api/order/{orderId}/items
// Applies a batch of item requests atomically: either every item is valid
// and the order is updated once, or nothing changes.
// - 200: updated order
// - 404: order or product not found
// - 409: order no longer accepts items
// - 422: a request in the batch is invalid (all its violations listed)
// - 503: order busy, retry with backoff
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req AddItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode batch request", "order_id", orderID, "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
		return
	}

	order, err := h.orders.ApplyBatch(r.Context(), orderID, req.Items)
	if err != nil {
		h.writeOrderError(w, orderID, err)
		return
	}

	h.logger.Info("batch applied", "order_id", orderID, "items_added", len(req.Items), "total", order.Total)
	WriteJSON(w, http.StatusOK, order, h.logger)
}

// Finalize handles POST /api/order/{orderId}/finalize
// Moves the order out of open; no further batches are accepted.
func (h *OrderHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req FinalizeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body", h.logger)
			return
		}
	}

	order, err := h.orders.Finalize(r.Context(), orderID, req.CouponCode)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCoupon) {
			WriteError(w, http.StatusBadRequest, "Coupon code is not valid", h.logger)
			return
		}
		h.writeOrderError(w, orderID, err)
		return
	}

	h.logger.Info("order finalized", "order_id", orderID, "coupon", order.CouponCode != "")
	WriteJSON(w, http.StatusOK, order, h.logger)
}

// CloseOrder handles POST /api/order/{orderId}/close
func (h *OrderHandler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.orders.Close(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			WriteError(w, http.StatusConflict, "Order cannot be closed from its current status", h.logger)
			return
		}
		h.writeOrderError(w, orderID, err)
		return
	}

	h.logger.Info("order closed", "order_id", orderID, "total", order.Total)
	WriteJSON(w, http.StatusOK, order, h.logger)
}

// writeOrderError maps order-service failures onto HTTP statuses.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, orderID string, err error) {
	var validationErr *modifier.ValidationError

	switch {
	case errors.As(err, &validationErr):
		WriteViolations(w, validationErr.Violations, h.logger)
	case errors.Is(err, repository.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "Order not found", h.logger)
	case errors.Is(err, repository.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "Product not found", h.logger)
	case errors.Is(err, service.ErrOrderNotOpen):
		WriteError(w, http.StatusConflict, "Order no longer accepts changes", h.logger)
	case errors.Is(err, service.ErrBusy):
		WriteError(w, http.StatusServiceUnavailable, "Order is busy, retry later", h.logger)
	case errors.Is(err, service.ErrEmptyBatch):
		WriteError(w, http.StatusBadRequest, "Batch must contain at least one item", h.logger)
	case errors.Is(err, modifier.ErrCatalogInconsistency):
		h.logger.Error("catalog inconsistency", "order_id", orderID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
	default:
		h.logger.Error("order operation failed", "order_id", orderID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", h.logger)
	}
}
