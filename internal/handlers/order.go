package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"excursion-booking/internal/middleware"
	"excursion-booking/internal/models"
	"excursion-booking/internal/services"
)

// OrderHandler handles order creation and history
type OrderHandler struct {
	orderService services.OrderServiceInterface
	logger       zerolog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService services.OrderServiceInterface, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger.With().Str("component", "order_handler").Logger(),
	}
}

// CreateOrder turns the request items, or the active cart, into an order
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.orderService.CreateOrder(r.Context(), middleware.CartIdentity(r.Context()), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}

// GetUserOrders lists the authenticated user's orders
func (h *OrderHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, models.ErrInvalidToken)
		return
	}

	orders, err := h.orderService.GetUserOrders(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	middleware.WriteJSON(w, http.StatusOK, orders)
}
