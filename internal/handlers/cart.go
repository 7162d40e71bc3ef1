package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"excursion-booking/internal/middleware"
	"excursion-booking/internal/models"
	"excursion-booking/internal/services"
)

// CartHandler handles cart requests for users and guest sessions
type CartHandler struct {
	cartService services.CartServiceInterface
	logger      zerolog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService services.CartServiceInterface, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger.With().Str("component", "cart_handler").Logger(),
	}
}

// GetCart returns the active cart, creating it if needed
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.GetCart(r.Context(), middleware.CartIdentity(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cart)
}

// AddItem adds a booking to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req models.CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	cart, err := h.cartService.AddItem(r.Context(), middleware.CartIdentity(r.Context()), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, cart)
}

// UpdateItem replaces a cart item's booking and options
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := int64Param(r, "itemID")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req models.CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	cart, err := h.cartService.UpdateItem(r.Context(), middleware.CartIdentity(r.Context()), itemID, &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cart)
}

// RemoveItem removes one item from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := int64Param(r, "itemID")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if _, err := h.cartService.RemoveItem(r.Context(), middleware.CartIdentity(r.Context()), itemID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart removes every item from the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.cartService.ClearCart(r.Context(), middleware.CartIdentity(r.Context())); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
