package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
)

// CartService handles cart business logic
type CartService struct {
	carts  CartRepository
	logger zerolog.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, logger zerolog.Logger) *CartService {
	return &CartService{
		carts:  carts,
		logger: logger.With().Str("component", "cart").Logger(),
	}
}

// GetOrCreateActiveCart returns the active cart of identity, creating it if
// needed. Losing a creation race to a concurrent request re-reads the winner.
func (s *CartService) GetOrCreateActiveCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.carts.GetActive(ctx, identity)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, models.ErrCartNotFound) {
		return nil, fmt.Errorf("failed to get active cart: %w", err)
	}

	cart, err = s.carts.CreateActive(ctx, identity)
	if err == nil {
		s.logger.Debug().Int64("cart_id", cart.ID).Bool("guest", !identity.IsUser()).Msg("Created active cart")
		return cart, nil
	}
	if !errors.Is(err, models.ErrActiveCartExists) {
		return nil, fmt.Errorf("failed to create active cart: %w", err)
	}

	cart, err = s.carts.GetActive(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to get active cart after concurrent creation: %w", err)
	}
	return cart, nil
}

// GetCart returns the active cart with items and options
func (s *CartService) GetCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	return s.GetOrCreateActiveCart(ctx, identity)
}

// AddItem adds a service occurrence to the active cart
func (s *CartService) AddItem(ctx context.Context, identity models.CartIdentity, req *models.CartItemRequest) (*models.Cart, error) {
	item, err := cartItemFromRequest(req)
	if err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreateActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.AddItem(ctx, cart.ID, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return s.reload(ctx, identity)
}

// UpdateItem replaces an item's key fields and options
func (s *CartService) UpdateItem(ctx context.Context, identity models.CartIdentity, itemID int64, req *models.CartItemRequest) (*models.Cart, error) {
	item, err := cartItemFromRequest(req)
	if err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreateActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart.FindItem(itemID) == nil {
		return nil, models.ErrCartItemNotFound
	}

	item.ID = itemID
	if err := s.carts.UpdateItem(ctx, cart.ID, item); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return s.reload(ctx, identity)
}

// RemoveItem deletes an item from the active cart
func (s *CartService) RemoveItem(ctx context.Context, identity models.CartIdentity, itemID int64) (*models.Cart, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.RemoveItem(ctx, cart.ID, itemID); err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}

	return s.reload(ctx, identity)
}

// ClearCart deletes every item and zeroes the totals
func (s *CartService) ClearCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	return s.reload(ctx, identity)
}

func (s *CartService) reload(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	cart, err := s.carts.GetActive(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to reload cart: %w", err)
	}
	return cart, nil
}

func cartItemFromRequest(req *models.CartItemRequest) (*models.CartItem, error) {
	if req == nil {
		return nil, &models.Error{Kind: models.ErrInvalidInput, Message: "cart item is required"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req.ToCartItem()
}
