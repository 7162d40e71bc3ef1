package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartStatus represents the lifecycle state of a cart
type CartStatus string

const (
	CartActive  CartStatus = "ACTIVE"
	CartOrdered CartStatus = "ORDERED"
)

// ServiceType identifies the kind of bookable service
type ServiceType string

const (
	ServiceTypeExcursion ServiceType = "EXCURSION"
)

// CartIdentity owns a cart: a registered user or an anonymous guest session.
type CartIdentity struct {
	UserID         *int64
	GuestSessionID string
}

// UserIdentity builds an identity for a registered user.
func UserIdentity(userID int64) CartIdentity {
	return CartIdentity{UserID: &userID}
}

// GuestIdentity builds an identity for an anonymous session.
func GuestIdentity(sessionID string) CartIdentity {
	return CartIdentity{GuestSessionID: sessionID}
}

// Validate ensures exactly one owner is present
func (i CartIdentity) Validate() error {
	hasUser := i.UserID != nil && *i.UserID > 0
	hasGuest := i.GuestSessionID != ""
	if hasUser == hasGuest {
		return ErrInvalidIdentity
	}
	return nil
}

// IsUser reports whether the identity belongs to a registered user.
func (i CartIdentity) IsUser() bool {
	return i.UserID != nil && *i.UserID > 0
}

// Cart represents a shopping cart
type Cart struct {
	ID                int64           `json:"id" db:"id"`
	UserID            *int64          `json:"user_id,omitempty" db:"user_id"`
	GuestSessionID    *string         `json:"guest_session_id,omitempty" db:"guest_session_id"`
	Status            CartStatus      `json:"status" db:"status"`
	TotalBasePrice    decimal.Decimal `json:"total_base_price" db:"total_base_price"`
	TotalCurrentPrice decimal.Decimal `json:"total_current_price" db:"total_current_price"`
	Items             []*CartItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// CartItem represents a booked service occurrence in the cart
type CartItem struct {
	ID                int64             `json:"id" db:"id"`
	CartID            int64             `json:"cart_id" db:"cart_id"`
	ServiceID         string            `json:"service_id" db:"service_id"`
	ServiceType       ServiceType       `json:"service_type" db:"service_type"`
	Date              time.Time         `json:"date" db:"date"`
	Time              string            `json:"time" db:"time"`
	Title             string            `json:"title" db:"title"`
	Slug              string            `json:"slug" db:"slug"`
	ImageSrc          string            `json:"image_src" db:"image_src"`
	ImageLQIP         string            `json:"image_lqip" db:"image_lqip"`
	TotalBasePrice    decimal.Decimal   `json:"total_base_price" db:"total_base_price"`
	TotalCurrentPrice decimal.Decimal   `json:"total_current_price" db:"total_current_price"`
	Options           []*CartItemOption `json:"options"`
}

// CartItemOption is a priced participant category within a cart item
type CartItemOption struct {
	ID                int64           `json:"id" db:"id"`
	CartItemID        int64           `json:"cart_item_id" db:"cart_item_id"`
	PriceType         string          `json:"price_type" db:"price_type"`
	CategoryTitle     string          `json:"category_title" db:"category_title"`
	BasePrice         decimal.Decimal `json:"base_price" db:"base_price"`
	CurrentPrice      decimal.Decimal `json:"current_price" db:"current_price"`
	Quantity          int             `json:"quantity" db:"quantity"`
	TotalBasePrice    decimal.Decimal `json:"total_base_price" db:"total_base_price"`
	TotalCurrentPrice decimal.Decimal `json:"total_current_price" db:"total_current_price"`
}

// CartItemKey is the per-cart uniqueness key of an item.
type CartItemKey struct {
	ServiceID   string
	ServiceType ServiceType
	Date        string
	Time        string
}

// Key returns the uniqueness key of the item
func (i *CartItem) Key() CartItemKey {
	return CartItemKey{
		ServiceID:   i.ServiceID,
		ServiceType: i.ServiceType,
		Date:        i.Date.Format(DateLayout),
		Time:        i.Time,
	}
}

// CalculateTotals sets the option totals from unit price times quantity.
func (o *CartItemOption) CalculateTotals() PriceTotals {
	totals := LineTotals(o.BasePrice, o.CurrentPrice, o.Quantity)
	o.TotalBasePrice = totals.Base
	o.TotalCurrentPrice = totals.Current
	return totals
}

// CalculateTotals recomputes every option and sets the item totals to their sum.
func (i *CartItem) CalculateTotals() PriceTotals {
	totals := PriceTotals{Base: decimal.Zero, Current: decimal.Zero}
	for _, option := range i.Options {
		totals = totals.Add(option.CalculateTotals())
	}
	i.TotalBasePrice = totals.Base
	i.TotalCurrentPrice = totals.Current
	return totals
}

// RecalculateTotals sets the cart totals to the sum over its items.
func (c *Cart) RecalculateTotals() PriceTotals {
	totals := PriceTotals{Base: decimal.Zero, Current: decimal.Zero}
	for _, item := range c.Items {
		totals = totals.Add(PriceTotals{Base: item.TotalBasePrice, Current: item.TotalCurrentPrice})
	}
	c.TotalBasePrice = totals.Base
	c.TotalCurrentPrice = totals.Current
	return totals
}

// FindItem returns the item with the given id
func (c *Cart) FindItem(itemID int64) *CartItem {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

// IsEmpty returns true if the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// CartItemRequest is the client payload for adding or updating a cart item
type CartItemRequest struct {
	ServiceID   string                  `json:"service_id" validate:"required,max=255"`
	ServiceType ServiceType             `json:"service_type" validate:"required,oneof=EXCURSION"`
	Date        string                  `json:"date" validate:"required,datetime=2006-01-02,actualdate"`
	Time        string                  `json:"time" validate:"required,max=16"`
	Title       string                  `json:"title" validate:"max=255"`
	Slug        string                  `json:"slug" validate:"max=255"`
	ImageSrc    string                  `json:"image_src"`
	ImageLQIP   string                  `json:"image_lqip"`
	Options     []CartItemOptionRequest `json:"options" validate:"required,min=1,dive"`
}

// CartItemOptionRequest is one participant category of a cart item request
type CartItemOptionRequest struct {
	PriceType     string          `json:"price_type" validate:"required,max=255"`
	CategoryTitle string          `json:"category_title" validate:"max=255"`
	BasePrice     decimal.Decimal `json:"base_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
}

// Validate validates the cart item request
func (r *CartItemRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}

	seen := make(map[string]bool, len(r.Options))
	for _, option := range r.Options {
		if option.BasePrice.IsNegative() || option.CurrentPrice.IsNegative() {
			return invalidInput("prices for %s cannot be negative", option.PriceType)
		}
		if !IsCentPrecise(option.BasePrice) || !IsCentPrecise(option.CurrentPrice) {
			return invalidInput("prices for %s must have at most 2 decimal places", option.PriceType)
		}
		if seen[option.PriceType] {
			return invalidInput("duplicate price type %s", option.PriceType)
		}
		seen[option.PriceType] = true
	}

	return nil
}

// ToCartItem converts a validated request into a cart item with computed totals
func (r *CartItemRequest) ToCartItem() (*CartItem, error) {
	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return nil, invalidInput("date must be in YYYY-MM-DD format")
	}

	item := &CartItem{
		ServiceID:   r.ServiceID,
		ServiceType: r.ServiceType,
		Date:        date,
		Time:        r.Time,
		Title:       r.Title,
		Slug:        r.Slug,
		ImageSrc:    r.ImageSrc,
		ImageLQIP:   r.ImageLQIP,
		Options:     make([]*CartItemOption, 0, len(r.Options)),
	}
	for _, option := range r.Options {
		item.Options = append(item.Options, &CartItemOption{
			PriceType:     option.PriceType,
			CategoryTitle: option.CategoryTitle,
			BasePrice:     option.BasePrice,
			CurrentPrice:  option.CurrentPrice,
			Quantity:      option.Quantity,
		})
	}
	item.CalculateTotals()

	return item, nil
}
