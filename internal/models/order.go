package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending       OrderStatus = "PENDING"
	OrderProcessing    OrderStatus = "PROCESSING"
	OrderPartiallyPaid OrderStatus = "PARTIALLY_PAID"
	OrderConfirmed     OrderStatus = "CONFIRMED"
)

// NotificationStatus records whether staff were told about an order
type NotificationStatus string

const (
	NotificationNotSent NotificationStatus = "NOT_SENT"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// PaymentMethod represents how an order is paid
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCard       PaymentMethod = "CARD"
	PaymentPrepayment PaymentMethod = "PREPAYMENT"
)

// ParsePaymentMethod parses a client supplied method, ignoring case
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToUpper(strings.TrimSpace(value)))
	switch method {
	case PaymentCash, PaymentCard, PaymentPrepayment:
		return method, nil
	default:
		return "", ErrUnsupportedPaymentMethodInput
	}
}

// UsesGateway reports whether the method settles through the card gateway.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentCard || m == PaymentPrepayment
}

// Order is an immutable snapshot of a purchase
type Order struct {
	ID                int64              `json:"id" db:"id"`
	OrderNumber       string             `json:"order_number" db:"order_number"`
	UserID            int64              `json:"user_id" db:"user_id"`
	CartID            *int64             `json:"cart_id,omitempty" db:"cart_id"`
	PaymentMethod     PaymentMethod      `json:"payment_method" db:"payment_method"`
	Status            OrderStatus        `json:"order_status" db:"order_status"`
	PromoCode         string             `json:"promo_code,omitempty" db:"promo_code"`
	TotalBasePrice    decimal.Decimal    `json:"total_base_price" db:"total_base_price"`
	TotalCurrentPrice decimal.Decimal    `json:"total_current_price" db:"total_current_price"`
	DiscountAmount    decimal.Decimal    `json:"discount_amount" db:"discount_amount"`
	TotalPaid         decimal.Decimal    `json:"total_paid" db:"total_paid"`
	TelegramStatus    NotificationStatus `json:"telegram_status" db:"telegram_status"`
	PaidAt            *time.Time         `json:"paid_at,omitempty" db:"paid_at"`
	Services          []*OrderService    `json:"order_services"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// OrderService is the snapshot of one booked service occurrence
type OrderService struct {
	ID                int64           `json:"id" db:"id"`
	OrderID           int64           `json:"order_id" db:"order_id"`
	ServiceID         string          `json:"service_id" db:"service_id"`
	ServiceType       ServiceType     `json:"service_type" db:"service_type"`
	ServiceTitle      string          `json:"service_title" db:"service_title"`
	Slug              string          `json:"slug" db:"slug"`
	ImageSrc          string          `json:"image_src" db:"image_src"`
	ImageLQIP         string          `json:"image_lqip" db:"image_lqip"`
	Date              time.Time       `json:"date" db:"date"`
	Time              string          `json:"time" db:"time"`
	TotalBasePrice    decimal.Decimal `json:"total_base_price" db:"total_base_price"`
	TotalCurrentPrice decimal.Decimal `json:"total_current_price" db:"total_current_price"`
	Prices            []*ServicePrice `json:"service_prices"`
}

// ServicePrice is the frozen per-category price of an order service
type ServicePrice struct {
	ID                int64           `json:"id" db:"id"`
	OrderServiceID    int64           `json:"order_service_id" db:"order_service_id"`
	PriceType         string          `json:"price_type" db:"price_type"`
	CategoryTitle     string          `json:"category_title" db:"category_title"`
	BasePrice         decimal.Decimal `json:"base_price" db:"base_price"`
	CurrentPrice      decimal.Decimal `json:"current_price" db:"current_price"`
	Quantity          int             `json:"quantity" db:"quantity"`
	TotalBasePrice    decimal.Decimal `json:"total_base_price" db:"total_base_price"`
	TotalCurrentPrice decimal.Decimal `json:"total_current_price" db:"total_current_price"`
}

// StatusAfterPayment returns the status implied by the amount paid so far.
func (o *Order) StatusAfterPayment(totalPaid decimal.Decimal) OrderStatus {
	if totalPaid.LessThan(o.TotalCurrentPrice) {
		return OrderPartiallyPaid
	}
	return OrderConfirmed
}

// IsConfirmed reports whether the order has been fully paid or confirmed for cash
func (o *Order) IsConfirmed() bool {
	return o.Status == OrderConfirmed
}

// CustomerInfo is the contact data of the purchaser
type CustomerInfo struct {
	Name      string `json:"name" validate:"required,max=255"`
	Telephone string `json:"telephone" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email,max=255"`
}

// Participant is a booked count for one price category
type Participant struct {
	Category string `json:"category" validate:"required,max=255"`
	Title    string `json:"title" validate:"max=255"`
	Count    int    `json:"count" validate:"gte=0"`
}

// BookingRequest is one service occurrence to be ordered
type BookingRequest struct {
	ID           string        `json:"id" validate:"required,max=255"`
	Type         ServiceType   `json:"type" validate:"required,oneof=EXCURSION"`
	Date         string        `json:"date" validate:"required,datetime=2006-01-02,actualdate"`
	Time         string        `json:"time" validate:"required,max=16"`
	Title        string        `json:"title" validate:"max=255"`
	Slug         string        `json:"slug" validate:"max=255"`
	ImageSrc     string        `json:"image_src"`
	ImageLQIP    string        `json:"image_lqip"`
	Participants []Participant `json:"participants" validate:"required,min=1,dive"`
}

// ParsedDate returns the booking date
func (b *BookingRequest) ParsedDate() (time.Time, error) {
	date, err := time.Parse(DateLayout, b.Date)
	if err != nil {
		return time.Time{}, invalidInput("date must be in YYYY-MM-DD format")
	}
	return date, nil
}

// CreateOrderRequest represents the data needed to create a new order
type CreateOrderRequest struct {
	User          CustomerInfo     `json:"user"`
	PromoCode     string           `json:"promo_code" validate:"max=64"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	OrderItems    []BookingRequest `json:"order_items" validate:"dive"`
}

// Validate validates order creation data
func (req *CreateOrderRequest) Validate() error {
	if _, err := ParsePaymentMethod(req.PaymentMethod); err != nil {
		return err
	}
	return validateStruct(req)
}

// BookingFromCartItem converts a cart item into a booking request with
// participants taken from its options.
func BookingFromCartItem(item *CartItem) BookingRequest {
	booking := BookingRequest{
		ID:           item.ServiceID,
		Type:         item.ServiceType,
		Date:         item.Date.Format(DateLayout),
		Time:         item.Time,
		Title:        item.Title,
		Slug:         item.Slug,
		ImageSrc:     item.ImageSrc,
		ImageLQIP:    item.ImageLQIP,
		Participants: make([]Participant, 0, len(item.Options)),
	}
	for _, option := range item.Options {
		booking.Participants = append(booking.Participants, Participant{
			Category: option.PriceType,
			Title:    option.CategoryTitle,
			Count:    option.Quantity,
		})
	}
	return booking
}

// CreateOrderResult is returned to the client after an order is placed
type CreateOrderResult struct {
	OrderID       int64         `json:"order_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
	Token         string        `json:"token,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// CategoryPrice is the price of one participant category
type CategoryPrice struct {
	CategoryID string          `json:"categoryId"`
	Price      decimal.Decimal `json:"price"`
}

// ExcursionPrices holds the base and effective prices of an excursion on a date
type ExcursionPrices struct {
	BasePrices    []CategoryPrice `json:"basePrices"`
	CurrentPrices []CategoryPrice `json:"currentPrices"`
}

// Lookup returns the base and current unit price for a category.
func (p *ExcursionPrices) Lookup(categoryID string) (decimal.Decimal, decimal.Decimal, bool) {
	base, ok := findCategoryPrice(p.BasePrices, categoryID)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	current, ok := findCategoryPrice(p.CurrentPrices, categoryID)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	return base, current, true
}

func findCategoryPrice(prices []CategoryPrice, categoryID string) (decimal.Decimal, bool) {
	for _, price := range prices {
		if price.CategoryID == categoryID {
			return price.Price, true
		}
	}
	return decimal.Zero, false
}
