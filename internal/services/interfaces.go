package services

import (
	"context"
	"time"

	"excursion-booking/internal/models"
)

// AuthServiceInterface defines the interface for authentication services
type AuthServiceInterface interface {
	Register(ctx context.Context, req *models.RegisterRequest, meta ClientMeta) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest, meta ClientMeta) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccessToken(token string) (int64, error)
}

// CartServiceInterface defines the interface for cart services
type CartServiceInterface interface {
	GetCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error)
	AddItem(ctx context.Context, identity models.CartIdentity, req *models.CartItemRequest) (*models.Cart, error)
	UpdateItem(ctx context.Context, identity models.CartIdentity, itemID int64, req *models.CartItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, identity models.CartIdentity, itemID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error)
}

// OrderServiceInterface defines the interface for order services
type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, identity models.CartIdentity, req *models.CreateOrderRequest) (*models.CreateOrderResult, error)
	GetUserOrders(ctx context.Context, userID int64) ([]*models.Order, error)
}

// PaymentServiceInterface defines the interface for payment result handling
type PaymentServiceInterface interface {
	ProcessPaymentResult(ctx context.Context, params map[string]string) (*models.Payment, error)
	GetPaymentStatus(ctx context.Context, token string) (*models.PaymentStatusResponse, error)
	RetryPayment(ctx context.Context, token string) (*models.CreateOrderResult, error)
}

// CartRepository is the cart store used by the cart and order services
type CartRepository interface {
	GetActive(ctx context.Context, identity models.CartIdentity) (*models.Cart, error)
	CreateActive(ctx context.Context, identity models.CartIdentity) (*models.Cart, error)
	AddItem(ctx context.Context, cartID int64, item *models.CartItem) error
	UpdateItem(ctx context.Context, cartID int64, item *models.CartItem) error
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	Clear(ctx context.Context, cartID int64) error
}

// OrderRepository is the order store
type OrderRepository interface {
	CreateWithPayment(ctx context.Context, order *models.Order, p models.NewPayment, finalize func(*models.Payment) error) (*models.Payment, error)
	UpdateNotificationStatus(ctx context.Context, orderID int64, status models.NotificationStatus) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByUser(ctx context.Context, userID int64) ([]*models.Order, error)
}

// PaymentRepository is the payment store, including settlement
type PaymentRepository interface {
	Create(ctx context.Context, p models.NewPayment) (*models.Payment, error)
	CreateConfirmed(ctx context.Context, p models.NewPayment, cartID *int64) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID int64) (*models.Payment, error)
	GetByToken(ctx context.Context, token string) (*models.Payment, error)
	Settle(ctx context.Context, req models.SettlementRequest) (*models.SettlementResult, error)
}

// UserRepository is the user store
type UserRepository interface {
	Create(ctx context.Context, u models.NewUser) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionRepository is the refresh-token session store
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, tokenHash string) (*models.Session, error)
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) error
	Deactivate(ctx context.Context, tokenHash string) error
}

// PriceLookup resolves the prices of an excursion on a booking date
type PriceLookup interface {
	GetExcursionPrices(ctx context.Context, itemID string, date time.Time) (*models.ExcursionPrices, error)
}

// Notifier delivers a new-order summary to staff
type Notifier interface {
	NotifyOrder(ctx context.Context, order *models.Order, req *models.CreateOrderRequest) error
}
