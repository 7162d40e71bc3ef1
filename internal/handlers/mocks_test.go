package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"excursion-booking/internal/models"
	"excursion-booking/internal/services"
)

// MockAuthService is a mock implementation of AuthServiceInterface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req *models.RegisterRequest, meta services.ClientMeta) (*models.AuthResponse, error) {
	args := m.Called(ctx, req, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, req *models.LoginRequest, meta services.ClientMeta) (*models.AuthResponse, error) {
	args := m.Called(ctx, req, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenPair), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) ValidateAccessToken(token string) (int64, error) {
	args := m.Called(token)
	return args.Get(0).(int64), args.Error(1)
}

// MockCartService is a mock implementation of CartServiceInterface
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) cart(args mock.Arguments) (*models.Cart, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartService) GetCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	return m.cart(m.Called(ctx, identity))
}

func (m *MockCartService) AddItem(ctx context.Context, identity models.CartIdentity, req *models.CartItemRequest) (*models.Cart, error) {
	return m.cart(m.Called(ctx, identity, req))
}

func (m *MockCartService) UpdateItem(ctx context.Context, identity models.CartIdentity, itemID int64, req *models.CartItemRequest) (*models.Cart, error) {
	return m.cart(m.Called(ctx, identity, itemID, req))
}

func (m *MockCartService) RemoveItem(ctx context.Context, identity models.CartIdentity, itemID int64) (*models.Cart, error) {
	return m.cart(m.Called(ctx, identity, itemID))
}

func (m *MockCartService) ClearCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	return m.cart(m.Called(ctx, identity))
}

// MockOrderService is a mock implementation of OrderServiceInterface
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, identity models.CartIdentity, req *models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	args := m.Called(ctx, identity, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateOrderResult), args.Error(1)
}

func (m *MockOrderService) GetUserOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentServiceInterface
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) ProcessPaymentResult(ctx context.Context, params map[string]string) (*models.Payment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) GetPaymentStatus(ctx context.Context, token string) (*models.PaymentStatusResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentStatusResponse), args.Error(1)
}

func (m *MockPaymentService) RetryPayment(ctx context.Context, token string) (*models.CreateOrderResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateOrderResult), args.Error(1)
}
