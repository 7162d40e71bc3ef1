package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"excursion-booking/internal/models"
)

// PrepaymentPercent is the share of the order total charged for PREPAYMENT.
const PrepaymentPercent = 20

// PaymentData describes the order a payment attempt is opened for
type PaymentData struct {
	OrderID    int64
	UserID     int64
	CartID     *int64
	OrderTotal decimal.Decimal
	Email      string
}

// PaymentInitiation is the outcome of opening a payment attempt
type PaymentInitiation struct {
	Payment     *models.Payment
	Token       string
	RedirectURL string
}

// PaymentStrategy opens a payment attempt for one payment method.
//
// NewPayment and Initiation split InitiatePayment so the first attempt can be
// stored in the same transaction as its order. Initiation does no I/O.
type PaymentStrategy interface {
	Method() models.PaymentMethod
	NewPayment(data PaymentData) models.NewPayment
	Initiation(payment *models.Payment, data PaymentData) (*PaymentInitiation, error)
	InitiatePayment(ctx context.Context, data PaymentData) (*PaymentInitiation, error)
}

// PaymentResultStrategy interprets a gateway callback for one payment method
type PaymentResultStrategy interface {
	ProcessPaymentResult(params map[string]string) (*models.GatewayResult, error)
}

// PaymentGateway is the card gateway used by CARD and PREPAYMENT
type PaymentGateway interface {
	PaymentURL(payment GatewayPayment) (string, error)
	VerifyResponse(params map[string]string) error
	ProcessPaymentResult(params map[string]string) (*models.GatewayResult, error)
}

// CashPaymentStrategy confirms the order immediately; payment is collected on site.
type CashPaymentStrategy struct {
	payments PaymentRepository
}

// NewCashPaymentStrategy creates a new cash payment strategy
func NewCashPaymentStrategy(payments PaymentRepository) *CashPaymentStrategy {
	return &CashPaymentStrategy{payments: payments}
}

// Method returns CASH
func (s *CashPaymentStrategy) Method() models.PaymentMethod {
	return models.PaymentCash
}

// NewPayment describes an unpaid cash payment for the full total that confirms the order
func (s *CashPaymentStrategy) NewPayment(data PaymentData) models.NewPayment {
	return models.NewPayment{
		OrderID:       data.OrderID,
		UserID:        data.UserID,
		Amount:        data.OrderTotal,
		Method:        models.PaymentCash,
		Token:         uuid.NewString(),
		ConfirmsOrder: true,
	}
}

// Initiation returns the payment token; there is no redirect for cash
func (s *CashPaymentStrategy) Initiation(payment *models.Payment, _ PaymentData) (*PaymentInitiation, error) {
	return &PaymentInitiation{Payment: payment, Token: payment.Token}, nil
}

// InitiatePayment records an unpaid cash payment and confirms the order
func (s *CashPaymentStrategy) InitiatePayment(ctx context.Context, data PaymentData) (*PaymentInitiation, error) {
	payment, err := s.payments.CreateConfirmed(ctx, s.NewPayment(data), data.CartID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cash payment: %w", err)
	}
	return s.Initiation(payment, data)
}

// GatewayPaymentStrategy charges a share of the order total through the card gateway
type GatewayPaymentStrategy struct {
	method   models.PaymentMethod
	percent  int64
	payments PaymentRepository
	gateway  PaymentGateway
}

// NewCardPaymentStrategy charges the full order total
func NewCardPaymentStrategy(payments PaymentRepository, gateway PaymentGateway) *GatewayPaymentStrategy {
	return &GatewayPaymentStrategy{method: models.PaymentCard, percent: 100, payments: payments, gateway: gateway}
}

// NewPrepaymentStrategy charges PrepaymentPercent of the order total
func NewPrepaymentStrategy(payments PaymentRepository, gateway PaymentGateway) *GatewayPaymentStrategy {
	return &GatewayPaymentStrategy{method: models.PaymentPrepayment, percent: PrepaymentPercent, payments: payments, gateway: gateway}
}

// Method returns the payment method served by the strategy
func (s *GatewayPaymentStrategy) Method() models.PaymentMethod {
	return s.method
}

// Amount returns the amount charged for an order total
func (s *GatewayPaymentStrategy) Amount(total decimal.Decimal) decimal.Decimal {
	if s.percent == 100 {
		return total
	}
	return models.PercentOf(total, s.percent)
}

// NewPayment describes an unpaid gateway payment for the charged share of the total
func (s *GatewayPaymentStrategy) NewPayment(data PaymentData) models.NewPayment {
	return models.NewPayment{
		OrderID: data.OrderID,
		UserID:  data.UserID,
		Amount:  s.Amount(data.OrderTotal),
		Method:  s.method,
		Token:   uuid.NewString(),
	}
}

// InitiatePayment creates the payment row and the signed gateway redirect
func (s *GatewayPaymentStrategy) InitiatePayment(ctx context.Context, data PaymentData) (*PaymentInitiation, error) {
	payment, err := s.payments.Create(ctx, s.NewPayment(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return s.Initiation(payment, data)
}

// Initiation signs the gateway redirect for a stored payment
func (s *GatewayPaymentStrategy) Initiation(payment *models.Payment, data PaymentData) (*PaymentInitiation, error) {
	redirectURL, err := s.gateway.PaymentURL(GatewayPayment{
		TransactionID: payment.TransactionID,
		OrderID:       payment.OrderID,
		AmountMinor:   models.ToMinorUnits(payment.Amount),
		Email:         data.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build payment URL: %w", err)
	}

	return &PaymentInitiation{Payment: payment, Token: payment.Token, RedirectURL: redirectURL}, nil
}

// ProcessPaymentResult delegates to the gateway
func (s *GatewayPaymentStrategy) ProcessPaymentResult(params map[string]string) (*models.GatewayResult, error) {
	return s.gateway.ProcessPaymentResult(params)
}

// PaymentStrategyFactory selects the strategy for a payment method
type PaymentStrategyFactory struct {
	initiators map[models.PaymentMethod]PaymentStrategy
	results    map[models.PaymentMethod]PaymentResultStrategy
	gateway    PaymentGateway
	logger     zerolog.Logger
}

// NewPaymentStrategyFactory registers the given strategies. Strategies that
// also implement PaymentResultStrategy handle callbacks for their method.
func NewPaymentStrategyFactory(logger zerolog.Logger, strategies ...PaymentStrategy) *PaymentStrategyFactory {
	f := &PaymentStrategyFactory{
		initiators: make(map[models.PaymentMethod]PaymentStrategy, len(strategies)),
		results:    make(map[models.PaymentMethod]PaymentResultStrategy, len(strategies)),
		logger:     logger,
	}
	for _, strategy := range strategies {
		f.initiators[strategy.Method()] = strategy
		if result, ok := strategy.(PaymentResultStrategy); ok {
			f.results[strategy.Method()] = result
		}
		if gateway, ok := strategy.(*GatewayPaymentStrategy); ok && gateway.gateway != nil {
			f.gateway = gateway.gateway
		}
	}
	return f
}

// NewDefaultPaymentStrategyFactory wires CASH, CARD and PREPAYMENT
func NewDefaultPaymentStrategyFactory(payments PaymentRepository, gateway PaymentGateway, logger zerolog.Logger) *PaymentStrategyFactory {
	return NewPaymentStrategyFactory(logger,
		NewCashPaymentStrategy(payments),
		NewCardPaymentStrategy(payments, gateway),
		NewPrepaymentStrategy(payments, gateway),
	)
}

// InitiateStrategy returns the strategy that opens payments for method
func (f *PaymentStrategyFactory) InitiateStrategy(method models.PaymentMethod) (PaymentStrategy, error) {
	strategy, ok := f.initiators[method]
	if !ok {
		return nil, f.unsupported(method, "initiate")
	}
	return strategy, nil
}

// ResultStrategy returns the strategy that interprets callbacks for method
func (f *PaymentStrategyFactory) ResultStrategy(method models.PaymentMethod) (PaymentResultStrategy, error) {
	strategy, ok := f.results[method]
	if !ok {
		return nil, f.unsupported(method, "result")
	}
	return strategy, nil
}

// VerifyCallback checks the signature of a gateway callback
func (f *PaymentStrategyFactory) VerifyCallback(params map[string]string) error {
	if f.gateway == nil {
		return f.unsupported("GATEWAY", "verify")
	}
	return f.gateway.VerifyResponse(params)
}

func (f *PaymentStrategyFactory) unsupported(method models.PaymentMethod, kind string) error {
	f.logger.Error().Str("payment_method", string(method)).Str("strategy", kind).Msg("No payment strategy registered")
	return fmt.Errorf("%w: %q", models.ErrUnsupportedPaymentMethod, method)
}
