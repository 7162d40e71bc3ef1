package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
)

// PaymentService reconciles gateway callbacks with payments and orders
type PaymentService struct {
	payments   PaymentRepository
	orders     OrderRepository
	users      UserRepository
	strategies *PaymentStrategyFactory
	logger     zerolog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	payments PaymentRepository,
	orders OrderRepository,
	users UserRepository,
	strategies *PaymentStrategyFactory,
	logger zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments:   payments,
		orders:     orders,
		users:      users,
		strategies: strategies,
		logger:     logger.With().Str("component", "payment").Logger(),
	}
}

// ProcessPaymentResult verifies a gateway callback and settles the payment.
// The signature is checked before the payment is looked up, and nothing is
// written unless it verifies. Repeated callbacks for a settled payment return
// it unchanged.
func (s *PaymentService) ProcessPaymentResult(ctx context.Context, params map[string]string) (*models.Payment, error) {
	transactionID, err := ParseOrderNumber(params)
	if err != nil {
		return nil, err
	}

	if err := s.strategies.VerifyCallback(params); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %d: %w", transactionID, err)
	}

	strategy, err := s.strategies.ResultStrategy(payment.Method)
	if err != nil {
		return nil, err
	}

	result, err := strategy.ProcessPaymentResult(params)
	if err != nil {
		return nil, err
	}

	settlement, err := s.payments.Settle(ctx, models.SettlementRequest{
		TransactionID: payment.TransactionID,
		Success:       result.Success,
		PRCode:        result.PRCode,
		SRCode:        result.SRCode,
		ResultText:    result.ResultText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle payment %d: %w", transactionID, err)
	}

	event := s.logger.Info().
		Int64("transaction_id", transactionID).
		Int64("order_id", settlement.Payment.OrderID).
		Bool("success", result.Success)
	switch {
	case settlement.AlreadySettled:
		event.Msg("Ignoring callback for settled payment")
	case result.Success:
		event.Str("order_status", string(settlement.OrderStatus)).
			Str("total_paid", settlement.TotalPaid.StringFixed(2)).
			Msg("Payment settled")
	default:
		event.Str("prcode", result.PRCode).Str("srcode", result.SRCode).Msg("Payment failed")
	}

	return settlement.Payment, nil
}

// GetPaymentStatus returns the client facing status of a payment attempt
func (s *PaymentService) GetPaymentStatus(ctx context.Context, token string) (*models.PaymentStatusResponse, error) {
	payment, err := s.payments.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	response := &models.PaymentStatusResponse{
		OrderID:       payment.OrderID,
		Status:        payment.Status,
		PaymentMethod: payment.Method,
	}
	if payment.ResultText != nil {
		response.ResultText = *payment.ResultText
	}

	switch {
	case payment.IsPaid():
		response.Message = ResultMessage(PRCodeOK, PRCodeOK)
	case payment.Method == models.PaymentCash:
		response.Message = "Order confirmed, payment is collected on site"
	default:
		response.Message = ResultMessage(deref(payment.PRCode), deref(payment.SRCode))
	}

	return response, nil
}

// RetryPayment opens a fresh gateway attempt for an unpaid payment. The
// gateway rejects reused order numbers, so the new attempt gets a new
// transaction id.
func (s *PaymentService) RetryPayment(ctx context.Context, token string) (*models.CreateOrderResult, error) {
	payment, err := s.payments.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment.IsPaid() || !payment.Method.UsesGateway() {
		return nil, models.ErrPaymentNotRetryable
	}

	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.IsConfirmed() {
		return nil, models.ErrPaymentNotRetryable
	}

	user, err := s.users.GetByID(ctx, payment.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	strategy, err := s.strategies.InitiateStrategy(payment.Method)
	if err != nil {
		return nil, err
	}

	initiation, err := strategy.InitiatePayment(ctx, PaymentData{
		OrderID:    order.ID,
		UserID:     payment.UserID,
		CartID:     order.CartID,
		OrderTotal: order.TotalCurrentPrice,
		Email:      user.Email,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("order_id", order.ID).
		Int64("previous_transaction_id", payment.TransactionID).
		Int64("transaction_id", initiation.Payment.TransactionID).
		Msg("Payment retry initiated")

	return &models.CreateOrderResult{
		OrderID:       order.ID,
		PaymentMethod: payment.Method,
		RedirectURL:   initiation.RedirectURL,
		Token:         initiation.Token,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
