package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"excursion-booking/internal/models"
	"excursion-booking/internal/utils"
)

const (
	defaultPriceLookupTimeout  = 5 * time.Second
	defaultNotificationTimeout = 10 * time.Second
	maxConcurrentPriceLookups  = 4
)

// OrderService handles order-related business logic
type OrderService struct {
	users    UserRepository
	carts    CartRepository
	orders   OrderRepository
	prices   PriceLookup
	notifier Notifier
	payments *PaymentStrategyFactory
	logger   zerolog.Logger

	PriceLookupTimeout  time.Duration
	NotificationTimeout time.Duration

	background sync.WaitGroup
}

// NewOrderService creates a new order service
func NewOrderService(
	users UserRepository,
	carts CartRepository,
	orders OrderRepository,
	prices PriceLookup,
	notifier Notifier,
	payments *PaymentStrategyFactory,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		users:               users,
		carts:               carts,
		orders:              orders,
		prices:              prices,
		notifier:            notifier,
		payments:            payments,
		logger:              logger.With().Str("component", "order").Logger(),
		PriceLookupTimeout:  defaultPriceLookupTimeout,
		NotificationTimeout: defaultNotificationTimeout,
	}
}

// CreateOrder snapshots prices into a new order and opens a payment attempt
func (s *OrderService) CreateOrder(ctx context.Context, identity models.CartIdentity, req *models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	strategy, err := s.payments.InitiateStrategy(method)
	if err != nil {
		return nil, err
	}

	bookings, cartID, err := s.orderBookings(ctx, identity, req)
	if err != nil {
		return nil, err
	}

	services, err := s.priceServices(ctx, bookings)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:   uuid.NewString(),
		CartID:        cartID,
		PaymentMethod: method,
		Status:        models.OrderPending,
		PromoCode:     strings.TrimSpace(req.PromoCode),
		TotalPaid:     decimal.Zero,
		Services:      services,
	}
	totals := models.PriceTotals{Base: decimal.Zero, Current: decimal.Zero}
	for _, service := range services {
		totals = totals.Add(models.PriceTotals{Base: service.TotalBasePrice, Current: service.TotalCurrentPrice})
	}
	order.TotalBasePrice = totals.Base
	order.TotalCurrentPrice = totals.Current
	order.DiscountAmount = totals.Discount()
	if order.DiscountAmount.IsNegative() {
		return nil, models.ErrNegativeDiscount
	}

	user, err := s.resolveUser(ctx, req.User)
	if err != nil {
		return nil, err
	}
	order.UserID = user.ID

	// The order, its snapshot and the first payment attempt are stored
	// together; the gateway redirect is signed before commit.
	data := PaymentData{
		UserID:     user.ID,
		CartID:     cartID,
		OrderTotal: order.TotalCurrentPrice,
		Email:      user.Email,
	}
	var initiation *PaymentInitiation
	_, err = s.orders.CreateWithPayment(ctx, order, strategy.NewPayment(data), func(payment *models.Payment) error {
		data.OrderID = payment.OrderID
		var err error
		initiation, err = strategy.Initiation(payment, data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("payment_method", string(method)).
		Str("total", order.TotalCurrentPrice.StringFixed(2)).
		Int64("transaction_id", initiation.Payment.TransactionID).
		Msg("Order created")

	s.notifyAsync(order, req)

	result := &models.CreateOrderResult{
		OrderID:       order.ID,
		PaymentMethod: method,
		RedirectURL:   initiation.RedirectURL,
	}
	if method == models.PaymentCash {
		result.Token = initiation.Token
		result.Message = "Order confirmed, payment is collected on site"
	}

	return result, nil
}

// GetUserOrders returns a user's orders with their services and prices
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	orders, err := s.orders.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	return orders, nil
}

// Wait blocks until background notifications have finished
func (s *OrderService) Wait() {
	s.background.Wait()
}

// orderBookings returns the explicit order items, or the active cart's items
// together with the cart id.
func (s *OrderService) orderBookings(ctx context.Context, identity models.CartIdentity, req *models.CreateOrderRequest) ([]models.BookingRequest, *int64, error) {
	if len(req.OrderItems) > 0 {
		return req.OrderItems, nil, nil
	}
	if identity.Validate() != nil {
		return nil, nil, models.ErrEmptyOrder
	}

	cart, err := s.carts.GetActive(ctx, identity)
	if errors.Is(err, models.ErrCartNotFound) {
		return nil, nil, models.ErrEmptyOrder
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get active cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, nil, models.ErrEmptyOrder
	}

	bookings := make([]models.BookingRequest, 0, len(cart.Items))
	for _, item := range cart.Items {
		bookings = append(bookings, models.BookingFromCartItem(item))
	}
	cartID := cart.ID
	return bookings, &cartID, nil
}

// resolveUser finds the purchaser by email or creates a guest-checkout account.
func (s *OrderService) resolveUser(ctx context.Context, customer models.CustomerInfo) (*models.User, error) {
	email := models.NormalizeEmail(customer.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	placeholder, err := utils.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate placeholder password: %w", err)
	}
	hash, err := utils.HashPassword(placeholder)
	if err != nil {
		return nil, fmt.Errorf("failed to hash placeholder password: %w", err)
	}

	firstName := strings.TrimSpace(customer.Name)
	if firstName == "" {
		firstName = models.GuestFirstName
	}

	user, err = s.users.Create(ctx, models.NewUser{
		Email:              email,
		PasswordHash:       hash,
		FirstName:          firstName,
		PhoneNumber:        strings.TrimSpace(customer.Telephone),
		NeedsPasswordReset: true,
	})
	if errors.Is(err, models.ErrEmailTaken) {
		return s.users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create guest user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("Created guest checkout user")
	return user, nil
}

// priceServices looks up prices for every booking concurrently and builds
// the priced order services in booking order.
func (s *OrderService) priceServices(ctx context.Context, bookings []models.BookingRequest) ([]*models.OrderService, error) {
	services := make([]*models.OrderService, len(bookings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPriceLookups)

	for i := range bookings {
		i := i
		booking := bookings[i]
		g.Go(func() error {
			service, err := s.priceService(gctx, booking)
			if err != nil {
				return err
			}
			services[i] = service
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *OrderService) priceService(ctx context.Context, booking models.BookingRequest) (*models.OrderService, error) {
	date, err := booking.ParsedDate()
	if err != nil {
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.PriceLookupTimeout)
	defer cancel()

	start := time.Now()
	prices, err := s.prices.GetExcursionPrices(lookupCtx, booking.ID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", booking.ID, err)
	}
	s.logger.Debug().Str("service_id", booking.ID).Dur("duration", time.Since(start)).Msg("Resolved excursion prices")

	service := &models.OrderService{
		ServiceID:    booking.ID,
		ServiceType:  booking.Type,
		ServiceTitle: booking.Title,
		Slug:         booking.Slug,
		ImageSrc:     booking.ImageSrc,
		ImageLQIP:    booking.ImageLQIP,
		Date:         date,
		Time:         booking.Time,
		Prices:       make([]*models.ServicePrice, 0, len(booking.Participants)),
	}

	totals := models.PriceTotals{Base: decimal.Zero, Current: decimal.Zero}
	for _, participant := range booking.Participants {
		base, current, ok := prices.Lookup(participant.Category)
		if !ok {
			return nil, fmt.Errorf("%w: %s for %s", models.ErrPriceNotFound, participant.Category, booking.ID)
		}

		line := models.LineTotals(base, current, participant.Count)
		service.Prices = append(service.Prices, &models.ServicePrice{
			PriceType:         participant.Category,
			CategoryTitle:     participant.Title,
			BasePrice:         base,
			CurrentPrice:      current,
			Quantity:          participant.Count,
			TotalBasePrice:    line.Base,
			TotalCurrentPrice: line.Current,
		})
		totals = totals.Add(line)
	}
	service.TotalBasePrice = totals.Base
	service.TotalCurrentPrice = totals.Current

	return service, nil
}

// notifyAsync sends the order notification in the background and records
// the outcome on the order. Failures never reach the client.
func (s *OrderService) notifyAsync(order *models.Order, req *models.CreateOrderRequest) {
	if s.notifier == nil {
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.NotificationTimeout)
		defer cancel()

		status := models.NotificationSent
		err := s.notifier.NotifyOrder(ctx, order, req)
		switch {
		case errors.Is(err, ErrNotificationSkipped):
			return
		case err != nil:
			status = models.NotificationFailed
			s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("Failed to send order notification")
		}

		// the send may have used up ctx
		updateCtx, cancelUpdate := context.WithTimeout(context.Background(), s.NotificationTimeout)
		defer cancelUpdate()
		if err := s.orders.UpdateNotificationStatus(updateCtx, order.ID, status); err != nil {
			s.logger.Error().Err(err).Int64("order_id", order.ID).Str("status", string(status)).Msg("Failed to record notification status")
		}
	}()
}
