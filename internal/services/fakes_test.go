package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"excursion-booking/internal/models"
	"excursion-booking/internal/utils"
)

const testMerchantNumber = "1234567890"

// memDB is an in-memory store shared by the fake repositories below. Every
// operation takes the lock, mirroring the transactional repositories.
type memDB struct {
	mu       sync.Mutex
	nextID   int64
	nextTx   int64
	carts    map[int64]*models.Cart
	orders   map[int64]*models.Order
	payments map[int64]*models.Payment
	users    map[string]*models.User

	// paymentErr fails every payment insert
	paymentErr error

	settleCalls atomic.Int32
}

func newMemDB() *memDB {
	return &memDB{
		nextTx:   100000,
		carts:    make(map[int64]*models.Cart),
		orders:   make(map[int64]*models.Order),
		payments: make(map[int64]*models.Payment),
		users:    make(map[string]*models.User),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func sameOwner(cart *models.Cart, identity models.CartIdentity) bool {
	if identity.IsUser() {
		return cart.UserID != nil && *cart.UserID == *identity.UserID
	}
	return cart.GuestSessionID != nil && *cart.GuestSessionID == identity.GuestSessionID
}

func cloneCart(cart *models.Cart) *models.Cart {
	c := *cart
	c.Items = make([]*models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		i := *item
		i.Options = make([]*models.CartItemOption, 0, len(item.Options))
		for _, option := range item.Options {
			o := *option
			i.Options = append(i.Options, &o)
		}
		c.Items = append(c.Items, &i)
	}
	return &c
}

type memCarts struct{ db *memDB }

func (r memCarts) activeCart(identity models.CartIdentity) *models.Cart {
	for _, cart := range r.db.carts {
		if cart.Status == models.CartActive && sameOwner(cart, identity) {
			return cart
		}
	}
	return nil
}

func (r memCarts) GetActive(_ context.Context, identity models.CartIdentity) (*models.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cart := r.activeCart(identity)
	if cart == nil {
		return nil, models.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (r memCarts) CreateActive(_ context.Context, identity models.CartIdentity) (*models.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.activeCart(identity) != nil {
		return nil, models.ErrActiveCartExists
	}
	cart := &models.Cart{
		ID:                r.db.id(),
		Status:            models.CartActive,
		TotalBasePrice:    decimal.Zero,
		TotalCurrentPrice: decimal.Zero,
	}
	if identity.IsUser() {
		id := *identity.UserID
		cart.UserID = &id
	} else {
		sid := identity.GuestSessionID
		cart.GuestSessionID = &sid
	}
	r.db.carts[cart.ID] = cart
	return cloneCart(cart), nil
}

func (r memCarts) AddItem(_ context.Context, cartID int64, item *models.CartItem) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cart, ok := r.db.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	for _, existing := range cart.Items {
		if existing.Key() == item.Key() {
			return models.ErrDuplicateCartItem
		}
	}
	item.ID = r.db.id()
	item.CartID = cartID
	for _, option := range item.Options {
		option.ID = r.db.id()
		option.CartItemID = item.ID
	}
	cart.Items = append(cart.Items, cloneCart(&models.Cart{Items: []*models.CartItem{item}}).Items[0])
	cart.RecalculateTotals()
	return nil
}

func (r memCarts) UpdateItem(_ context.Context, cartID int64, item *models.CartItem) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cart, ok := r.db.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	index := -1
	for i, existing := range cart.Items {
		if existing.ID == item.ID {
			index = i
		} else if existing.Key() == item.Key() {
			return models.ErrDuplicateCartItem
		}
	}
	if index < 0 {
		return models.ErrCartItemNotFound
	}
	item.CartID = cartID
	cart.Items[index] = cloneCart(&models.Cart{Items: []*models.CartItem{item}}).Items[0]
	cart.RecalculateTotals()
	return nil
}

func (r memCarts) RemoveItem(_ context.Context, cartID, itemID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cart, ok := r.db.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	for i, existing := range cart.Items {
		if existing.ID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.RecalculateTotals()
			return nil
		}
	}
	return models.ErrCartItemNotFound
}

func (r memCarts) Clear(_ context.Context, cartID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cart, ok := r.db.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	cart.Items = nil
	cart.RecalculateTotals()
	return nil
}

type memOrders struct{ db *memDB }

func (r memOrders) Create(_ context.Context, order *models.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.orders {
		if existing.OrderNumber == order.OrderNumber {
			return models.ErrDuplicateOrderNumber
		}
	}
	order.ID = r.db.id()
	stored := *order
	r.db.orders[order.ID] = &stored
	return nil
}

func (r memOrders) CreateWithPayment(_ context.Context, order *models.Order, p models.NewPayment, finalize func(*models.Payment) error) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.orders {
		if existing.OrderNumber == order.OrderNumber {
			return nil, models.ErrDuplicateOrderNumber
		}
	}
	if r.db.paymentErr != nil {
		return nil, fmt.Errorf("failed to create payment: %w", r.db.paymentErr)
	}

	if p.ConfirmsOrder {
		order.Status = models.OrderConfirmed
	}
	if order.TelegramStatus == "" {
		order.TelegramStatus = models.NotificationNotSent
	}
	order.ID = r.db.id()
	p.OrderID = order.ID
	payment := r.db.newPayment(p)

	if finalize != nil {
		copied := *payment
		if err := finalize(&copied); err != nil {
			return nil, err
		}
	}

	stored := *order
	r.db.orders[order.ID] = &stored
	r.db.payments[payment.TransactionID] = payment
	if p.ConfirmsOrder && order.CartID != nil {
		if cart, ok := r.db.carts[*order.CartID]; ok {
			cart.Status = models.CartOrdered
		}
	}
	copied := *payment
	return &copied, nil
}

func (r memOrders) UpdateNotificationStatus(_ context.Context, orderID int64, status models.NotificationStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	order, ok := r.db.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	order.TelegramStatus = status
	return nil
}

func (r memOrders) GetByID(_ context.Context, id int64) (*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	order, ok := r.db.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (r memOrders) GetByUser(_ context.Context, userID int64) ([]*models.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var orders []*models.Order
	for _, order := range r.db.orders {
		if order.UserID == userID {
			copied := *order
			orders = append(orders, &copied)
		}
	}
	return orders, nil
}

type memPayments struct{ db *memDB }

func (db *memDB) newPayment(p models.NewPayment) *models.Payment {
	db.nextTx++
	return &models.Payment{
		ID:            db.id(),
		TransactionID: db.nextTx,
		Token:         p.Token,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        models.PaymentUnpaid,
	}
}

func (r memPayments) insert(p models.NewPayment) *models.Payment {
	payment := r.db.newPayment(p)
	r.db.payments[payment.TransactionID] = payment
	copied := *payment
	return &copied
}

func (r memPayments) Create(_ context.Context, p models.NewPayment) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.paymentErr != nil {
		return nil, fmt.Errorf("failed to create payment: %w", r.db.paymentErr)
	}
	return r.insert(p), nil
}

func (r memPayments) CreateConfirmed(_ context.Context, p models.NewPayment, cartID *int64) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	order, ok := r.db.orders[p.OrderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	order.Status = models.OrderConfirmed
	if cartID != nil {
		if cart, ok := r.db.carts[*cartID]; ok {
			cart.Status = models.CartOrdered
		}
	}
	return r.insert(p), nil
}

func (r memPayments) GetByTransactionID(_ context.Context, transactionID int64) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	payment, ok := r.db.payments[transactionID]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (r memPayments) GetByToken(_ context.Context, token string) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, payment := range r.db.payments {
		if payment.Token == token {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (r memPayments) Settle(_ context.Context, req models.SettlementRequest) (*models.SettlementResult, error) {
	r.db.settleCalls.Add(1)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	payment, ok := r.db.payments[req.TransactionID]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	order := r.db.orders[payment.OrderID]

	if payment.IsPaid() {
		copied := *payment
		return &models.SettlementResult{Payment: &copied, OrderStatus: order.Status, TotalPaid: order.TotalPaid, AlreadySettled: true}, nil
	}

	prcode, srcode, text := req.PRCode, req.SRCode, req.ResultText
	payment.PRCode, payment.SRCode, payment.ResultText = &prcode, &srcode, &text

	if req.Success {
		payment.Status = models.PaymentPaid
		order.TotalPaid = order.TotalPaid.Add(payment.Amount)
		order.Status = order.StatusAfterPayment(order.TotalPaid)
		now := time.Now()
		order.PaidAt = &now
		if order.CartID != nil {
			if cart, ok := r.db.carts[*order.CartID]; ok {
				cart.Status = models.CartOrdered
			}
		}
	}

	copied := *payment
	return &models.SettlementResult{Payment: &copied, OrderStatus: order.Status, TotalPaid: order.TotalPaid}, nil
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(_ context.Context, u models.NewUser) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[u.Email]; ok {
		return nil, models.ErrEmailTaken
	}
	user := &models.User{
		ID:                 r.db.id(),
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		FirstName:          u.FirstName,
		PhoneNumber:        u.PhoneNumber,
		IsActive:           true,
		NeedsPasswordReset: u.NeedsPasswordReset,
	}
	r.db.users[u.Email] = user
	copied := *user
	return &copied, nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u models.NewUser) (*models.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByRefreshToken(ctx context.Context, tokenHash string) (*models.Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) error {
	args := m.Called(ctx, oldHash, newHash, expiresAt)
	return args.Error(0)
}

func (m *MockSessionRepository) Deactivate(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

// stubPrices returns fixed prices per excursion id
type stubPrices struct {
	prices map[string]*models.ExcursionPrices
	err    error
	calls  atomic.Int32
}

func (s *stubPrices) GetExcursionPrices(ctx context.Context, itemID string, _ time.Time) (*models.ExcursionPrices, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prices, ok := s.prices[itemID]
	if !ok {
		return nil, models.ErrExcursionNotFound
	}
	return prices, nil
}

func adultPrices(base, current string) *models.ExcursionPrices {
	return &models.ExcursionPrices{
		BasePrices:    []models.CategoryPrice{{CategoryID: "adult", Price: decimal.RequireFromString(base)}},
		CurrentPrices: []models.CategoryPrice{{CategoryID: "adult", Price: decimal.RequireFromString(current)}},
	}
}

// chanNotifier records notified orders
type chanNotifier struct {
	orders chan *models.Order
	err    error
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{orders: make(chan *models.Order, 8)}
}

func (n *chanNotifier) NotifyOrder(_ context.Context, order *models.Order, _ *models.CreateOrderRequest) error {
	n.orders <- order
	return n.err
}

// brokenGateway cannot sign requests
type brokenGateway struct{}

func (brokenGateway) PaymentURL(GatewayPayment) (string, error) {
	return "", errors.New("signing key unavailable")
}

func (brokenGateway) VerifyResponse(map[string]string) error {
	return models.ErrInvalidDigest
}

func (brokenGateway) ProcessPaymentResult(map[string]string) (*models.GatewayResult, error) {
	return nil, models.ErrInvalidDigest
}

// testGateway holds a key pair playing both merchant and gateway
type testGateway struct {
	key     *rsa.PrivateKey
	service *GPWebPayService
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	service, err := NewGPWebPayService(GPWebPayConfig{
		MerchantNumber: testMerchantNumber,
		RequestURL:     "https://gateway.test/pay",
		ResponseURL:    "https://shop.test/payment/return",
		PrivateKey:     privatePEM,
		PublicKey:      publicPEM,
	}, zerolog.Nop())
	require.NoError(t, err)

	return &testGateway{key: key, service: service}
}

// callback builds a signed gateway callback for a transaction
func (g *testGateway) callback(t *testing.T, transactionID, orderID int64, prcode, srcode, text string) map[string]string {
	t.Helper()

	params := map[string]string{
		"OPERATION":   gpOperationCreateOrder,
		"ORDERNUMBER": strconv.FormatInt(transactionID, 10),
		"MERORDERNUM": strconv.FormatInt(orderID, 10),
		"PRCODE":      prcode,
		"SRCODE":      srcode,
		"RESULTTEXT":  text,
	}
	base := responseBaseString(params)

	digest, err := utils.SignSHA1(base, g.key)
	require.NoError(t, err)
	digest1, err := utils.SignSHA1(base+"|"+testMerchantNumber, g.key)
	require.NoError(t, err)

	params["DIGEST"] = digest
	params["DIGEST1"] = digest1
	return params
}

// testEnv wires the order and payment services over the in-memory store
type testEnv struct {
	db       *memDB
	gateway  *testGateway
	prices   *stubPrices
	notifier *chanNotifier
	carts    *CartService
	orders   *OrderService
	payments *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	gateway := newTestGateway(t)
	prices := &stubPrices{prices: map[string]*models.ExcursionPrices{
		"excursion-1": adultPrices("50.00", "50.00"),
		"excursion-2": adultPrices("30.00", "25.00"),
	}}
	notifier := newChanNotifier()
	logger := zerolog.Nop()

	factory := NewDefaultPaymentStrategyFactory(memPayments{db}, gateway.service, logger)

	return &testEnv{
		db:       db,
		gateway:  gateway,
		prices:   prices,
		notifier: notifier,
		carts:    NewCartService(memCarts{db}, logger),
		orders:   NewOrderService(memUsers{db}, memCarts{db}, memOrders{db}, prices, notifier, factory, logger),
		payments: NewPaymentService(memPayments{db}, memOrders{db}, memUsers{db}, factory, logger),
	}
}

func futureDate() string {
	return time.Now().AddDate(0, 1, 0).Format(models.DateLayout)
}

func bookingRequest(serviceID string, adults int) models.BookingRequest {
	return models.BookingRequest{
		ID:           serviceID,
		Type:         models.ServiceTypeExcursion,
		Date:         futureDate(),
		Time:         "10:00",
		Title:        "City walk",
		Participants: []models.Participant{{Category: "adult", Title: "Adult", Count: adults}},
	}
}

func orderRequest(method string, items ...models.BookingRequest) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		User:          models.CustomerInfo{Name: "Jane", Telephone: "+421900000000", Email: "jane@example.com"},
		PaymentMethod: method,
		OrderItems:    items,
	}
}
