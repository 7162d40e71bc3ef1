package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"excursion-booking/internal/database"
	"excursion-booking/internal/models"
)

const orderNumberConstraint = "orders_order_number_key"

// OrderRepository handles order data operations
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_number, user_id, cart_id, payment_method, order_status, promo_code,
	total_base_price, total_current_price, discount_amount, total_paid, telegram_status, paid_at, created_at, updated_at`

// Create persists an order with its service and price snapshot in one transaction
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order creation: %w", err)
	}

	return nil
}

// CreateWithPayment persists an order, its snapshot and its first payment
// attempt in one transaction. A payment that confirms its order (cash) also
// marks the order CONFIRMED and the cart ORDERED. finalize runs before commit;
// an error from it rolls everything back.
func (r *OrderRepository) CreateWithPayment(ctx context.Context, order *models.Order, p models.NewPayment, finalize func(*models.Payment) error) (*models.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if p.ConfirmsOrder {
		order.Status = models.OrderConfirmed
	}
	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	p.OrderID = order.ID
	payment, err := insertPayment(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	if p.ConfirmsOrder && order.CartID != nil {
		if err := markCartOrdered(ctx, tx, *order.CartID); err != nil {
			return nil, err
		}
	}

	if finalize != nil {
		if err := finalize(payment); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}
	return payment, nil
}

// UpdateNotificationStatus records the outcome of the staff notification
func (r *OrderRepository) UpdateNotificationStatus(ctx context.Context, orderID int64, status models.NotificationStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET telegram_status = $2, updated_at = NOW()
		WHERE id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return expectAffected(result, models.ErrOrderNotFound)
}

func insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	if order.TelegramStatus == "" {
		order.TelegramStatus = models.NotificationNotSent
	}

	query := `
		INSERT INTO orders (order_number, user_id, cart_id, payment_method, order_status, promo_code,
			total_base_price, total_current_price, discount_amount, total_paid, telegram_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		order.OrderNumber,
		order.UserID,
		order.CartID,
		order.PaymentMethod,
		order.Status,
		order.PromoCode,
		order.TotalBasePrice,
		order.TotalCurrentPrice,
		order.DiscountAmount,
		order.TotalPaid,
		order.TelegramStatus,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, orderNumberConstraint) {
			return models.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, service := range order.Services {
		service.OrderID = order.ID
		if err := insertOrderService(ctx, tx, service); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves an order by ID without its services
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// GetByUser retrieves a user's orders, newest first, with services and prices
func (r *OrderRepository) GetByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	byID := make(map[int64]*models.Order)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Services = []*models.OrderService{}
		orders = append(orders, order)
		byID[order.ID] = order
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.loadServices(ctx, userID, byID); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *OrderRepository) loadServices(ctx context.Context, userID int64, orders map[int64]*models.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.order_id, s.service_id, s.service_type, s.service_title, s.slug, s.image_src, s.image_lqip,
			s.date, s.time, s.total_base_price, s.total_current_price
		FROM order_services s
		JOIN orders o ON o.id = s.order_id
		WHERE o.user_id = $1
		ORDER BY s.id`, userID)
	if err != nil {
		return fmt.Errorf("failed to get order services: %w", err)
	}
	defer rows.Close()

	services := make(map[int64]*models.OrderService)
	for rows.Next() {
		service := &models.OrderService{Prices: []*models.ServicePrice{}}
		if err := rows.Scan(
			&service.ID,
			&service.OrderID,
			&service.ServiceID,
			&service.ServiceType,
			&service.ServiceTitle,
			&service.Slug,
			&service.ImageSrc,
			&service.ImageLQIP,
			&service.Date,
			&service.Time,
			&service.TotalBasePrice,
			&service.TotalCurrentPrice,
		); err != nil {
			return fmt.Errorf("failed to scan order service: %w", err)
		}
		if order, ok := orders[service.OrderID]; ok {
			order.Services = append(order.Services, service)
			services[service.ID] = service
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order services: %w", err)
	}

	priceRows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.order_service_id, p.price_type, p.category_title, p.base_price, p.current_price,
			p.quantity, p.total_base_price, p.total_current_price
		FROM service_prices p
		JOIN order_services s ON s.id = p.order_service_id
		JOIN orders o ON o.id = s.order_id
		WHERE o.user_id = $1
		ORDER BY p.id`, userID)
	if err != nil {
		return fmt.Errorf("failed to get service prices: %w", err)
	}
	defer priceRows.Close()

	for priceRows.Next() {
		price := &models.ServicePrice{}
		if err := priceRows.Scan(
			&price.ID,
			&price.OrderServiceID,
			&price.PriceType,
			&price.CategoryTitle,
			&price.BasePrice,
			&price.CurrentPrice,
			&price.Quantity,
			&price.TotalBasePrice,
			&price.TotalCurrentPrice,
		); err != nil {
			return fmt.Errorf("failed to scan service price: %w", err)
		}
		if service, ok := services[price.OrderServiceID]; ok {
			service.Prices = append(service.Prices, price)
		}
	}
	return priceRows.Err()
}

func insertOrderService(ctx context.Context, tx *sql.Tx, service *models.OrderService) error {
	query := `
		INSERT INTO order_services (order_id, service_id, service_type, service_title, slug, image_src, image_lqip,
			date, time, total_base_price, total_current_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := tx.QueryRowContext(ctx, query,
		service.OrderID,
		service.ServiceID,
		service.ServiceType,
		service.ServiceTitle,
		service.Slug,
		service.ImageSrc,
		service.ImageLQIP,
		service.Date,
		service.Time,
		service.TotalBasePrice,
		service.TotalCurrentPrice,
	).Scan(&service.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order service: %w", err)
	}

	priceQuery := `
		INSERT INTO service_prices (order_service_id, price_type, category_title, base_price, current_price,
			quantity, total_base_price, total_current_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	for _, price := range service.Prices {
		price.OrderServiceID = service.ID
		err := tx.QueryRowContext(ctx, priceQuery,
			service.ID,
			price.PriceType,
			price.CategoryTitle,
			price.BasePrice,
			price.CurrentPrice,
			price.Quantity,
			price.TotalBasePrice,
			price.TotalCurrentPrice,
		).Scan(&price.ID)
		if err != nil {
			return fmt.Errorf("failed to insert service price: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var cartID sql.NullInt64
	var paidAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&cartID,
		&order.PaymentMethod,
		&order.Status,
		&order.PromoCode,
		&order.TotalBasePrice,
		&order.TotalCurrentPrice,
		&order.DiscountAmount,
		&order.TotalPaid,
		&order.TelegramStatus,
		&paidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cartID.Valid {
		order.CartID = &cartID.Int64
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}
