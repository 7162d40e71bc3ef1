package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"excursion-booking/internal/database"
	"excursion-booking/internal/models"
)

const cartItemKeyConstraint = "cart_items_service_key"

// CartRepository handles cart data operations
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetActive returns the active cart of an identity with its items and options
func (r *CartRepository) GetActive(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	query := `
		SELECT id, user_id, guest_session_id, status, total_base_price, total_current_price, created_at, updated_at
		FROM carts
		WHERE status = 'ACTIVE' AND `
	var arg interface{}
	if identity.IsUser() {
		query += "user_id = $1"
		arg = *identity.UserID
	} else {
		query += "guest_session_id = $1"
		arg = identity.GuestSessionID
	}

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get active cart: %w", err)
	}

	if cart.Items, err = r.loadItems(ctx, cart.ID); err != nil {
		return nil, err
	}

	return cart, nil
}

// CreateActive inserts an empty active cart. A concurrent creator for the
// same identity surfaces as ErrActiveCartExists.
func (r *CartRepository) CreateActive(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	query := `
		INSERT INTO carts (user_id, guest_session_id, status, total_base_price, total_current_price)
		VALUES ($1, $2, 'ACTIVE', 0, 0)
		RETURNING id, user_id, guest_session_id, status, total_base_price, total_current_price, created_at, updated_at`

	var userID, guestID interface{}
	if identity.IsUser() {
		userID = *identity.UserID
	} else {
		guestID = identity.GuestSessionID
	}

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, userID, guestID))
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, models.ErrActiveCartExists
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart.Items = []*models.CartItem{}
	return cart, nil
}

// AddItem inserts an item with its options and recomputes the cart totals in one transaction
func (r *CartRepository) AddItem(ctx context.Context, cartID int64, item *models.CartItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO cart_items (cart_id, service_id, service_type, date, time, title, slug, image_src, image_lqip, total_base_price, total_current_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err = tx.QueryRowContext(ctx, query,
		cartID,
		item.ServiceID,
		item.ServiceType,
		item.Date,
		item.Time,
		item.Title,
		item.Slug,
		item.ImageSrc,
		item.ImageLQIP,
		item.TotalBasePrice,
		item.TotalCurrentPrice,
	).Scan(&item.ID)
	if err != nil {
		if database.IsUniqueViolation(err, cartItemKeyConstraint) {
			return models.ErrDuplicateCartItem
		}
		return fmt.Errorf("failed to insert cart item: %w", err)
	}
	item.CartID = cartID

	if err := insertCartItemOptions(ctx, tx, item); err != nil {
		return err
	}

	if err := recomputeCartTotals(ctx, tx, cartID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart item: %w", err)
	}
	return nil
}

// UpdateItem replaces an item's fields and options and recomputes the cart totals in one transaction
func (r *CartRepository) UpdateItem(ctx context.Context, cartID int64, item *models.CartItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE cart_items
		SET service_id = $3, service_type = $4, date = $5, time = $6, title = $7, slug = $8,
			image_src = $9, image_lqip = $10, total_base_price = $11, total_current_price = $12
		WHERE id = $1 AND cart_id = $2`

	result, err := tx.ExecContext(ctx, query,
		item.ID,
		cartID,
		item.ServiceID,
		item.ServiceType,
		item.Date,
		item.Time,
		item.Title,
		item.Slug,
		item.ImageSrc,
		item.ImageLQIP,
		item.TotalBasePrice,
		item.TotalCurrentPrice,
	)
	if err != nil {
		if database.IsUniqueViolation(err, cartItemKeyConstraint) {
			return models.ErrDuplicateCartItem
		}
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if err := expectAffected(result, models.ErrCartItemNotFound); err != nil {
		return err
	}
	item.CartID = cartID

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_item_options WHERE cart_item_id = $1", item.ID); err != nil {
		return fmt.Errorf("failed to delete cart item options: %w", err)
	}

	if err := insertCartItemOptions(ctx, tx, item); err != nil {
		return err
	}

	if err := recomputeCartTotals(ctx, tx, cartID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart item update: %w", err)
	}
	return nil
}

// RemoveItem deletes an item and recomputes the cart totals in one transaction
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	if err := expectAffected(result, models.ErrCartItemNotFound); err != nil {
		return err
	}

	if err := recomputeCartTotals(ctx, tx, cartID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart item removal: %w", err)
	}
	return nil
}

// Clear removes every item and zeroes the totals in one transaction
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE carts SET total_base_price = 0, total_current_price = 0, updated_at = NOW()
		WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to reset cart totals: %w", err)
	}
	if err := expectAffected(result, models.ErrCartNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart clear: %w", err)
	}
	return nil
}

func (r *CartRepository) loadItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, service_id, service_type, date, time, title, slug, image_src, image_lqip, total_base_price, total_current_price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	items := []*models.CartItem{}
	byID := make(map[int64]*models.CartItem)
	for rows.Next() {
		item := &models.CartItem{Options: []*models.CartItemOption{}}
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ServiceID,
			&item.ServiceType,
			&item.Date,
			&item.Time,
			&item.Title,
			&item.Slug,
			&item.ImageSrc,
			&item.ImageLQIP,
			&item.TotalBasePrice,
			&item.TotalCurrentPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
		byID[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	if len(items) == 0 {
		return items, nil
	}

	optionRows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.cart_item_id, o.price_type, o.category_title, o.base_price, o.current_price,
			o.quantity, o.total_base_price, o.total_current_price
		FROM cart_item_options o
		JOIN cart_items i ON i.id = o.cart_item_id
		WHERE i.cart_id = $1
		ORDER BY o.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item options: %w", err)
	}
	defer optionRows.Close()

	for optionRows.Next() {
		option := &models.CartItemOption{}
		if err := optionRows.Scan(
			&option.ID,
			&option.CartItemID,
			&option.PriceType,
			&option.CategoryTitle,
			&option.BasePrice,
			&option.CurrentPrice,
			&option.Quantity,
			&option.TotalBasePrice,
			&option.TotalCurrentPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item option: %w", err)
		}
		if item, ok := byID[option.CartItemID]; ok {
			item.Options = append(item.Options, option)
		}
	}
	if err := optionRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart item options: %w", err)
	}

	return items, nil
}

func insertCartItemOptions(ctx context.Context, tx *sql.Tx, item *models.CartItem) error {
	query := `
		INSERT INTO cart_item_options (cart_item_id, price_type, category_title, base_price, current_price, quantity, total_base_price, total_current_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	for _, option := range item.Options {
		option.CartItemID = item.ID
		err := tx.QueryRowContext(ctx, query,
			item.ID,
			option.PriceType,
			option.CategoryTitle,
			option.BasePrice,
			option.CurrentPrice,
			option.Quantity,
			option.TotalBasePrice,
			option.TotalCurrentPrice,
		).Scan(&option.ID)
		if err != nil {
			return fmt.Errorf("failed to insert cart item option: %w", err)
		}
	}
	return nil
}

// recomputeCartTotals sets the cart totals to the sum over its items.
func recomputeCartTotals(ctx context.Context, tx *sql.Tx, cartID int64) error {
	query := `
		UPDATE carts SET
			total_base_price = COALESCE((SELECT SUM(total_base_price) FROM cart_items WHERE cart_id = $1), 0),
			total_current_price = COALESCE((SELECT SUM(total_current_price) FROM cart_items WHERE cart_id = $1), 0),
			updated_at = NOW()
		WHERE id = $1`

	result, err := tx.ExecContext(ctx, query, cartID)
	if err != nil {
		return fmt.Errorf("failed to recompute cart totals: %w", err)
	}
	return expectAffected(result, models.ErrCartNotFound)
}

func scanCart(row rowScanner) (*models.Cart, error) {
	cart := &models.Cart{}
	var userID sql.NullInt64
	var guestID sql.NullString

	err := row.Scan(
		&cart.ID,
		&userID,
		&guestID,
		&cart.Status,
		&cart.TotalBasePrice,
		&cart.TotalCurrentPrice,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		cart.UserID = &userID.Int64
	}
	if guestID.Valid {
		cart.GuestSessionID = &guestID.String
	}
	return cart, nil
}

// expectAffected returns notFound when a statement matched no rows.
func expectAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
