package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"excursion-booking/internal/models"
)

// PaymentRepository handles payment data operations and settlement
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, transaction_id, token, order_id, user_id, amount, payment_method, status,
	prcode, srcode, result_text, created_at, updated_at`

// Create opens an unpaid payment attempt. The transaction id is assigned by the database.
func (r *PaymentRepository) Create(ctx context.Context, p models.NewPayment) (*models.Payment, error) {
	payment, err := insertPayment(ctx, r.db, p)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// CreateConfirmed opens a payment attempt and confirms its order without a
// gateway round trip. The cart, when given, is marked ORDERED. One transaction.
func (r *PaymentRepository) CreateConfirmed(ctx context.Context, p models.NewPayment, cartID *int64) (*models.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := insertPayment(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET order_status = $2, updated_at = NOW()
		WHERE id = $1`, p.OrderID, models.OrderConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}
	if err := expectAffected(result, models.ErrOrderNotFound); err != nil {
		return nil, err
	}

	if cartID != nil {
		if err := markCartOrdered(ctx, tx, *cartID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cash payment: %w", err)
	}
	return payment, nil
}

// GetByTransactionID retrieves a payment by the gateway order number
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	return r.getOne(ctx, query, transactionID)
}

// GetByToken retrieves a payment by its client token
func (r *PaymentRepository) GetByToken(ctx context.Context, token string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE token = $1`
	return r.getOne(ctx, query, token)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Payment, error) {
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// Settle reconciles a verified gateway callback in one transaction.
//
// The payment row is locked first. A payment that is already PAID is left
// untouched and reported as AlreadySettled, so redelivered callbacks never
// add to total_paid twice. A failed result only records the gateway codes.
func (r *PaymentRepository) Settle(ctx context.Context, req models.SettlementRequest) (*models.SettlementResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1 FOR UPDATE`
	payment, err := scanPayment(tx.QueryRowContext(ctx, query, req.TransactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}

	var (
		totalCurrent decimal.Decimal
		totalPaid    decimal.Decimal
		status       models.OrderStatus
		cartID       sql.NullInt64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT total_current_price, total_paid, order_status, cart_id
		FROM orders WHERE id = $1 FOR UPDATE`, payment.OrderID).Scan(&totalCurrent, &totalPaid, &status, &cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	result := &models.SettlementResult{Payment: payment, OrderStatus: status, TotalPaid: totalPaid}

	if payment.IsPaid() {
		result.AlreadySettled = true
		return result, tx.Commit()
	}

	paymentStatus := models.PaymentUnpaid
	if req.Success {
		paymentStatus = models.PaymentPaid
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $2, prcode = $3, srcode = $4, result_text = $5, updated_at = NOW()
		WHERE id = $1`, payment.ID, paymentStatus, req.PRCode, req.SRCode, req.ResultText)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	payment.Status = paymentStatus
	payment.PRCode = &req.PRCode
	payment.SRCode = &req.SRCode
	payment.ResultText = &req.ResultText

	if req.Success {
		order := &models.Order{TotalCurrentPrice: totalCurrent}
		result.TotalPaid = totalPaid.Add(payment.Amount)
		result.OrderStatus = order.StatusAfterPayment(result.TotalPaid)

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET total_paid = $2, order_status = $3, paid_at = NOW(), updated_at = NOW()
			WHERE id = $1`, payment.OrderID, result.TotalPaid, result.OrderStatus)
		if err != nil {
			return nil, fmt.Errorf("failed to update order payment: %w", err)
		}

		if cartID.Valid {
			if err := markCartOrdered(ctx, tx, cartID.Int64); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return result, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertPayment(ctx context.Context, q execQuerier, p models.NewPayment) (*models.Payment, error) {
	query := `
		INSERT INTO payments (token, order_id, user_id, amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, 'UNPAID')
		RETURNING ` + paymentColumns

	payment, err := scanPayment(q.QueryRowContext(ctx, query, p.Token, p.OrderID, p.UserID, p.Amount, p.Method))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return payment, nil
}

func markCartOrdered(ctx context.Context, q execQuerier, cartID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE carts SET status = 'ORDERED', updated_at = NOW()
		WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to mark cart ordered: %w", err)
	}
	return nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var prcode, srcode, resultText sql.NullString

	err := row.Scan(
		&payment.ID,
		&payment.TransactionID,
		&payment.Token,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Method,
		&payment.Status,
		&prcode,
		&srcode,
		&resultText,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if prcode.Valid {
		payment.PRCode = &prcode.String
	}
	if srcode.Valid {
		payment.SRCode = &srcode.String
	}
	if resultText.Valid {
		payment.ResultText = &resultText.String
	}
	return payment, nil
}
