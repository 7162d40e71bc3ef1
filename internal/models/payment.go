package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment attempt
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// Payment is one payment attempt for an order
type Payment struct {
	ID            int64           `json:"id" db:"id"`
	TransactionID int64           `json:"transaction_id" db:"transaction_id"`
	Token         string          `json:"token" db:"token"`
	OrderID       int64           `json:"order_id" db:"order_id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Method        PaymentMethod   `json:"payment_method" db:"payment_method"`
	Status        PaymentStatus   `json:"status" db:"status"`
	PRCode        *string         `json:"prcode,omitempty" db:"prcode"`
	SRCode        *string         `json:"srcode,omitempty" db:"srcode"`
	ResultText    *string         `json:"result_text,omitempty" db:"result_text"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPaid returns true once a verified callback settled the payment
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentPaid
}

// NewPayment holds the fields needed to open a payment attempt
type NewPayment struct {
	OrderID int64
	UserID  int64
	Amount  decimal.Decimal
	Method  PaymentMethod
	Token   string

	// ConfirmsOrder is set for methods settled outside the gateway (cash);
	// opening the payment confirms the order.
	ConfirmsOrder bool
}

// GatewayResult is the interpreted outcome of a verified gateway callback
type GatewayResult struct {
	Success       bool
	TransactionID int64
	OrderID       int64
	PRCode        string
	SRCode        string
	ResultText    string
}

// SettlementRequest describes a verified callback to reconcile
type SettlementRequest struct {
	TransactionID int64
	Success       bool
	PRCode        string
	SRCode        string
	ResultText    string
}

// SettlementResult reports what a settlement changed
type SettlementResult struct {
	Payment        *Payment
	OrderStatus    OrderStatus
	TotalPaid      decimal.Decimal
	AlreadySettled bool
}

// PaymentStatusResponse is the client facing view of a payment attempt
type PaymentStatusResponse struct {
	OrderID       int64         `json:"order_id"`
	Status        PaymentStatus `json:"status"`
	ResultText    string        `json:"result_text"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Message       string        `json:"message"`
}
