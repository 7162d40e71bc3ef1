package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func futureDate() string {
	return time.Now().UTC().AddDate(0, 0, 7).Format(DateLayout)
}

func validCartItemRequest() CartItemRequest {
	return CartItemRequest{
		ServiceID:   "excursion-1",
		ServiceType: ServiceTypeExcursion,
		Date:        futureDate(),
		Time:        "10:00",
		Title:       "Old Town Walk",
		Options: []CartItemOptionRequest{
			{PriceType: "adult", CategoryTitle: "Adult", BasePrice: decimal.RequireFromString("25.00"), CurrentPrice: decimal.RequireFromString("20.00"), Quantity: 2},
			{PriceType: "child", CategoryTitle: "Child", BasePrice: decimal.RequireFromString("10.50"), CurrentPrice: decimal.RequireFromString("10.50"), Quantity: 1},
		},
	}
}

func TestCartIdentity_Validate(t *testing.T) {
	userID := int64(7)
	zero := int64(0)

	tests := []struct {
		name     string
		identity CartIdentity
		wantErr  bool
	}{
		{name: "user only", identity: CartIdentity{UserID: &userID}},
		{name: "guest only", identity: CartIdentity{GuestSessionID: "abc"}},
		{name: "both", identity: CartIdentity{UserID: &userID, GuestSessionID: "abc"}, wantErr: true},
		{name: "neither", identity: CartIdentity{}, wantErr: true},
		{name: "zero user id", identity: CartIdentity{UserID: &zero}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.identity.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCartItemRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CartItemRequest)
		wantErr bool
		errMsg  string
	}{
		{name: "valid request", mutate: func(r *CartItemRequest) {}},
		{
			name:    "missing service id",
			mutate:  func(r *CartItemRequest) { r.ServiceID = "" },
			wantErr: true,
			errMsg:  "ServiceID",
		},
		{
			name:    "unknown service type",
			mutate:  func(r *CartItemRequest) { r.ServiceType = "HOTEL" },
			wantErr: true,
			errMsg:  "ServiceType",
		},
		{
			name:    "date in the past",
			mutate:  func(r *CartItemRequest) { r.Date = "2001-01-01" },
			wantErr: true,
			errMsg:  "actualdate",
		},
		{
			name:    "malformed date",
			mutate:  func(r *CartItemRequest) { r.Date = "01.02.2030" },
			wantErr: true,
			errMsg:  "Date",
		},
		{
			name:    "no options",
			mutate:  func(r *CartItemRequest) { r.Options = nil },
			wantErr: true,
			errMsg:  "Options",
		},
		{
			name:    "negative quantity",
			mutate:  func(r *CartItemRequest) { r.Options[0].Quantity = -1 },
			wantErr: true,
			errMsg:  "Quantity",
		},
		{
			name:    "negative price",
			mutate:  func(r *CartItemRequest) { r.Options[1].CurrentPrice = decimal.RequireFromString("-1") },
			wantErr: true,
			errMsg:  "cannot be negative",
		},
		{
			name: "sub-cent price",
			mutate: func(r *CartItemRequest) {
				r.Options[0].BasePrice = decimal.RequireFromString("0.005")
				r.Options[0].CurrentPrice = decimal.RequireFromString("0.005")
			},
			wantErr: true,
			errMsg:  "at most 2 decimal places",
		},
		{
			name:    "trailing zero decimals",
			mutate:  func(r *CartItemRequest) { r.Options[0].BasePrice = decimal.RequireFromString("25.500") },
			wantErr: false,
		},
		{
			name:    "duplicate price type",
			mutate:  func(r *CartItemRequest) { r.Options[1].PriceType = "adult" },
			wantErr: true,
			errMsg:  "duplicate price type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCartItemRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCartItemRequest_ToCartItem(t *testing.T) {
	req := validCartItemRequest()

	item, err := req.ToCartItem()
	require.NoError(t, err)

	assert.Equal(t, "excursion-1", item.ServiceID)
	assert.Len(t, item.Options, 2)
	assert.True(t, item.Options[0].TotalBasePrice.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, item.Options[0].TotalCurrentPrice.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, item.TotalBasePrice.Equal(decimal.RequireFromString("60.50")))
	assert.True(t, item.TotalCurrentPrice.Equal(decimal.RequireFromString("50.50")))
	assert.Equal(t, req.Date, item.Key().Date)
}

func TestCart_RecalculateTotals(t *testing.T) {
	cart := &Cart{
		TotalBasePrice:    decimal.RequireFromString("999"),
		TotalCurrentPrice: decimal.RequireFromString("999"),
		Items: []*CartItem{
			{ID: 1, TotalBasePrice: decimal.RequireFromString("60.50"), TotalCurrentPrice: decimal.RequireFromString("50.50")},
			{ID: 2, TotalBasePrice: decimal.RequireFromString("10"), TotalCurrentPrice: decimal.RequireFromString("9.99")},
		},
	}

	totals := cart.RecalculateTotals()

	assert.True(t, cart.TotalBasePrice.Equal(decimal.RequireFromString("70.50")))
	assert.True(t, cart.TotalCurrentPrice.Equal(decimal.RequireFromString("60.49")))
	assert.True(t, totals.Discount().Equal(decimal.RequireFromString("10.01")))
	assert.NotNil(t, cart.FindItem(2))
	assert.Nil(t, cart.FindItem(3))

	cart.Items = nil
	cart.RecalculateTotals()
	assert.True(t, cart.TotalBasePrice.IsZero())
	assert.True(t, cart.IsEmpty())
}
