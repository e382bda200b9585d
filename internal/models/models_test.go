package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecomputeTotal(t *testing.T) {
	cart := &Cart{
		TotalPrice: decimal.NewFromInt(9999), // stale stored value
		Items: []CartItem{
			{ProductID: 1, Quantity: 2, Price: decimal.NewFromFloat(10.50)},
			{ProductID: 2, Quantity: 1, Price: decimal.NewFromInt(5)},
		},
	}

	cart.RecomputeTotal()
	assert.True(t, decimal.NewFromInt(26).Equal(cart.TotalPrice), "got %s", cart.TotalPrice)

	cart.Items = nil
	cart.RecomputeTotal()
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestValidPaymentMode(t *testing.T) {
	assert.True(t, ValidPaymentMode(PaymentModeWallet))
	assert.True(t, ValidPaymentMode(PaymentModeCreditCard))
	assert.True(t, ValidPaymentMode(PaymentModeCOD))
	assert.False(t, ValidPaymentMode("wallet"), "modes are case sensitive")
	assert.False(t, ValidPaymentMode(""))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(ErrNotFound))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", ErrInsufficientFunds)))
	assert.True(t, IsPermanent(ErrOrderNotCancellable))
	assert.False(t, IsPermanent(ErrTransientStorage))
	assert.False(t, IsPermanent(errors.New("plain")))
}

func TestRefinedErrorsMatchInvalidInput(t *testing.T) {
	for _, err := range []error{ErrInvalidAmount, ErrOrderNotCancellable, ErrOrderNotPayable} {
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}
