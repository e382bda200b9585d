package service

import (
	"context"
	"testing"

	"eshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUp(t *testing.T) {
	store := newMemStore()
	svc := NewWalletService(store)
	user := store.addUser("alice", "alice@example.com", decimal.NewFromInt(100))

	balance, err := svc.TopUp(context.Background(), user.ID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(balance), "got %s", balance)
}

func TestTopUpRejectsNonPositiveAmount(t *testing.T) {
	store := newMemStore()
	svc := NewWalletService(store)
	user := store.addUser("alice", "alice@example.com", decimal.NewFromInt(100))

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		_, err := svc.TopUp(context.Background(), user.ID, amount)
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	}

	// Balance untouched by the rejected top-ups.
	balance, err := svc.GetBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(balance))
}

func TestTopUpUnknownUser(t *testing.T) {
	store := newMemStore()
	svc := NewWalletService(store)

	_, err := svc.TopUp(context.Background(), 9999, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetBalance(t *testing.T) {
	store := newMemStore()
	svc := NewWalletService(store)
	user := store.addUser("alice", "alice@example.com", decimal.NewFromFloat(12.34))

	balance, err := svc.GetBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(12.34).Equal(balance))
}
