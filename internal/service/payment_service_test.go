package service

import (
	"context"
	"testing"
	"time"

	"eshop-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	svc       *PaymentService
	store     *memStore
	publisher *fakePublisher
	locker    *fakeLocker
	customer  *models.User
	product   *models.Product
	order     *models.Order
}

// newPaymentFixture sets up a customer with the given wallet balance and a
// placed order of 2 x 75 = 150 awaiting payment.
func newPaymentFixture(t *testing.T, balance decimal.Decimal) *paymentFixture {
	t.Helper()
	store := newMemStore()
	publisher := &fakePublisher{}
	locker := &fakeLocker{}

	customer := store.addUser("alice", "alice@example.com", balance)
	product := store.addProduct("Headphones", decimal.NewFromInt(75), 10)

	ctx := context.Background()
	_, err := store.AddCartItem(ctx, customer.ID, product.ID, 2)
	require.NoError(t, err)

	order := &models.Order{
		UserID:          customer.ID,
		ShippingAddress: "221B Baker Street, London",
		PinCode:         "560001",
	}
	require.NoError(t, store.CreateOrderFromCart(ctx, order))

	return &paymentFixture{
		svc:       NewPaymentService(store, store, publisher, locker, 5*time.Second),
		store:     store,
		publisher: publisher,
		locker:    locker,
		customer:  customer,
		product:   product,
		order:     order,
	}
}

func TestMakePaymentWallet(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))

	result, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, models.PaymentModeWallet, result.Payment.Mode)
	assert.True(t, result.NotificationSent)
	assert.Empty(t, result.NotificationWarning)

	// 200 - 150 leaves 50 in the wallet.
	assert.True(t, decimal.NewFromInt(50).Equal(f.store.users[f.customer.ID].WalletBalance))
	assert.Equal(t, models.OrderStatusPaid, f.store.orders[f.order.ID].Status)
	assert.Equal(t, 8, f.store.products[f.product.ID].StockQuantity)

	require.Len(t, f.publisher.events, 1)
	completed, ok := f.publisher.events[0].(*models.PaymentCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, f.order.ID, completed.OrderID)
	assert.Equal(t, "alice@example.com", completed.Email)
}

func TestMakePaymentCODLeavesWalletAlone(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(10))

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeCOD,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10).Equal(f.store.users[f.customer.ID].WalletBalance))
	assert.Equal(t, models.OrderStatusPaid, f.store.orders[f.order.ID].Status)
}

func TestMakePaymentAmountMismatch(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(100),
		Mode:    models.PaymentModeWallet,
	})
	assert.ErrorIs(t, err, models.ErrAmountMismatch)

	// Nothing moved.
	assert.True(t, decimal.NewFromInt(200).Equal(f.store.users[f.customer.ID].WalletBalance))
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.orders[f.order.ID].Status)
	assert.Equal(t, 10, f.store.products[f.product.ID].StockQuantity)
	assert.Empty(t, f.publisher.events)
}

func TestMakePaymentInvalidMode(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    "Bitcoin",
	})
	assert.ErrorIs(t, err, models.ErrInvalidPaymentMode)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.orders[f.order.ID].Status)
}

func TestMakePaymentInsufficientFunds(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(100))

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	// Balance and stock untouched.
	assert.True(t, decimal.NewFromInt(100).Equal(f.store.users[f.customer.ID].WalletBalance))
	assert.Equal(t, 10, f.store.products[f.product.ID].StockQuantity)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.orders[f.order.ID].Status)
}

func TestMakePaymentStockRanOut(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))

	// Stock sold out between order placement and settlement.
	f.store.products[f.product.ID].StockQuantity = 1

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	// The wallet was not debited before the stock check failed.
	assert.True(t, decimal.NewFromInt(200).Equal(f.store.users[f.customer.ID].WalletBalance))
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.orders[f.order.ID].Status)
}

func TestMakePaymentUnknownOrder(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: 9999,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: 0,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMakePaymentAlreadyPaid(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(400))

	req := &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	}
	_, err := f.svc.MakePayment(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.MakePayment(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	// Only the first settlement debited the wallet.
	assert.True(t, decimal.NewFromInt(250).Equal(f.store.users[f.customer.ID].WalletBalance))
}

func TestMakePaymentConcurrentAttemptRejected(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))
	f.locker.denied = true

	_, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	assert.ErrorIs(t, err, models.ErrTransientStorage)
	assert.Equal(t, models.OrderStatusPendingPayment, f.store.orders[f.order.ID].Status)
}

func TestMakePaymentPublishFailureIsWarning(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))
	f.publisher.err = assert.AnError

	result, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeWallet,
	})
	require.NoError(t, err)

	assert.False(t, result.NotificationSent)
	assert.NotEmpty(t, result.NotificationWarning)

	// The settlement itself stands.
	assert.Equal(t, models.OrderStatusPaid, f.store.orders[f.order.ID].Status)
	assert.True(t, decimal.NewFromInt(50).Equal(f.store.users[f.customer.ID].WalletBalance))
}

func TestGetPaymentByOrder(t *testing.T) {
	f := newPaymentFixture(t, decimal.NewFromInt(200))

	_, err := f.svc.GetPaymentByOrder(context.Background(), f.order.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	result, err := f.svc.MakePayment(context.Background(), &MakePaymentRequest{
		OrderID: f.order.ID,
		Amount:  decimal.NewFromInt(150),
		Mode:    models.PaymentModeCreditCard,
	})
	require.NoError(t, err)

	payment, err := f.svc.GetPaymentByOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Payment.ID, payment.ID)
	assert.Equal(t, models.PaymentModeCreditCard, payment.Mode)
}
