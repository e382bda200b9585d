package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"eshop-backend/internal/models"
	"eshop-backend/internal/redisclient"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the sqlx store. It mirrors the
// contract of each store interface, including the error ordering inside
// payment settlement, so service tests exercise real failure paths.
type memStore struct {
	users    map[int64]*models.User
	products map[int64]*models.Product
	carts    map[int64]*models.Cart // keyed by customer id
	orders   map[int64]*models.Order
	payments map[int64]*models.Payment // keyed by order id
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		products: make(map[int64]*models.Product),
		carts:    make(map[int64]*models.Cart),
		orders:   make(map[int64]*models.Order),
		payments: make(map[int64]*models.Payment),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(username, email string, balance decimal.Decimal) *models.User {
	u := &models.User{
		ID:            m.id(),
		Username:      username,
		Email:         email,
		Role:          models.RoleCustomer,
		WalletBalance: balance,
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProduct(name string, price decimal.Decimal, stock int) *models.Product {
	p := &models.Product{
		ID:            m.id(),
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		CategoryID:    1,
		MerchantID:    1,
	}
	m.products[p.ID] = p
	return p
}

// UserStore

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	user.ID = m.id()
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
}

func (m *memStore) UserExists(_ context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreditWallet(_ context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	u.WalletBalance = u.WalletBalance.Add(amount)
	return u.WalletBalance, nil
}

// ProductStore

func (m *memStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProducts(_ context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListProductsByCategory(_ context.Context, categoryID int64) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		if p.CategoryID == categoryID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) CreateProduct(_ context.Context, product *models.Product) error {
	product.ID = m.id()
	m.products[product.ID] = product
	return nil
}

func (m *memStore) UpdateProduct(_ context.Context, product *models.Product) error {
	existing, ok := m.products[product.ID]
	if !ok || existing.MerchantID != product.MerchantID {
		return fmt.Errorf("product %d: %w", product.ID, models.ErrNotFound)
	}
	m.products[product.ID] = product
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, id, merchantID int64) error {
	existing, ok := m.products[id]
	if !ok || existing.MerchantID != merchantID {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) ListCategories(_ context.Context) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "default"}}, nil
}

func (m *memStore) CreateCategory(_ context.Context, category *models.Category) error {
	category.ID = m.id()
	return nil
}

// CartStore

func (m *memStore) GetCartByCustomerID(_ context.Context, customerID int64) (*models.Cart, error) {
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, fmt.Errorf("cart for customer %d: %w", customerID, models.ErrNotFound)
	}
	cp := *cart
	cp.Items = append([]models.CartItem(nil), cart.Items...)
	return &cp, nil
}

func (m *memStore) AddCartItem(_ context.Context, customerID, productID int64, quantity int) (*models.Cart, error) {
	product, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
	}

	cart, ok := m.carts[customerID]
	if !ok {
		cart = &models.Cart{ID: m.id(), CustomerID: customerID}
		m.carts[customerID] = cart
	}

	existing := 0
	idx := -1
	for i, item := range cart.Items {
		if item.ProductID == productID {
			existing = item.Quantity
			idx = i
			break
		}
	}

	if existing+quantity > product.StockQuantity {
		return nil, fmt.Errorf("only %d units of %q available: %w",
			product.StockQuantity, product.Name, models.ErrInsufficientStock)
	}

	if idx >= 0 {
		cart.Items[idx].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			ID:        m.id(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
		})
	}

	cart.RecomputeTotal()
	return m.GetCartByCustomerID(context.Background(), customerID)
}

func (m *memStore) UpdateCartItemQuantity(_ context.Context, customerID, productID int64, quantity int) (*models.Cart, error) {
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, fmt.Errorf("cart for customer %d: %w", customerID, models.ErrNotFound)
	}

	product, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
	}
	if quantity > product.StockQuantity {
		return nil, fmt.Errorf("only %d units of %q available: %w",
			product.StockQuantity, product.Name, models.ErrInsufficientStock)
	}

	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items[i].Quantity = quantity
			cart.RecomputeTotal()
			return m.GetCartByCustomerID(context.Background(), customerID)
		}
	}
	return nil, fmt.Errorf("product %d not in cart: %w", productID, models.ErrNotFound)
}

func (m *memStore) RemoveCartItem(_ context.Context, customerID, productID int64) error {
	cart, ok := m.carts[customerID]
	if !ok {
		return fmt.Errorf("cart for customer %d: %w", customerID, models.ErrNotFound)
	}
	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.RecomputeTotal()
			return nil
		}
	}
	return fmt.Errorf("product %d not in cart: %w", productID, models.ErrNotFound)
}

// OrderStore

func (m *memStore) CreateOrderFromCart(_ context.Context, order *models.Order) error {
	cart, ok := m.carts[order.UserID]
	if !ok || len(cart.Items) == 0 {
		return fmt.Errorf("no items to order: %w", models.ErrEmptyCart)
	}

	order.ID = m.id()
	order.Status = models.OrderStatusPendingPayment
	order.OrderDate = time.Now()
	order.TotalAmount = decimal.Zero
	for _, item := range cart.Items {
		line := item.LineTotal()
		order.Items = append(order.Items, models.OrderItem{
			ID:        m.id(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: line,
		})
		order.TotalAmount = order.TotalAmount.Add(line)
	}

	cart.Items = nil
	cart.RecomputeTotal()

	m.orders[order.ID] = order
	return nil
}

func (m *memStore) GetOrderByID(_ context.Context, orderID, userID int64) (*models.Order, error) {
	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	cp := *order
	return &cp, nil
}

func (m *memStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	for _, order := range m.orders {
		if order.IdempotencyKey == key {
			cp := *order
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetOrdersByUserID(_ context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) DeleteOrder(_ context.Context, orderID, userID int64) error {
	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if order.Status != models.OrderStatusPendingPayment {
		return models.ErrOrderNotCancellable
	}
	delete(m.orders, orderID)
	return nil
}

// PaymentStore

func (m *memStore) SettlePayment(_ context.Context, orderID int64, amount decimal.Decimal, mode string) (*models.Payment, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	user, ok := m.users[order.UserID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", order.UserID, models.ErrNotFound)
	}
	if !amount.Equal(order.TotalAmount) {
		return nil, fmt.Errorf("expected %s, got %s: %w",
			order.TotalAmount, amount, models.ErrAmountMismatch)
	}
	if !models.ValidPaymentMode(mode) {
		return nil, fmt.Errorf("mode %q: %w", mode, models.ErrInvalidPaymentMode)
	}
	if order.Status != models.OrderStatusPendingPayment {
		return nil, models.ErrOrderNotPayable
	}

	for _, item := range order.Items {
		product, ok := m.products[item.ProductID]
		if !ok || product.StockQuantity < item.Quantity {
			name := fmt.Sprintf("product %d", item.ProductID)
			if ok {
				name = product.Name
			}
			return nil, fmt.Errorf("%s is out of stock: %w", name, models.ErrInsufficientStock)
		}
	}

	if mode == models.PaymentModeWallet {
		if user.WalletBalance.LessThan(order.TotalAmount) {
			return nil, fmt.Errorf("balance %s below %s: %w",
				user.WalletBalance, order.TotalAmount, models.ErrInsufficientFunds)
		}
		user.WalletBalance = user.WalletBalance.Sub(order.TotalAmount)
	}

	for _, item := range order.Items {
		m.products[item.ProductID].StockQuantity -= item.Quantity
	}

	order.Status = models.OrderStatusPaid
	payment := &models.Payment{
		ID:          m.id(),
		OrderID:     orderID,
		UserID:      order.UserID,
		Amount:      amount,
		Mode:        mode,
		Status:      models.PaymentStatusCompleted,
		PaymentDate: time.Now(),
	}
	m.payments[orderID] = payment
	cp := *payment
	return &cp, nil
}

func (m *memStore) GetPaymentByOrderID(_ context.Context, orderID int64) (*models.Payment, error) {
	payment, ok := m.payments[orderID]
	if !ok {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, models.ErrNotFound)
	}
	cp := *payment
	return &cp, nil
}

// fakePublisher records published events and can be forced to fail.
type fakePublisher struct {
	events []interface{}
	err    error
}

func (p *fakePublisher) publish(event interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	return p.publish(event)
}

func (p *fakePublisher) PublishOrderCancelled(_ context.Context, event *models.OrderCancelledEvent) error {
	return p.publish(event)
}

func (p *fakePublisher) PublishPaymentCompleted(_ context.Context, event *models.PaymentCompletedEvent) error {
	return p.publish(event)
}

func (p *fakePublisher) PublishUserRegistered(_ context.Context, event *models.UserRegisteredEvent) error {
	return p.publish(event)
}

// fakeCache is an in-memory CartCache.
type fakeCache struct {
	carts map[int64]*models.Cart
}

func newFakeCache() *fakeCache {
	return &fakeCache{carts: make(map[int64]*models.Cart)}
}

func (c *fakeCache) GetCart(_ context.Context, customerID int64) (*models.Cart, error) {
	cart, ok := c.carts[customerID]
	if !ok {
		return nil, redisclient.ErrCacheMiss
	}
	cp := *cart
	cp.Items = append([]models.CartItem(nil), cart.Items...)
	return &cp, nil
}

func (c *fakeCache) SetCart(_ context.Context, customerID int64, cart *models.Cart) error {
	c.carts[customerID] = cart
	return nil
}

func (c *fakeCache) DeleteCart(_ context.Context, customerID int64) error {
	delete(c.carts, customerID)
	return nil
}

// fakeLocker grants or denies every lock.
type fakeLocker struct {
	denied bool
}

func (l *fakeLocker) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return !l.denied, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, _ string) error {
	return nil
}
