package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"eshop-backend/internal/auth"
	"eshop-backend/internal/models"
	"eshop-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	users    *service.UserService
	catalog  *service.CatalogService
	carts    *service.CartService
	orders   *service.OrderService
	payments *service.PaymentService
	wallet   *service.WalletService
	tokens   *auth.Manager
}

// NewHandler creates a new HTTP handler
func NewHandler(
	users *service.UserService,
	catalog *service.CatalogService,
	carts *service.CartService,
	orders *service.OrderService,
	payments *service.PaymentService,
	wallet *service.WalletService,
	tokens *auth.Manager,
) *Handler {
	return &Handler{
		users:    users,
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		payments: payments,
		wallet:   wallet,
		tokens:   tokens,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users/register", h.register)
		v1.POST("/users/login", h.login)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.listCategories)
		v1.GET("/categories/:id/products", h.listProductsByCategory)

		merchant := v1.Group("", authRequired(h.tokens, models.RoleMerchant))
		{
			merchant.POST("/products", h.createProduct)
			merchant.PUT("/products/:id", h.updateProduct)
			merchant.DELETE("/products/:id", h.deleteProduct)
			merchant.POST("/categories", h.createCategory)
		}

		customer := v1.Group("", authRequired(h.tokens, models.RoleCustomer))
		{
			customer.GET("/profile", h.getProfile)

			customer.POST("/cart/items", h.addToCart)
			customer.PUT("/cart/items", h.updateCartQuantity)
			customer.DELETE("/cart/items/:productId", h.removeFromCart)
			customer.GET("/cart", h.getCartDetails)
			customer.GET("/cart/total", h.getCartTotal)

			customer.POST("/orders", h.placeOrder)
			customer.GET("/orders", h.getOrders)
			customer.GET("/orders/:id", h.getOrder)
			customer.DELETE("/orders/:id", h.deleteOrder)

			customer.POST("/payments", h.makePayment)
			customer.GET("/payments/:orderId", h.getPaymentByOrder)

			customer.POST("/wallet/top-up", h.topUpWallet)
			customer.GET("/wallet/balance", h.getWalletBalance)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// writeError maps domain errors to HTTP statuses. Permanent validation
// rejections are 4xx, transient storage failures are 503 (safe to retry),
// anything unknown is a generic 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case models.IsPermanent(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrTransientStorage):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temporary failure, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// --- users ---

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	token, user, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) getProfile(c *gin.Context) {
	principal := currentPrincipal(c)
	user, err := h.users.GetProfile(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- catalog ---

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) listProductsByCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	products, err := h.catalog.ListProductsByCategory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	principal := currentPrincipal(c)
	product, err := h.catalog.CreateProduct(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	principal := currentPrincipal(c)
	product, err := h.catalog.UpdateProduct(c.Request.Context(), principal.UserID, id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	principal := currentPrincipal(c)
	if err := h.catalog.DeleteProduct(c.Request.Context(), principal.UserID, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// --- cart ---

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addToCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	principal := currentPrincipal(c)
	total, err := h.carts.AddItem(c.Request.Context(), principal.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Product added to cart successfully",
		"total_price": total,
	})
}

func (h *Handler) updateCartQuantity(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	principal := currentPrincipal(c)
	total, err := h.carts.UpdateQuantity(c.Request.Context(), principal.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Quantity updated successfully",
		"total_price": total,
	})
}

func (h *Handler) removeFromCart(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	principal := currentPrincipal(c)
	if err := h.carts.RemoveItem(c.Request.Context(), principal.UserID, productID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product removed from cart successfully"})
}

func (h *Handler) getCartDetails(c *gin.Context) {
	principal := currentPrincipal(c)
	cart, err := h.carts.GetDetails(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) getCartTotal(c *gin.Context) {
	principal := currentPrincipal(c)
	total, err := h.carts.GetTotal(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_amount": total})
}

// --- orders ---

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	principal := currentPrincipal(c)
	req.UserID = principal.UserID
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully. Proceed to payment.",
		"order":   order,
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	principal := currentPrincipal(c)
	order, err := h.orders.GetOrder(c.Request.Context(), orderID, principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getOrders(c *gin.Context) {
	principal := currentPrincipal(c)
	orders, err := h.orders.GetOrdersByUser(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	principal := currentPrincipal(c)
	if err := h.orders.DeleteOrder(c.Request.Context(), orderID, principal.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Your order has been successfully cancelled"})
}

// --- payments ---

func (h *Handler) makePayment(c *gin.Context) {
	var req service.MakePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.payments.MakePayment(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"message": "Payment successful", "payment": result.Payment}
	if !result.NotificationSent {
		resp["warning"] = result.NotificationWarning
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPaymentByOrder(c *gin.Context) {
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	payment, err := h.payments.GetPaymentByOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// --- wallet ---

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) topUpWallet(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	principal := currentPrincipal(c)
	balance, err := h.wallet.TopUp(c.Request.Context(), principal.UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Wallet top-up successful",
		"wallet_balance": balance,
	})
}

func (h *Handler) getWalletBalance(c *gin.Context) {
	principal := currentPrincipal(c)
	balance, err := h.wallet.GetBalance(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet_balance": balance})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
