package service

import (
	"context"
	"fmt"

	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService is the merchant-facing product catalog: plain CRUD with an
// ownership check on mutations. Stock decrements happen only inside payment
// settlement.
type CatalogService struct {
	products ProductStore
	logger   *zap.Logger
}

func NewCatalogService(products ProductStore) *CatalogService {
	return &CatalogService{products: products, logger: util.GetLogger()}
}

// ProductRequest carries the product create/update input.
type ProductRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CategoryID    int64           `json:"category_id" binding:"required"`
}

func (r *ProductRequest) validate() error {
	if r.Name == "" {
		return fmt.Errorf("product name is required: %w", models.ErrInvalidInput)
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("price must not be negative: %w", models.ErrInvalidInput)
	}
	if r.StockQuantity < 0 {
		return fmt.Errorf("stock quantity must not be negative: %w", models.ErrInvalidInput)
	}
	return nil
}

// CreateProduct adds a product owned by merchantID.
func (s *CatalogService) CreateProduct(ctx context.Context, merchantID int64, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		CategoryID:    req.CategoryID,
		MerchantID:    merchantID,
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID), zap.Int64("merchant_id", merchantID))
	return product, nil
}

// UpdateProduct overwrites a product the merchant owns.
func (s *CatalogService) UpdateProduct(ctx context.Context, merchantID, productID int64, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:            productID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		CategoryID:    req.CategoryID,
		MerchantID:    merchantID,
	}
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return s.products.GetProductByID(ctx, productID)
}

// DeleteProduct removes a product the merchant owns.
func (s *CatalogService) DeleteProduct(ctx context.Context, merchantID, productID int64) error {
	return s.products.DeleteProduct(ctx, productID, merchantID)
}

// GetProduct retrieves one product.
func (s *CatalogService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	return s.products.GetProductByID(ctx, productID)
}

// ListProducts retrieves the whole catalog.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.ListProducts(ctx)
}

// ListProductsByCategory retrieves all products in one category.
func (s *CatalogService) ListProductsByCategory(ctx context.Context, categoryID int64) ([]models.Product, error) {
	return s.products.ListProductsByCategory(ctx, categoryID)
}

// ListCategories retrieves all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.products.ListCategories(ctx)
}

// CreateCategory adds a category (idempotent on name).
func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required: %w", models.ErrInvalidInput)
	}
	category := &models.Category{Name: name}
	if err := s.products.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}
