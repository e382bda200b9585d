package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eshop-backend/internal/models"
)

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, storageErr(err)
}

// ListProductsByCategory retrieves all products in a category
func (s *Store) ListProductsByCategory(ctx context.Context, categoryID int64) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE category_id = $1 ORDER BY id", categoryID)
	return products, storageErr(err)
}

// CreateProduct inserts a new product owned by its merchant.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock_quantity, category_id, merchant_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, product, query,
		product.Name, product.Description, product.Price, product.StockQuantity,
		product.CategoryID, product.MerchantID)
	return storageErr(err)
}

// UpdateProduct updates a product if it is owned by merchantID.
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock_quantity = $4,
		    category_id = $5, updated_at = NOW()
		WHERE id = $6 AND merchant_id = $7`,
		product.Name, product.Description, product.Price, product.StockQuantity,
		product.CategoryID, product.ID, product.MerchantID)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", product.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteProduct removes a product if it is owned by merchantID.
func (s *Store) DeleteProduct(ctx context.Context, id, merchantID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM products WHERE id = $1 AND merchant_id = $2", id, merchantID)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY id")
	return categories, storageErr(err)
}

// CreateCategory inserts a category, returning the existing row's id on
// duplicate names.
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	err := s.db.GetContext(ctx, &category.ID, query, category.Name)
	return storageErr(err)
}
