package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eshop-backend/internal/models"

	"github.com/shopspring/decimal"
)

// CreateUser inserts a new user and fills in the generated fields.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, wallet_balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, user, query,
		user.Username, user.Email, user.PasswordHash, user.Role, user.WalletBalance)
	return storageErr(err)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE username = $1", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &user, nil
}

// UserExists reports whether a username is already taken.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username)
	return exists, storageErr(err)
}

// CreditWallet atomically adds amount to the user's wallet balance and
// returns the new balance. The user row is locked for the duration so a
// concurrent settlement cannot read a stale balance.
func (s *Store) CreditWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, storageErr(err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.GetContext(ctx, &balance,
		"SELECT wallet_balance FROM users WHERE id = $1 FOR UPDATE", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, storageErr(err)
	}

	balance = balance.Add(amount)
	_, err = tx.ExecContext(ctx,
		"UPDATE users SET wallet_balance = $1 WHERE id = $2", balance, userID)
	if err != nil {
		return decimal.Zero, storageErr(err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, storageErr(err)
	}
	return balance, nil
}
