package service

import (
	"context"
	"fmt"

	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletService credits and reads the stored-value balance on the user
// record. Debits happen only inside payment settlement.
type WalletService struct {
	users  UserStore
	logger *zap.Logger
}

func NewWalletService(users UserStore) *WalletService {
	return &WalletService{users: users, logger: util.GetLogger()}
}

// TopUp credits the user's wallet and returns the new balance. The credit is
// unbounded; only non-positive amounts are rejected.
func (s *WalletService) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.TopUp")
	defer span.End()

	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("top-up of %s rejected: %w", amount, models.ErrInvalidAmount)
	}

	balance, err := s.users.CreditWallet(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}

	util.WalletTopUpsTotal.Inc()
	s.logger.Info("Wallet topped up",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("balance", balance.String()))
	return balance, nil
}

// GetBalance returns the user's current wallet balance.
func (s *WalletService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.GetBalance")
	defer span.End()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}
