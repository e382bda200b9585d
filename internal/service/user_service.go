package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"eshop-backend/internal/auth"
	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserService handles registration, login and profile reads.
type UserService struct {
	users     UserStore
	tokens    *auth.Manager
	publisher EventPublisher
	logger    *zap.Logger
}

func NewUserService(users UserStore, tokens *auth.Manager, publisher EventPublisher) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// RegisterRequest carries the registration input.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

// Register creates a new account with a hashed password and publishes the
// welcome event.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Register")
	defer span.End()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToLower(req.Role)

	if req.Username == "" {
		return nil, fmt.Errorf("username is required: %w", models.ErrInvalidInput)
	}
	if !emailRe.MatchString(req.Email) {
		return nil, fmt.Errorf("invalid email address: %w", models.ErrInvalidInput)
	}
	if role != models.RoleCustomer && role != models.RoleMerchant {
		return nil, fmt.Errorf("role must be either %q or %q: %w",
			models.RoleCustomer, models.RoleMerchant, models.ErrInvalidInput)
	}

	taken, err := s.users.UserExists(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("username %q already exists: %w", req.Username, models.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  string(hash),
		Role:          role,
		WalletBalance: decimal.Zero,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", user.ID), zap.String("role", user.Role))

	event := &models.UserRegisteredEvent{
		BaseEvent: newBaseEvent(models.EventTypeUserRegistered),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
	}
	if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Error("Failed to publish UserRegistered event", zap.Error(err))
	}

	return user, nil
}

// Login verifies credentials and returns a signed token plus the user.
// Wrong username and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Login")
	defer span.End()

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("invalid username or password: %w", models.ErrNotFound)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, fmt.Errorf("invalid username or password: %w", models.ErrNotFound)
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GetProfile returns the user record.
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
