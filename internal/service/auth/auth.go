package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/task"
	"marketplace/pkg/log"
	"marketplace/pkg/utils"
)

// TaskDispatcher is the slice of the task pipeline the service needs.
type TaskDispatcher interface {
	TryEnqueue(ctx context.Context, taskName string, payload interface{})
}

// RegisterRequest signup input.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
}

// LoginRequest login input.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Service implements registration and login.
type Service struct {
	users      repository.UserRepository
	tokens     *TokenManager
	dispatcher TaskDispatcher
}

// NewService creates an auth service.
func NewService(users repository.UserRepository, tokens *TokenManager, dispatcher TaskDispatcher) *Service {
	return &Service{users: users, tokens: tokens, dispatcher: dispatcher}
}

// Register creates a customer account and queues the welcome email.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to hash password")
	}

	user := &model.User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Phone:          req.Phone,
		Role:           model.RoleCustomer,
		IsActive:       true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewError(utils.CodeConflict, "email or username already registered")
		}
		return nil, err
	}

	s.dispatcher.TryEnqueue(ctx, task.TaskSendWelcomeEmail, task.WelcomeEmailPayload{UserID: user.ID})

	log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return user, nil
}

// Login verifies credentials and issues tokens.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*model.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NewError(utils.CodeUnauthorized, "invalid email or password")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, nil, utils.NewError(utils.CodeUnauthorized, "invalid email or password")
	}
	if !user.IsActive {
		return nil, nil, utils.NewError(utils.CodeForbidden, "account is disabled")
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, utils.WrapError(err, utils.CodeInternalError, "failed to issue tokens")
	}
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.Refresh {
		return nil, utils.NewError(utils.CodeUnauthorized, "not a refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, utils.NewError(utils.CodeForbidden, "account is disabled")
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to issue tokens")
	}
	return tokens, nil
}

// CurrentUser resolves an access token to its user.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Refresh {
		return nil, utils.NewError(utils.CodeUnauthorized, "refresh token cannot be used for access")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, utils.NewError(utils.CodeForbidden, "account is disabled")
	}
	return user, nil
}
