package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
)

type AuthService interface {
	Login(email, password string) (*LoginResponse, error)
	ResetPassword(email, oldPassword, newPassword string) error
	SetPassword(email, newPassword string) error
	ValidateToken(tokenString string) (*model.User, error)
	EnsureAdmin(email, password, fullName string) (bool, error)
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	signer   *jwt.Signer
	now      func() time.Time
	logger   *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, signer *jwt.Signer, logger *zap.Logger) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{
		userRepo: userRepo,
		signer:   signer,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *authService) Login(email, password string) (*LoginResponse, error) {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Single session: a new token version invalidates older tokens
	newTokenVersion := uuid.New().String()
	if err := s.userRepo.UpdateTokenVersion(user.ID, newTokenVersion); err != nil {
		return nil, errors.New("failed to update session")
	}
	now := s.now()
	if err := s.userRepo.UpdateLastSeen(user.ID, now); err != nil {
		s.logger.Warn("last seen not updated", zap.String("user", user.Email), zap.Error(err))
	}
	user.TokenVersion = newTokenVersion
	user.LastSeenAt = &now

	// 5. Generate JWT token with TokenVersion
	token, err := s.signer.GenerateToken(user.ID, user.Email, user.FullName, string(user.Role), newTokenVersion)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	s.logger.Info("user logged in", zap.String("user", user.Email), zap.String("role", string(user.Role)))
	return &LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

func (s *authService) ResetPassword(email, oldPassword, newPassword string) error {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return ErrUserNotFound
	}

	// 2. Verify old password
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}

	return s.storePassword(user, newPassword)
}

// SetPassword is the admin path used by the reset CLI; no old password.
func (s *authService) SetPassword(email, newPassword string) error {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return ErrUserNotFound
	}
	return s.storePassword(user, newPassword)
}

func (s *authService) storePassword(user *model.User, newPassword string) error {
	if len(newPassword) < 6 {
		return errors.New("new password must have at least 6 characters")
	}
	if err := user.SetPassword(newPassword); err != nil {
		return errors.New("failed to hash new password")
	}
	if err := s.userRepo.UpdatePassword(user.ID, user.Password); err != nil {
		return err
	}
	// Invalidate existing sessions
	return s.userRepo.UpdateTokenVersion(user.ID, uuid.New().String())
}

func (s *authService) ValidateToken(tokenString string) (*model.User, error) {
	// 1. Validate JWT token
	claims, err := s.signer.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	// 2. Find user by ID from token claims
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// 3. Check if user is still active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 4. Strict session
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	return user, nil
}

// EnsureAdmin creates the first admin account when it does not exist yet.
// It reports whether a user was created.
func (s *authService) EnsureAdmin(email, password, fullName string) (bool, error) {
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return false, nil
	}
	admin := &model.User{
		Email:    email,
		FullName: fullName,
		Role:     model.RoleAdmin,
		IsActive: true,
	}
	if err := admin.SetPassword(password); err != nil {
		return false, err
	}
	admin.Stamp("seed")
	if err := s.userRepo.Create(admin); err != nil {
		return false, err
	}
	s.logger.Info("admin user seeded", zap.String("email", email))
	return true, nil
}
