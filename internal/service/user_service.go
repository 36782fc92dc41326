package service

import (
	"errors"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmailExists = errors.New("email already exists")
)

// UserService is the admin surface for field accounts.
type UserService interface {
	CreateUser(req *CreateUserRequest, creator string) (*model.User, error)
	UpdateUser(userID uuid.UUID, req *UpdateUserRequest, updater string) (*model.User, error)
	GetAllUsers() ([]model.UserResponse, error)
	GetUserByID(id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	FullName string     `json:"full_name" validate:"required"`
	Role     model.Role `json:"role" validate:"omitempty,oneof=ADMIN OPERATOR"`
}

type UpdateUserRequest struct {
	FullName string     `json:"full_name" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=ADMIN OPERATOR"`
	IsActive *bool      `json:"is_active"`
	Password *string    `json:"password,omitempty" validate:"omitempty,min=6"`
}

type userService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, logger *zap.Logger) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{userRepo: userRepo, logger: logger}
}

func (s *userService) CreateUser(req *CreateUserRequest, creator string) (*model.User, error) {
	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Email is the login key
	if existing, _ := s.userRepo.FindByEmail(req.Email); existing != nil {
		return nil, apperr.Conflict("%s", ErrEmailExists.Error())
	}

	// 3. Operators unless told otherwise
	role := req.Role
	if role == "" {
		role = model.RoleOperator
	}
	user := &model.User{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     role,
		IsActive: true,
	}
	user.Stamp(creator)
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}

	// 4. Save
	if err := s.userRepo.Create(user); err != nil {
		return nil, apperr.Classify(err)
	}
	s.logger.Info("user created", zap.String("email", user.Email), zap.String("role", string(role)), zap.String("by", creator))
	return user, nil
}

func (s *userService) UpdateUser(userID uuid.UUID, req *UpdateUserRequest, updater string) (*model.User, error) {
	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Find existing user
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, apperr.NotFound("user", userID.String())
	}

	// 3. Apply fields
	user.FullName = req.FullName
	user.Role = req.Role
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, errors.New("failed to hash password")
		}
		// A changed password or deactivation ends open sessions
		user.TokenVersion = uuid.New().String()
	}
	if !user.IsActive {
		user.TokenVersion = uuid.New().String()
	}
	user.UpdatedBy = updater

	// 4. Save
	if err := s.userRepo.Update(user); err != nil {
		return nil, apperr.Classify(err)
	}
	s.logger.Info("user updated", zap.String("email", user.Email), zap.String("by", updater))
	return user, nil
}

func (s *userService) GetAllUsers() ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll()
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, apperr.NotFound("user", id.String())
	}
	response := user.ToResponse()
	return &response, nil
}
