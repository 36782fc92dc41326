package handler

import (
	"errors"

	"go-fundo-ops/internal/service"
	"go-fundo-ops/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	auth service.AuthService
}

func NewAuthHandler(auth service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// parseAuthBody decodes and validates an auth request. It writes the 400
// response itself and reports whether the handler may continue.
func parseAuthBody(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, badRequest(c, "Invalid JSON")
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return false, badRequest(c, validator.Message(errs))
	}
	return true, nil
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := parseAuthBody(c, &req); !ok {
		return err
	}

	resp, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		return unauthorized(c, err)
	}
	return c.JSON(resp)
}

// ResetPassword changes the caller's password and ends every open session.
// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if ok, err := parseAuthBody(c, &req); !ok {
		return err
	}

	if err := h.auth.ResetPassword(req.Email, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrWrongPassword) {
			return unauthorized(c, err)
		}
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"message": "Password updated, please log in again"})
}

// POST /api/v1/auth/validate-token
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	var req TokenRequest
	if ok, err := parseAuthBody(c, &req); !ok {
		return err
	}

	user, err := h.auth.ValidateToken(req.Token)
	if err != nil {
		return unauthorized(c, err)
	}
	return c.JSON(fiber.Map{"user": user.ToResponse()})
}

// Me echoes the identity the auth middleware attached to the request.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"id":        getUserID(c),
		"email":     c.Locals("user_email"),
		"full_name": c.Locals("user_name"),
		"role":      c.Locals("user_role"),
	})
}

func unauthorized(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
}
