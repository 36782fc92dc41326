package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenAuth accepts the tokens it knows about.
type tokenAuth struct {
	service.AuthService
	users map[string]*model.User
}

func (a tokenAuth) ValidateToken(token string) (*model.User, error) {
	if u, ok := a.users[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid or expired token")
}

func newApp() *fiber.App {
	auth := tokenAuth{users: map[string]*model.User{
		"admin-token": {BaseModel: model.BaseModel{ID: uuid.New()}, Email: "admin@fundo", Role: model.RoleAdmin},
		"op-token":    {BaseModel: model.BaseModel{ID: uuid.New()}, Email: "op@fundo", Role: model.RoleOperator},
	}}

	app := fiber.New()
	api := app.Group("/api", RequireAuth(auth))
	api.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_email").(string))
	})
	api.Post("/users", RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRequireAuth(t *testing.T) {
	app := newApp()

	assert.Equal(t, 401, call(t, app, "GET", "/api/me", ""))
	assert.Equal(t, 401, call(t, app, "GET", "/api/me", "Token op-token"))
	assert.Equal(t, 401, call(t, app, "GET", "/api/me", "Bearer stale"))
	assert.Equal(t, 200, call(t, app, "GET", "/api/me", "Bearer op-token"))
	assert.Equal(t, 200, call(t, app, "GET", "/api/me", "bearer op-token"))
}

func TestRequireAdmin(t *testing.T) {
	app := newApp()

	assert.Equal(t, 403, call(t, app, "POST", "/api/users", "Bearer op-token"))
	assert.Equal(t, 201, call(t, app, "POST", "/api/users", "Bearer admin-token"))
}
