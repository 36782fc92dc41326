package handler

import (
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type RiskHandler struct {
	service service.RiskService
}

func NewRiskHandler(s service.RiskService) *RiskHandler {
	return &RiskHandler{service: s}
}

// AssessRequest carries the seven weather features in model order:
// t_max, t_min, t_mean, rh_mean, precipitation, wind_speed, sun_hours.
type AssessRequest struct {
	Features []float64 `json:"features"`
}

// POST /api/v1/risk/assess
func (h *RiskHandler) Assess(c *fiber.Ctx) error {
	var req AssessRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	assessment, err := h.service.Assess(c.UserContext(), req.Features)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(assessment)
}
