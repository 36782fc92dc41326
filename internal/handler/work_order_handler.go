package handler

import (
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type WorkOrderHandler struct {
	service service.WorkOrderService
}

func NewWorkOrderHandler(s service.WorkOrderService) *WorkOrderHandler {
	return &WorkOrderHandler{service: s}
}

type PlanOrderRequest struct {
	ScheduledDate string             `json:"scheduled_date"`
	Sector        string             `json:"sector"`
	Shift         model.Shift        `json:"shift"`
	Goal          string             `json:"goal"`
	Recipe        []model.RecipeLine `json:"recipe"`
}

type MixRequest struct {
	MixOperator string `json:"mix_operator"`
}

// POST /api/v1/work-orders
func (h *WorkOrderHandler) Plan(c *fiber.Ctx) error {
	var body PlanOrderRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	req := &service.PlanRequest{
		Sector: body.Sector,
		Shift:  body.Shift,
		Goal:   body.Goal,
		Recipe: body.Recipe,
	}
	scheduled, err := optionalDate("scheduled_date", body.ScheduledDate)
	if err != nil {
		return errorResponse(c, err)
	}
	if scheduled != nil {
		req.ScheduledDate = *scheduled
	}

	order, err := h.service.Plan(c.UserContext(), req, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Work order planned", "data": order})
}

// GET /api/v1/work-orders?status=&sector=&from=&to=
func (h *WorkOrderHandler) List(c *fiber.Ctx) error {
	filter := repository.OrderFilter{
		Status: model.OrderStatus(c.Query("status")),
		Sector: c.Query("sector"),
	}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		return errorResponse(c, err)
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		return errorResponse(c, err)
	}

	orders, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	if orders == nil {
		orders = []model.WorkOrder{}
	}
	return c.JSON(orders)
}

// GET /api/v1/work-orders/:id
func (h *WorkOrderHandler) Get(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(detail)
}

// POST /api/v1/work-orders/:id/mix
func (h *WorkOrderHandler) ConfirmMix(c *fiber.Ctx) error {
	var req MixRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	order, err := h.service.ConfirmMix(c.UserContext(), c.Params("id"), req.MixOperator, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Mix confirmed", "data": order})
}

// POST /api/v1/work-orders/:id/apply
func (h *WorkOrderHandler) RecordApplication(c *fiber.Ctx) error {
	var rec model.ApplicationRecord
	if err := c.BodyParser(&rec); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	order, err := h.service.RecordApplication(c.UserContext(), c.Params("id"), &rec, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Application recorded", "data": order})
}

// POST /api/v1/work-orders/:id/cancel
func (h *WorkOrderHandler) Cancel(c *fiber.Ctx) error {
	order, err := h.service.Cancel(c.UserContext(), c.Params("id"), getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Work order cancelled", "data": order})
}

// POST /api/v1/work-orders/:id/rollback
func (h *WorkOrderHandler) Rollback(c *fiber.Ctx) error {
	order, err := h.service.Rollback(c.UserContext(), c.Params("id"), getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Work order rolled back", "data": order})
}

// DELETE /api/v1/work-orders/:id
func (h *WorkOrderHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeletePlanned(c.UserContext(), c.Params("id"), getActor(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Work order deleted"})
}
