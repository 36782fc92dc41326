package handler

import (
	"strconv"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/repository/mongodb"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
	archive mongodb.DigestArchive
	today   func() time.Time
}

// NewDashboardHandler takes the local calendar day used for default
// windows.
func NewDashboardHandler(s service.DashboardService, today func() time.Time) *DashboardHandler {
	return &DashboardHandler{service: s, today: today}
}

// WithArchive enables the digest history route.
func (h *DashboardHandler) WithArchive(archive mongodb.DigestArchive) *DashboardHandler {
	h.archive = archive
	return h
}

// GET /api/v1/dashboard/summary
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(summary)
}

// GET /api/v1/dashboard/inventory-value
func (h *DashboardHandler) InventoryValue(c *fiber.Ctx) error {
	value, err := h.service.InventoryValue(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(value)
}

// GET /api/v1/dashboard/low-stock
func (h *DashboardHandler) LowStock(c *fiber.Ctx) error {
	products, err := h.service.LowStock(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(products)
}

// GET /api/v1/dashboard/expiring?days=
func (h *DashboardHandler) Expiring(c *fiber.Ctx) error {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		return errorResponse(c, err)
	}
	lots, err := h.service.Expiring(c.UserContext(), days)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(lots)
}

// GET /api/v1/dashboard/active-orders
func (h *DashboardHandler) ActiveOrders(c *fiber.Ctx) error {
	n, err := h.service.ActiveOrders(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"active_orders": n})
}

// TractorHours defaults to the last 7 days.
// GET /api/v1/dashboard/tractor-hours?from=&to=
func (h *DashboardHandler) TractorHours(c *fiber.Ctx) error {
	from, to, err := queryWindow(c, h.today(), 7)
	if err != nil {
		return errorResponse(c, err)
	}
	report, err := h.service.TractorHours(c.UserContext(), from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(report)
}

// GET /api/v1/dashboard/berry-diameter
func (h *DashboardHandler) BerryDiameter(c *fiber.Ctx) error {
	sectors, err := h.service.BerryDiameter(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(sectors)
}

// GET /api/v1/dashboard/trap-pressure?threshold=
func (h *DashboardHandler) TrapPressure(c *fiber.Ctx) error {
	var threshold *float64
	if v := c.Query("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errorResponse(c, apperr.Validation("query parameter threshold must be a number"))
		}
		threshold = &t
	}
	sectors, err := h.service.TrapPressure(c.UserContext(), threshold)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(sectors)
}

// ThinningRanking defaults to the last 30 days.
// GET /api/v1/dashboard/thinning-ranking?from=&to=
func (h *DashboardHandler) ThinningRanking(c *fiber.Ctx) error {
	from, to, err := queryWindow(c, h.today(), 30)
	if err != nil {
		return errorResponse(c, err)
	}
	ranking, err := h.service.ThinningRanking(c.UserContext(), from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ranking)
}

// GET /api/v1/dashboard/digest
func (h *DashboardHandler) Digest(c *fiber.Ctx) error {
	digest, err := h.service.Digest(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(digest)
}

// GET /api/v1/dashboard/digests?limit=
func (h *DashboardHandler) DigestHistory(c *fiber.Ctx) error {
	if h.archive == nil {
		return errorResponse(c, apperr.Validation("digest archive is not configured"))
	}
	limit, err := queryInt(c, "limit", 14)
	if err != nil {
		return errorResponse(c, err)
	}
	if limit <= 0 || limit > 366 {
		return errorResponse(c, apperr.Validation("limit must be between 1 and 366"))
	}
	digests, err := h.archive.RecentDigests(c.UserContext(), int64(limit))
	if err != nil {
		return errorResponse(c, apperr.Transient(err))
	}
	return c.JSON(digests)
}
