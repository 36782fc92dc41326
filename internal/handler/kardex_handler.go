package handler

import (
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type KardexHandler struct {
	service service.KardexService
}

func NewKardexHandler(s service.KardexService) *KardexHandler {
	return &KardexHandler{service: s}
}

// IngressRequest is a lot ingress; dates are YYYY-MM-DD.
type IngressRequest struct {
	LotCode         string          `json:"lot_code"`
	ProductCode     string          `json:"product_code"`
	IngressDate     string          `json:"ingress_date"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Supplier        string          `json:"supplier"`
	InvoiceRef      string          `json:"invoice_ref"`
	ExpiryDate      string          `json:"expiry_date"`
}

type EgressRequest struct {
	EgressID      string          `json:"egress_id"`
	Date          string          `json:"date"`
	LotCode       string          `json:"lot_code"`
	Sector        string          `json:"sector"`
	Shift         model.Shift     `json:"shift"`
	Quantity      decimal.Decimal `json:"quantity"`
	TreatmentGoal string          `json:"treatment_goal"`
}

type CorrectEgressRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func optionalDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return &d, nil
}

// POST /api/v1/lots
func (h *KardexHandler) RegisterIngress(c *fiber.Ctx) error {
	var req IngressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	lot := &model.Lot{
		LotCode:         req.LotCode,
		ProductCode:     req.ProductCode,
		InitialQuantity: req.InitialQuantity,
		UnitPrice:       req.UnitPrice,
		Supplier:        req.Supplier,
		InvoiceRef:      req.InvoiceRef,
	}
	ingress, err := optionalDate("ingress_date", req.IngressDate)
	if err != nil {
		return errorResponse(c, err)
	}
	if ingress != nil {
		lot.IngressDate = *ingress
	}
	if lot.ExpiryDate, err = optionalDate("expiry_date", req.ExpiryDate); err != nil {
		return errorResponse(c, err)
	}

	created, err := h.service.RegisterIngress(c.UserContext(), lot, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Lot registered", "data": created})
}

// POST /api/v1/egresses
func (h *KardexHandler) PostEgress(c *fiber.Ctx) error {
	var req EgressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	egress := &model.Egress{
		EgressID:      req.EgressID,
		LotCode:       req.LotCode,
		Sector:        req.Sector,
		Shift:         req.Shift,
		Quantity:      req.Quantity,
		TreatmentGoal: req.TreatmentGoal,
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		return errorResponse(c, err)
	}
	if date != nil {
		egress.Date = *date
	}

	posted, err := h.service.PostEgress(c.UserContext(), egress, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Egress posted", "data": posted})
}

// PUT /api/v1/egresses/:id
func (h *KardexHandler) CorrectEgress(c *fiber.Ctx) error {
	var req CorrectEgressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	corrected, err := h.service.CorrectEgress(c.UserContext(), c.Params("id"), req.Quantity, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Egress corrected", "data": corrected})
}

// GET /api/v1/kardex/lots?product=
func (h *KardexHandler) StockByLot(c *fiber.Ctx) error {
	lots, err := h.service.StockByLot(c.UserContext(), c.Query("product"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(lots)
}

// GET /api/v1/kardex/products
func (h *KardexHandler) StockByProduct(c *fiber.Ctx) error {
	products, err := h.service.StockByProduct(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(products)
}

// GET /api/v1/kardex/expiring?days=
func (h *KardexHandler) Expiring(c *fiber.Ctx) error {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		return errorResponse(c, err)
	}
	lots, err := h.service.ExpiringLots(c.UserContext(), days)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(lots)
}

// GET /api/v1/kardex/low-stock
func (h *KardexHandler) LowStock(c *fiber.Ctx) error {
	products, err := h.service.LowStockProducts(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(products)
}

// GET /api/v1/kardex/availability?lot=&qty=
func (h *KardexHandler) Availability(c *fiber.Ctx) error {
	qty, err := queryDecimal(c, "qty")
	if err != nil {
		return errorResponse(c, err)
	}
	av, err := h.service.CheckAvailability(c.UserContext(), c.Query("lot"), qty)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(av)
}

// GET /api/v1/lots/:product/suggestions
func (h *KardexHandler) Suggestions(c *fiber.Ctx) error {
	lots, err := h.service.Suggestions(c.UserContext(), c.Params("product"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(lots)
}

// GET /api/v1/kardex/movements?product=&from=&to=
func (h *KardexHandler) Movements(c *fiber.Ctx) error {
	product := c.Query("product")
	if product == "" {
		return errorResponse(c, apperr.Validation("query parameter product is required"))
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return errorResponse(c, err)
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return errorResponse(c, err)
	}
	movements, err := h.service.Movements(c.UserContext(), product, from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(movements)
}
