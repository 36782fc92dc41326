package handler

import (
	"bytes"
	"fmt"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/export"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ExportHandler struct {
	service service.ExportService
}

func NewExportHandler(s service.ExportService) *ExportHandler {
	return &ExportHandler{service: s}
}

// GET /api/v1/exports/catalog?format=zip|json
func (h *ExportHandler) Catalog(c *fiber.Ctx) error {
	wb, err := h.service.Catalog(c.UserContext())
	return h.respond(c, wb, err)
}

// GET /api/v1/exports/kardex
func (h *ExportHandler) Kardex(c *fiber.Ctx) error {
	wb, err := h.service.Kardex(c.UserContext())
	return h.respond(c, wb, err)
}

// GET /api/v1/exports/journals/:kind?sector=&evaluator=&from=&to=
func (h *ExportHandler) Journal(c *fiber.Ctx) error {
	filter, err := journalFilter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	wb, err := h.service.Journal(c.UserContext(), model.JournalKind(c.Params("kind")), filter)
	return h.respond(c, wb, err)
}

// GET /api/v1/exports/work-orders/:id
func (h *ExportHandler) WorkOrder(c *fiber.Ctx) error {
	wb, err := h.service.WorkOrder(c.UserContext(), c.Params("id"))
	return h.respond(c, wb, err)
}

// Publish builds the same workbook as the GET route and mirrors it to the
// configured spreadsheet.
// POST /api/v1/exports/:target/publish
func (h *ExportHandler) Publish(c *fiber.Ctx) error {
	if !h.service.CanPublish() {
		return errorResponse(c, apperr.Validation("spreadsheet publishing is not configured"))
	}

	var (
		wb  *export.Workbook
		err error
	)
	ctx := c.UserContext()
	switch c.Params("target") {
	case "catalog":
		wb, err = h.service.Catalog(ctx)
	case "kardex":
		wb, err = h.service.Kardex(ctx)
	default:
		return errorResponse(c, apperr.NotFound("export", c.Params("target")))
	}
	if err != nil {
		return errorResponse(c, err)
	}
	return h.publish(c, wb)
}

// POST /api/v1/exports/journals/:kind/publish
func (h *ExportHandler) PublishJournal(c *fiber.Ctx) error {
	filter, err := journalFilter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	wb, err := h.service.Journal(c.UserContext(), model.JournalKind(c.Params("kind")), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return h.publish(c, wb)
}

// POST /api/v1/exports/work-orders/:id/publish
func (h *ExportHandler) PublishWorkOrder(c *fiber.Ctx) error {
	wb, err := h.service.WorkOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return h.publish(c, wb)
}

func (h *ExportHandler) publish(c *fiber.Ctx, wb *export.Workbook) error {
	tabs, err := h.service.Publish(c.UserContext(), wb)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Workbook published", "tabs": tabs})
}

func (h *ExportHandler) respond(c *fiber.Ctx, wb *export.Workbook, err error) error {
	if err != nil {
		return errorResponse(c, err)
	}

	switch c.Query("format", "zip") {
	case "json":
		return c.JSON(wb)
	case "zip":
		var buf bytes.Buffer
		if err := export.WriteZip(&buf, wb); err != nil {
			return errorResponse(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/zip")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", wb.Name+".zip"))
		return c.Send(buf.Bytes())
	}
	return errorResponse(c, apperr.Validation("format must be zip or json"))
}
