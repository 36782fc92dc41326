package handler

import (
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/offline"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type JournalHandler struct {
	service service.JournalService
	sync    offline.Acceptor
}

func NewJournalHandler(s service.JournalService, sync offline.Acceptor) *JournalHandler {
	return &JournalHandler{service: s, sync: sync}
}

type AppendRequest struct {
	Rows []service.JournalEntry `json:"rows"`
}

func journalFilter(c *fiber.Ctx) (repository.JournalFilter, error) {
	filter := repository.JournalFilter{
		Sector:    c.Query("sector"),
		Evaluator: c.Query("evaluator"),
	}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// POST /api/v1/journals/:kind
func (h *JournalHandler) Append(c *fiber.Ctx) error {
	var req AppendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	rows, err := h.service.Append(c.UserContext(), model.JournalKind(c.Params("kind")), req.Rows, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Rows appended", "data": rows})
}

// GET /api/v1/journals/:kind?sector=&evaluator=&from=&to=
func (h *JournalHandler) List(c *fiber.Ctx) error {
	filter, err := journalFilter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	rows, err := h.service.List(c.UserContext(), model.JournalKind(c.Params("kind")), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(rows)
}

// GET /api/v1/journals/:kind/sessions
func (h *JournalHandler) Sessions(c *fiber.Ctx) error {
	filter, err := journalFilter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	sessions, err := h.service.Sessions(c.UserContext(), model.JournalKind(c.Params("kind")), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(sessions)
}

// Sync receives one flushed device queue.
// POST /api/v1/sync/:queue_id
func (h *JournalHandler) Sync(c *fiber.Ctx) error {
	var req offline.SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	queueID := c.Params("queue_id")
	accepted, err := h.sync.Accept(c.UserContext(), queueID, req.Records)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(offline.SyncResponse{QueueID: queueID, Accepted: accepted})
}
