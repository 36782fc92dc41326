package handler

import (
	"errors"
	"strconv"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Helper untuk ambil User Info dari JWT Context (set by auth middleware)
func getUserID(c *fiber.Ctx) string {
	userID := c.Locals("user_id")
	if userID == nil {
		return "system"
	}
	return userID.(string)
}

// getActor is what the audit columns record: the user's email when known.
func getActor(c *fiber.Ctx) string {
	if email, ok := c.Locals("user_email").(string); ok && email != "" {
		return email
	}
	return getUserID(c)
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:        fiber.StatusUnprocessableEntity,
	apperr.KindNotFound:          fiber.StatusNotFound,
	apperr.KindOrderState:        fiber.StatusConflict,
	apperr.KindInsufficientStock: fiber.StatusConflict,
	apperr.KindConflict:          fiber.StatusConflict,
	apperr.KindTransient:         fiber.StatusServiceUnavailable,
}

// errorResponse writes err with the status of its kind. Unclassified errors
// are reported as 500 without their message.
func errorResponse(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
			"kind":  string(apperr.KindInternal),
		})
	}

	body := fiber.Map{"error": err.Error(), "kind": string(kind)}
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.KindInsufficientStock {
		body["lot"] = e.Lot
		body["shortfall"] = e.Shortfall.StringFixed(model.QuantityPlaces)
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(c *fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return nil, apperr.Validation("query parameter %s must be YYYY-MM-DD", key)
	}
	return &d, nil
}

// queryWindow reads from/to, defaulting to the last `days` days ending
// today (a stored-form date).
func queryWindow(c *fiber.Ctx, today time.Time, days int) (time.Time, time.Time, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := today
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -(days - 1))
	if from != nil {
		start = *from
	}
	return start, end, nil
}

func queryDecimal(c *fiber.Ctx, key string) (decimal.Decimal, error) {
	v := c.Query(key)
	if v == "" {
		return decimal.Zero, apperr.Validation("query parameter %s is required", key)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, apperr.Validation("query parameter %s must be a number", key)
	}
	return d, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("query parameter %s must be an integer", key)
	}
	return n, nil
}
