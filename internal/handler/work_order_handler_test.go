package handler

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/middleware"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listOnlyOrders serves List and waits for ctx when block is set.
type listOnlyOrders struct {
	service.WorkOrderService
	block       bool
	hasDeadline bool
}

func (s *listOnlyOrders) List(ctx context.Context, _ repository.OrderFilter) ([]model.WorkOrder, error) {
	_, s.hasDeadline = ctx.Deadline()
	if s.block {
		<-ctx.Done()
		return nil, apperr.Classify(ctx.Err())
	}
	return []model.WorkOrder{}, nil
}

func ordersApp(svc service.WorkOrderService, timeout time.Duration) *fiber.App {
	app := fiber.New()
	app.Use(middleware.RequestDeadline(timeout))
	app.Get("/work-orders", NewWorkOrderHandler(svc).List)
	return app
}

func TestWorkOrderListCarriesRequestDeadline(t *testing.T) {
	svc := &listOnlyOrders{}
	resp, err := ordersApp(svc, 10*time.Second).Test(httptest.NewRequest("GET", "/work-orders", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, svc.hasDeadline)
}

func TestWorkOrderListTimesOutAsTransient(t *testing.T) {
	svc := &listOnlyOrders{block: true}
	resp, err := ordersApp(svc, 20*time.Millisecond).Test(httptest.NewRequest("GET", "/work-orders", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, string(apperr.KindTransient), decode(t, resp.Body)["kind"])
}
