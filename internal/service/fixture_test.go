package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"
	"go-fundo-ops/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var farmTZ = time.FixedZone("PET", -5*60*60)

// tickingClock advances one second per reading so generated ids stay unique.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	gw       repository.Gateway
	clock    *tickingClock
	settings service.Settings

	catalog  service.CatalogService
	stock    service.KardexService
	orders   service.WorkOrderService
	journals service.JournalService
	dash     service.DashboardService
	sync     *service.SyncService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	gw := repository.NewGateway(db, nil)
	clock := &tickingClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, farmTZ)}

	settings := service.DefaultSettings()
	settings.Location = farmTZ
	settings.Now = clock.Now

	productRepo := repository.NewProductRepo(db)
	lotRepo := repository.NewLotRepo(db)
	egressRepo := repository.NewEgressRepo(db)
	orderRepo := repository.NewWorkOrderRepo(db)
	journalRepo := repository.NewJournalRepo(db)
	locks := service.NewLockSet()

	stock := service.NewKardexService(gw, productRepo, lotRepo, egressRepo, orderRepo, locks, settings, nil)
	journals := service.NewJournalService(gw, journalRepo, settings, nil)
	return &fixture{
		ctx:      context.Background(),
		db:       db,
		gw:       gw,
		clock:    clock,
		settings: settings,
		catalog:  service.NewCatalogService(gw, productRepo, settings, nil),
		stock:    stock,
		orders:   service.NewWorkOrderService(gw, orderRepo, lotRepo, egressRepo, locks, settings, nil),
		journals: journals,
		dash:     service.NewDashboardService(stock, orderRepo, journalRepo, settings, nil),
		sync:     service.NewSyncService(gw, nil),
	}
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) product(t *testing.T, code string, category model.Category, minStock string) {
	t.Helper()
	require.NoError(t, f.catalog.Create(f.ctx, &model.Product{
		Code:              code,
		Name:              "Product " + code,
		Unit:              model.UnitLiter,
		Category:          category,
		MinStockThreshold: qty(minStock),
	}, "test"))
}

func (f *fixture) lot(t *testing.T, code, product, initial, price string, expiry *time.Time) {
	t.Helper()
	_, err := f.stock.RegisterIngress(f.ctx, &model.Lot{
		LotCode:         code,
		ProductCode:     product,
		InitialQuantity: qty(initial),
		UnitPrice:       qty(price),
		ExpiryDate:      expiry,
	}, "test")
	require.NoError(t, err)
}

func (f *fixture) remaining(t *testing.T, lotCode string) decimal.Decimal {
	t.Helper()
	av, err := f.stock.CheckAvailability(f.ctx, lotCode, decimal.Zero)
	require.NoError(t, err)
	return av.Remaining
}

func (f *fixture) plan(t *testing.T, lines ...model.RecipeLine) *model.WorkOrder {
	t.Helper()
	order, err := f.orders.Plan(f.ctx, &service.PlanRequest{
		Sector: "W1",
		Shift:  model.ShiftDay,
		Goal:   "oidium",
		Recipe: lines,
	}, "planner@fundo")
	require.NoError(t, err)
	return order
}

func line(lot, quantity string) model.RecipeLine {
	return model.RecipeLine{LotCode: lot, ProductQuantity: qty(quantity), PremixVolumeL: qty("200")}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func application(start, end string) *model.ApplicationRecord {
	return &model.ApplicationRecord{
		TractorID:      "TR-01",
		Operator:       "Luis",
		HourMeterStart: qty(start),
		HourMeterEnd:   qty(end),
		WaterVolumeL:   qty("1800"),
		MixVolumeL:     qty("2000"),
		NozzleCount:    12,
	}
}
