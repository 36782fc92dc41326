package service_test

import (
	"errors"
	"testing"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrapPressureUsesLatestSessionPerSector(t *testing.T) {
	f := newFixture(t)
	_, err := f.journals.Append(f.ctx, model.JournalTraps, []service.JournalEntry{
		// older W1 session would alert on its own
		trapRow("2025-03-01", "W1", "T1", 70),
		trapRow("2025-03-08", "W1", "T1", 2),
		trapRow("2025-03-08", "W1", "T2", 1),
		trapRow("2025-03-08", "W1", "T2", 1),
		trapRow("2025-03-07", "W2", "T9", 4),
	}, "ana@fundo")
	require.NoError(t, err)

	sectors, err := f.dash.TrapPressure(f.ctx, nil)
	require.NoError(t, err)
	require.Len(t, sectors, 2)

	w1 := sectors[0]
	assert.Equal(t, "W1", w1.Sector)
	assert.Equal(t, day(2025, 3, 8), w1.Date)
	require.Len(t, w1.Traps, 2)
	assert.Equal(t, "T1", w1.Traps[0].TrapID)
	assert.InDelta(t, 2.0/7, w1.Traps[0].MTD, 1e-9)
	assert.Equal(t, 2, w1.Traps[1].Captures)
	assert.False(t, w1.Alert)

	w2 := sectors[1]
	assert.InDelta(t, 4.0/7, w2.Traps[0].MTD, 1e-9)
	assert.True(t, w2.Alert, "0.571 >= default threshold 0.5")

	strict := 0.6
	sectors, err = f.dash.TrapPressure(f.ctx, &strict)
	require.NoError(t, err)
	assert.False(t, sectors[1].Alert)

	negative := -1.0
	_, err = f.dash.TrapPressure(f.ctx, &negative)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	digest, err := f.dash.Digest(f.ctx)
	require.NoError(t, err)
	require.Len(t, digest.TrapAlerts, 1)
	assert.Equal(t, "W2", digest.TrapAlerts[0].Key)
	assert.Equal(t, "T9", digest.TrapAlerts[0].Label)
}

func TestBerryDiameterIgnoresUnmeasuredCells(t *testing.T) {
	f := newFixture(t)
	_, err := f.journals.Append(f.ctx, model.JournalBerryDiameter, []service.JournalEntry{
		entry("2025-03-01", "W1", "Ana", `{"plant":1,"measurements":[30,30,30,30,30,30]}`),
		entry("2025-03-08", "W1", "Ana", `{"plant":1,"measurements":[12,14,0,0,13,0]}`),
		entry("2025-03-08", "W1", "Ana", `{"plant":2,"measurements":[0,0,0,0,0,11.5]}`),
		entry("2025-03-08", "W3", "Luz", `{"plant":1,"measurements":[0,0,0,0,0,0]}`),
	}, "ana@fundo")
	require.NoError(t, err)

	sectors, err := f.dash.BerryDiameter(f.ctx)
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	assert.Equal(t, "W1", sectors[0].Sector)
	assert.Equal(t, 4, sectors[0].Cells)
	assert.InDelta(t, 12.63, sectors[0].Mean, 1e-9)
	assert.Equal(t, "W3", sectors[1].Sector)
	assert.Zero(t, sectors[1].Cells)
	assert.Zero(t, sectors[1].Mean)
}

func TestThinningRanking(t *testing.T) {
	f := newFixture(t)
	_, err := f.journals.Append(f.ctx, model.JournalThinning, []service.JournalEntry{
		entry("2025-03-01", "W1", "Ana", `{"worker":"Pedro","tandas":3}`),
		entry("2025-03-05", "W1", "Ana", `{"worker":"Juan","tandas":2}`),
		entry("2025-03-05", "W2", "Ana", `{"worker":"Juan","tandas":1}`),
		entry("2025-03-06", "W2", "Ana", `{"worker":"Maria","tandas":5}`),
		entry("2025-02-01", "W2", "Ana", `{"worker":"Maria","tandas":50}`),
	}, "ana@fundo")
	require.NoError(t, err)

	ranking, err := f.dash.ThinningRanking(f.ctx, day(2025, 3, 1), day(2025, 3, 10))
	require.NoError(t, err)
	assert.Equal(t, []service.WorkerBunches{
		{Worker: "Maria", Tandas: 5, Racimos: 500},
		{Worker: "Juan", Tandas: 3, Racimos: 300},
		{Worker: "Pedro", Tandas: 3, Racimos: 300},
	}, ranking)

	_, err = f.dash.ThinningRanking(f.ctx, day(2025, 3, 10), day(2025, 3, 1))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestTractorHoursAndSummary(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "0")
	f.product(t, "A01", model.CategoryAdjuvant, "0")
	f.lot(t, "F01-L1", "F01", "100", "2.5", nil)
	f.lot(t, "A01-L1", "A01", "10", "1", nil)

	for _, hm := range [][2]string{{"100", "103.5"}, {"200", "201"}} {
		order := f.plan(t, line("F01-L1", "10"))
		_, err := f.orders.ConfirmMix(f.ctx, order.OrderID, "Rosa", "mixer@fundo")
		require.NoError(t, err)
		_, err = f.orders.RecordApplication(f.ctx, order.OrderID, application(hm[0], hm[1]), "tractor@fundo")
		require.NoError(t, err)
	}
	f.plan(t, line("A01-L1", "1"))

	today := day(2025, 3, 10)
	report, err := f.dash.TractorHours(f.ctx, today.AddDate(0, 0, -6), today)
	require.NoError(t, err)
	assert.Equal(t, "4.5", report.Total.String())
	require.Len(t, report.ByTractor, 1)
	assert.Equal(t, 2, report.ByTractor[0].Orders)

	report, err = f.dash.TractorHours(f.ctx, day(2025, 3, 1), day(2025, 3, 9))
	require.NoError(t, err)
	assert.True(t, report.Total.IsZero())

	summary, err := f.dash.Summary(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.ActiveOrders)
	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, "210", summary.InventoryValue.String())

	value, err := f.dash.InventoryValue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "200", value.ByCategory[model.CategoryFungicide].String())
	assert.Equal(t, "10", value.ByCategory[model.CategoryAdjuvant].String())
	assert.True(t, value.ByCategory[model.CategoryHerbicide].IsZero())
}
