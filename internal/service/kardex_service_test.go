package service_test

import (
	"errors"
	"strings"
	"testing"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIngress(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "0")

	lot, err := f.stock.RegisterIngress(f.ctx, &model.Lot{ProductCode: "F01", InitialQuantity: qty("12.345678"), UnitPrice: qty("3")}, "store@fundo")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(lot.LotCode, "F01-2025031009"), lot.LotCode)
	assert.Equal(t, "12.34568", lot.InitialQuantity.String())

	_, err = f.stock.RegisterIngress(f.ctx, &model.Lot{ProductCode: "NOPE", InitialQuantity: qty("1")}, "store@fundo")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	_, err = f.stock.RegisterIngress(f.ctx, &model.Lot{ProductCode: "F01", InitialQuantity: qty("0")}, "store@fundo")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.stock.RegisterIngress(f.ctx, &model.Lot{LotCode: lot.LotCode, ProductCode: "F01", InitialQuantity: qty("1")}, "store@fundo")
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
}

func TestPostEgressRefusesOversell(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "0")
	f.lot(t, "F01-L1", "F01", "8", "10", nil)

	e, err := f.stock.PostEgress(f.ctx, &model.Egress{LotCode: "F01-L1", Sector: "W2", Shift: model.ShiftNight, Quantity: qty("3")}, "store@fundo")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(e.EgressID, "EG-F01-L1-"), e.EgressID)
	assert.Equal(t, "F01", e.ProductCode)
	assert.Equal(t, day(2025, 3, 10), e.Date)

	_, err = f.stock.PostEgress(f.ctx, &model.Egress{LotCode: "F01-L1", Sector: "W2", Shift: model.ShiftNight, Quantity: qty("5.00001")}, "store@fundo")
	assert.True(t, errors.Is(err, apperr.ErrInsufficientStock), "got %v", err)
	assert.Equal(t, "5", f.remaining(t, "F01-L1").String())

	_, err = f.stock.PostEgress(f.ctx, &model.Egress{LotCode: "NOPE", Sector: "W2", Shift: model.ShiftNight, Quantity: qty("1")}, "store@fundo")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestCorrectEgressOnAppliedOrderReturnsItToMixed(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "0")
	f.lot(t, "F01-L1", "F01", "100", "10", nil)
	order := f.plan(t, line("F01-L1", "10"))
	_, err := f.orders.ConfirmMix(f.ctx, order.OrderID, "Rosa", "mixer@fundo")
	require.NoError(t, err)
	_, err = f.orders.RecordApplication(f.ctx, order.OrderID, application("1", "3"), "tractor@fundo")
	require.NoError(t, err)

	egressID := model.OrderEgressID(order.OrderID, 1)
	_, err = f.stock.CorrectEgress(f.ctx, egressID, qty("100.5"), "admin@fundo")
	assert.True(t, errors.Is(err, apperr.ErrInsufficientStock), "the row being replaced counts as available, no more")

	corrected, err := f.stock.CorrectEgress(f.ctx, egressID, qty("12"), "admin@fundo")
	require.NoError(t, err)
	assert.Equal(t, "12", corrected.Quantity.String())
	assert.Equal(t, egressID, corrected.EgressID)
	assert.Equal(t, "88", f.remaining(t, "F01-L1").String())

	detail, err := f.orders.Get(f.ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMixed, detail.Order.Status)
	assert.Nil(t, detail.Application)
	assert.Nil(t, detail.Order.CompletedAt)
	require.Len(t, detail.Recipe, 1)
	assert.Equal(t, "12", detail.Recipe[0].ProductQuantity.String())
	require.Len(t, detail.Egresses, 1)

	_, err = f.stock.CorrectEgress(f.ctx, egressID, qty("0"), "admin@fundo")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = f.stock.CorrectEgress(f.ctx, "missing", qty("1"), "admin@fundo")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSuggestionsAndExpiring(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "0")
	soon, later := day(2025, 4, 1), day(2025, 6, 1)
	f.lot(t, "F01-LATER", "F01", "5", "10", &later)
	f.lot(t, "F01-NONE", "F01", "5", "10", nil)
	f.lot(t, "F01-SOON", "F01", "5", "10", &soon)
	f.lot(t, "F01-EMPTY", "F01", "1", "10", &soon)
	_, err := f.stock.PostEgress(f.ctx, &model.Egress{LotCode: "F01-EMPTY", Sector: "W1", Shift: model.ShiftDay, Quantity: qty("1")}, "store@fundo")
	require.NoError(t, err)

	lots, err := f.stock.Suggestions(f.ctx, "F01")
	require.NoError(t, err)
	var codes []string
	for _, l := range lots {
		codes = append(codes, l.LotCode)
	}
	assert.Equal(t, []string{"F01-SOON", "F01-LATER", "F01-NONE"}, codes)

	expiring, err := f.stock.ExpiringLots(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "F01-SOON", expiring[0].LotCode)

	_, err = f.stock.Suggestions(f.ctx, "NOPE")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestLowStockAndMovements(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "10")
	f.product(t, "F02", model.CategoryFungicide, "2")
	f.product(t, "F03", model.CategoryFungicide, "1")
	f.lot(t, "F01-L1", "F01", "6", "10", nil)
	f.lot(t, "F01-L2", "F01", "3", "10", nil)
	f.lot(t, "F02-L1", "F02", "2", "10", nil)

	low, err := f.stock.LowStockProducts(f.ctx)
	require.NoError(t, err)
	var codes []string
	for _, p := range low {
		codes = append(codes, p.ProductCode)
	}
	// F02 sits exactly on its threshold, F03 has no lots at all
	assert.Equal(t, []string{"F01", "F03"}, codes)

	_, err = f.stock.PostEgress(f.ctx, &model.Egress{LotCode: "F01-L1", Sector: "W1", Shift: model.ShiftDay, Quantity: qty("4")}, "store@fundo")
	require.NoError(t, err)

	moves, err := f.stock.Movements(f.ctx, "F01", nil, nil)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, "5", moves[2].Balance.String())
}
