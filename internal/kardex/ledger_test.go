package kardex

import (
	"testing"
	"time"

	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestExpiringLotsWindow(t *testing.T) {
	lots := []model.Lot{
		{LotCode: "A", ProductCode: "P", InitialQuantity: d("2"), ExpiryDate: ptr(day(2026, 3, 15))},
		{LotCode: "B", ProductCode: "P", InitialQuantity: d("5"), ExpiryDate: ptr(day(2026, 5, 1))},
		{LotCode: "C", ProductCode: "P", InitialQuantity: d("4"), ExpiryDate: ptr(day(2026, 3, 10))},
	}
	consumed := map[string]decimal.Decimal{"C": d("4")}

	got := Expiring(LotBalances(lots, consumed), day(2026, 3, 1), 30)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].LotCode)
}

func TestExpiringIncludesBothEnds(t *testing.T) {
	lots := []model.Lot{
		{LotCode: "TODAY", InitialQuantity: d("1"), ExpiryDate: ptr(day(2026, 3, 1))},
		{LotCode: "EDGE", InitialQuantity: d("1"), ExpiryDate: ptr(day(2026, 3, 31))},
		{LotCode: "PAST", InitialQuantity: d("1"), ExpiryDate: ptr(day(2026, 2, 28))},
		{LotCode: "NONE", InitialQuantity: d("1")},
	}
	got := Expiring(LotBalances(lots, nil), day(2026, 3, 1), 30)
	require.Len(t, got, 2)
	assert.Equal(t, "TODAY", got[0].LotCode)
	assert.Equal(t, "EDGE", got[1].LotCode)
}

func TestProductRemainingIsSumOfLots(t *testing.T) {
	products := []model.Product{
		{Code: "F01", Category: model.CategoryFungicide, MinStockThreshold: d("20")},
		{Code: "I01", Category: model.CategoryInsecticide},
	}
	lots := []model.Lot{
		{LotCode: "F01-1", ProductCode: "F01", InitialQuantity: d("10"), UnitPrice: d("20")},
		{LotCode: "F01-2", ProductCode: "F01", InitialQuantity: d("2.5"), UnitPrice: d("22")},
		{LotCode: "I01-1", ProductCode: "I01", InitialQuantity: d("1"), UnitPrice: d("5")},
	}
	consumed := map[string]decimal.Decimal{"F01-1": d("3"), "F01-2": d("0.00001")}

	lb := LotBalances(lots, consumed)
	pb := ProductBalances(products, lb)

	for _, p := range pb {
		sum := decimal.Zero
		for _, l := range lb {
			if l.ProductCode == p.ProductCode {
				sum = sum.Add(l.Remaining)
			}
		}
		assert.True(t, sum.Equal(p.Remaining), p.ProductCode)
	}
	assert.Equal(t, "9.49999", pb[0].Remaining.String())
	assert.Equal(t, 2, pb[0].Lots)

	low := LowStock(pb, decimal.NewFromInt(1))
	require.Len(t, low, 1)
	assert.Equal(t, "F01", low[0].ProductCode)

	byCat := ValueByCategory(pb)
	assert.True(t, byCat[model.CategoryInsecticide].Equal(d("5")))
	assert.True(t, byCat[model.CategoryHerbicide].IsZero())
}

func TestValuesKeepSubCentPrecision(t *testing.T) {
	products := []model.Product{{Code: "A01", Category: model.CategoryAdjuvant}}
	lots := []model.Lot{
		{LotCode: "A01-1", ProductCode: "A01", InitialQuantity: d("0.00333"), UnitPrice: d("1.5")},
		{LotCode: "A01-2", ProductCode: "A01", InitialQuantity: d("0.00333"), UnitPrice: d("1.5")},
		{LotCode: "A01-3", ProductCode: "A01", InitialQuantity: d("0.00333"), UnitPrice: d("1.5")},
	}

	lb := LotBalances(lots, nil)
	for _, l := range lb {
		assert.True(t, l.Value.Equal(d("0.004995")), l.LotCode)
	}
	assert.True(t, TotalValue(lb).Equal(d("0.014985")))

	pb := ProductBalances(products, lb)
	assert.True(t, pb[0].Value.Equal(d("0.014985")))
	assert.True(t, ValueByCategory(pb)[model.CategoryAdjuvant].Equal(d("0.014985")))
	assert.Equal(t, "0.01", TotalValue(lb).StringFixed(2))
}

func TestAvailableBoundary(t *testing.T) {
	remaining := d("7")
	assert.True(t, Available(remaining, d("7")))
	assert.True(t, Available(remaining, d("7.000004")), "below the fifth decimal")
	assert.False(t, Available(remaining, d("7.00001")))
}

func TestSuggestOrdersByExpiry(t *testing.T) {
	lots := []model.Lot{
		{LotCode: "NOEXP", InitialQuantity: d("1"), IngressDate: day(2025, 1, 1)},
		{LotCode: "LATE", InitialQuantity: d("1"), ExpiryDate: ptr(day(2026, 9, 1))},
		{LotCode: "SOON", InitialQuantity: d("1"), ExpiryDate: ptr(day(2026, 4, 1))},
		{LotCode: "EMPTY", InitialQuantity: d("1"), ExpiryDate: ptr(day(2026, 3, 1))},
	}
	got := Suggest(LotBalances(lots, map[string]decimal.Decimal{"EMPTY": d("1")}))
	codes := make([]string, len(got))
	for i, l := range got {
		codes[i] = l.LotCode
	}
	assert.Equal(t, []string{"SOON", "LATE", "NOEXP"}, codes)
}

func TestMovementsRunningBalance(t *testing.T) {
	order := "OT-1"
	lots := []model.Lot{{LotCode: "F01-1", InitialQuantity: d("10"), IngressDate: day(2026, 1, 1), InvoiceRef: "FAC-1"}}
	egresses := []model.Egress{
		{EgressID: "e2", LotCode: "F01-1", Quantity: d("2"), Date: day(2026, 1, 5)},
		{EgressID: "e1", LotCode: "F01-1", Quantity: d("3"), Date: day(2026, 1, 3), OrderID: &order},
	}
	mv := Movements(lots, egresses)
	require.Len(t, mv, 3)
	assert.Equal(t, MovementIn, mv[0].Kind)
	assert.Equal(t, "OT-1", mv[1].Reference)
	assert.Equal(t, "7", mv[1].Balance.String())
	assert.Equal(t, "5", mv[2].Balance.String())
}
