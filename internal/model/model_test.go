package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	next, ok := StatusPlanned.Next(EventMix)
	require.True(t, ok)
	assert.Equal(t, StatusMixed, next)

	next, ok = StatusMixed.Next(EventApply)
	require.True(t, ok)
	assert.Equal(t, StatusApplied, next)

	next, ok = StatusPlanned.Next(EventCancel)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, next)

	_, ok = StatusMixed.Next(EventCancel)
	assert.False(t, ok, "cancel is only reachable from PLANNED")
	_, ok = StatusApplied.Next(EventMix)
	assert.False(t, ok)
	_, ok = StatusCancelled.Next(EventRollback)
	assert.False(t, ok)
	_, ok = StatusPlanned.Next(EventApply)
	assert.False(t, ok)

	assert.True(t, StatusPlanned.Active())
	assert.True(t, StatusMixed.Active())
	assert.False(t, StatusApplied.Active())
	assert.False(t, StatusCancelled.Active())
}

func TestRecipeRoundTripThroughJSONColumn(t *testing.T) {
	w := &WorkOrder{OrderID: "OT-1"}
	lines := []RecipeLine{{
		LotCode:         "F01-20260101000000",
		ProductQuantity: decimal.RequireFromString("3.25"),
		PremixVolumeL:   decimal.NewFromInt(200),
	}}
	require.NoError(t, w.SetLines(lines))

	got, err := w.Lines()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].ProductQuantity.Equal(decimal.RequireFromString("3.25")))

	rec, err := w.Application()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestQtyRoundsToFivePlaces(t *testing.T) {
	assert.Equal(t, "0.00001", Qty(decimal.RequireFromString("0.000005")).String())
	assert.Equal(t, "7", SumQty(decimal.RequireFromString("3.000001"), decimal.NewFromInt(4)).String())
}

func TestDateOnlyUsesFarmCalendar(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	// 02:00 UTC on the 2nd is still the 1st in Lima
	got := DateOnly(time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), lima)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(JournalPhenology, []byte(`{"row":3,"stages":[1,0,2,0,5]}`))
	require.NoError(t, err)
	assert.Equal(t, 3, p.(*PhenologyPayload).Row)

	_, err = DecodePayload(JournalPhenology, []byte(`{"row":3,"stages":[1,0,2,0]}`))
	assert.Error(t, err, "four stage counts")

	_, err = DecodePayload(JournalPhenology, []byte(`{"row":26,"stages":[1,0,2,0,5]}`))
	assert.Error(t, err, "row out of grid")

	_, err = DecodePayload(JournalThinning, []byte(`{"worker":"X","tandas":4,"extra":true}`))
	assert.Error(t, err, "unknown field")

	trap, err := DecodePayload(JournalTraps, []byte(`{"trap_id":"T1","captures":[{"species":"Lobesia","count":3},{"species":"Planococcus","count":1}]}`))
	require.NoError(t, err)
	assert.Equal(t, 4, trap.(*TrapPayload).Total())
}

func TestCatalogVocabulary(t *testing.T) {
	u, ok := ParseUnit(" lt ")
	require.True(t, ok)
	assert.Equal(t, UnitLiter, u)
	_, ok = ParseUnit("barrel")
	assert.False(t, ok)

	assert.Equal(t, CategoryFungicide, CategoryFromSubgroup("Fungicidas sistemicos"))
	assert.Equal(t, CategoryAdjuvant, CategoryFromSubgroup("COADYUVANTE"))
	for _, c := range Categories {
		assert.Equal(t, c, CategoryFromSubgroup(string(c)), "export labels must map back")
	}
}
