package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"go-fundo-ops/internal/importer"
	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCatalogExportReimports(t *testing.T) {
	products := []model.Product{
		{Code: "I01", Name: "Abamectina, 1.8 EC", Unit: model.UnitLiter, Category: model.CategoryInsecticide, MinStockThreshold: decimal.RequireFromString("2.5")},
		{Code: "F01", Name: "Azufre Mojable", ActiveIngredient: "Azufre", Unit: model.UnitKilogram, Supplier: "Agro SAC", Category: model.CategoryFungicide},
		{Code: "A01", Name: "Break Thru", Unit: model.UnitMilliliter, Category: model.CategoryAdjuvant},
		{Code: "X01", Name: "Trampas", Unit: model.UnitPiece, Category: model.CategoryOther},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Catalog(products).Sheets[0]))

	sheet, err := importer.ReadCatalog(&buf)
	require.NoError(t, err)
	require.Empty(t, sheet.Rejected)
	require.Len(t, sheet.Rows, len(products))

	byCode := make(map[string]*model.Product)
	for _, r := range sheet.Rows {
		byCode[r.Code] = r.Product()
	}
	for _, want := range products {
		got, ok := byCode[want.Code]
		require.True(t, ok, want.Code)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.ActiveIngredient, got.ActiveIngredient)
		assert.Equal(t, want.Unit, got.Unit)
		assert.Equal(t, want.Supplier, got.Supplier)
		assert.Equal(t, want.Category, got.Category)
		assert.True(t, want.MinStockThreshold.Equal(got.MinStockThreshold), want.Code)
	}
}

func TestJournalSessionsSortedByDate(t *testing.T) {
	payload := func(v interface{}) datatypes.JSON {
		raw, _ := json.Marshal(v)
		return raw
	}
	d1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	d0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []model.JournalBase{
		{RowID: "t-2", Date: d1, Sector: "W1", Evaluator: "Ana", Payload: payload(model.TrapPayload{TrapID: "T1", Captures: []model.TrapCapture{{Species: "Lobesia", Count: 3}, {Species: "Mosca", Count: 1}}})},
		{RowID: "t-1", Date: d0, Sector: "W1", Evaluator: "Ana", Payload: payload(model.TrapPayload{TrapID: "T1", Captures: []model.TrapCapture{{Species: "Lobesia", Count: 2}}})},
		{RowID: "t-3", Date: d1, Sector: "W1", Evaluator: "Ana", Payload: payload(model.TrapPayload{TrapID: "T2", Captures: []model.TrapCapture{{Species: "Lobesia", Count: 0}}})},
	}

	wb, err := Journal(model.JournalTraps, rows, 100)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "2026-03-01_W1_Ana", wb.Sheets[0].Name)
	assert.Len(t, wb.Sheets[0].Rows, 1)
	assert.Len(t, wb.Sheets[1].Rows, 3)
	assert.Equal(t, []string{"2026-03-02", "W1", "Ana", "t-2", "T1", "Lobesia", "3"}, wb.Sheets[1].Rows[0])
}

func TestThinningExportUsesRacimosPorTanda(t *testing.T) {
	raw, _ := json.Marshal(model.ThinningPayload{Worker: "Luis", Tandas: 4})
	rows := []model.JournalBase{{RowID: "r", Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Sector: "S2", Evaluator: "Eva", Payload: raw}}

	wb, err := Journal(model.JournalThinning, rows, 80)
	require.NoError(t, err)
	assert.Equal(t, "320", wb.Sheets[0].Rows[0][6])
}

func TestWorkOrderSheets(t *testing.T) {
	order := &model.WorkOrder{OrderID: "OT-1", Status: model.StatusMixed, Sector: "W1", Shift: model.ShiftDay}
	require.NoError(t, order.SetLines([]model.RecipeLine{{LotCode: "L1", ProductCode: "F01", ProductQuantity: decimal.NewFromInt(3), PremixVolumeL: decimal.NewFromInt(200)}}))

	wb, err := WorkOrder(order, []model.Egress{{EgressID: "OT-1-01", Line: 1}})
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "OT-1-01", wb.Sheets[1].Rows[0][5])

	require.NoError(t, order.SetApplication(&model.ApplicationRecord{TractorID: "T1", HourMeterStart: decimal.NewFromInt(100), HourMeterEnd: decimal.RequireFromString("103.5")}))
	wb, err = WorkOrder(order, nil)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 3)
	app, ok := wb.Sheet("application")
	require.True(t, ok)
	assert.Equal(t, "3.5", app.Rows[0][5])
}

func TestWriteZip(t *testing.T) {
	wb := &Workbook{Sheets: []Sheet{
		{Name: "a b", Header: []string{"x"}, Rows: [][]string{{"1"}}},
		{Name: "a/b", Header: []string{"x"}},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteZip(&buf, wb))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a_b.csv", zr.File[0].Name)
	assert.Equal(t, "a_b_2.csv", zr.File[1].Name)

	f, err := zr.File[1].Open()
	require.NoError(t, err)
	defer f.Close()
	body, _ := io.ReadAll(f)
	assert.Equal(t, "x\n", string(body))
}
