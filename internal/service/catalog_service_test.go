package service_test

import (
	"errors"
	"strings"
	"testing"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/importer"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogImportWithOpeningStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F001", model.CategoryOther, "7")

	catalog, err := importer.ReadCatalog(strings.NewReader(
		"CODIGO,PRODUCTS,UM,SUBGROUP,SUPPLIER\n" +
			"F001,Azufre Mojable,L,FUNGICIDAS,Agro Sur\n" +
			"I001,Abamectina,L,INSECTICIDAS,Quimica Norte\n" +
			",Sin codigo,L,,\n"))
	require.NoError(t, err)
	stock, err := importer.ReadStock(strings.NewReader(
		"PRODUCTS,QUANTITY,UNIT_PRICE,EXPIRY_DATE\n" +
			"azufre mojable,12.5,18.20,2026-12-31\n" +
			"Abamectina,3,95,\n" +
			"Cobre Nordox,4,10,\n" +
			"Abamectina,1,95,\n"))
	require.NoError(t, err)

	res, err := f.catalog.Import(f.ctx, catalog, stock, "admin@fundo")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Lots)
	require.Len(t, res.Rejected, 1)
	require.Len(t, res.StockRejected, 2)
	assert.Contains(t, res.StockRejected[0].Message, "Cobre Nordox")
	assert.Contains(t, res.StockRejected[1].Message, "line 3")

	updated, err := f.catalog.Get(f.ctx, "F001")
	require.NoError(t, err)
	assert.Equal(t, "Azufre Mojable", updated.Name)
	assert.Equal(t, model.CategoryFungicide, updated.Category)
	assert.Equal(t, "7", updated.MinStockThreshold.String(), "threshold kept when the sheet has no MIN_STOCK")

	var lots []model.Lot
	require.NoError(t, f.db.Order("product_code").Find(&lots).Error)
	require.Len(t, lots, 2)
	assert.Equal(t, "F001", lots[0].ProductCode)
	assert.True(t, strings.HasPrefix(lots[0].LotCode, "F001-20250310"))
	assert.Equal(t, service.InitialInventoryRef, lots[0].InvoiceRef)
	assert.Equal(t, "Agro Sur", lots[0].Supplier)
	require.NotNil(t, lots[0].ExpiryDate)
	assert.Equal(t, day(2026, 12, 31), lots[0].ExpiryDate.UTC())
	assert.Equal(t, "I001", lots[1].ProductCode)
	assert.Nil(t, lots[1].ExpiryDate)

	assert.Equal(t, "12.5", f.remaining(t, lots[0].LotCode).String())
}

func TestCatalogCreateAndDisable(t *testing.T) {
	f := newFixture(t)
	f.product(t, "F01", model.CategoryFungicide, "0")
	f.product(t, "H01", model.CategoryHerbicide, "0")

	err := f.catalog.Create(f.ctx, &model.Product{
		Code: " F01 ", Name: "Otro", Unit: model.UnitLiter, Category: model.CategoryFungicide,
	}, "test")
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	err = f.catalog.Create(f.ctx, &model.Product{Code: "X01", Unit: model.UnitLiter, Category: model.CategoryFungicide}, "test")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	f.lot(t, "F01-L1", "F01", "10", "1", nil)
	_, err = f.catalog.Disable(f.ctx, "F01", "admin@fundo")
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	disabled, err := f.catalog.Disable(f.ctx, "H01", "admin@fundo")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOther, disabled.Category)

	others, err := f.catalog.List(f.ctx, model.CategoryOther)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "H01", others[0].Code)

	_, err = f.catalog.Disable(f.ctx, "NOPE", "admin@fundo")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
