package importer

import (
	"strings"
	"testing"

	"go-fundo-ops/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestReadCatalog(t *testing.T) {
	csv := "SUBGROUP;UM;PRODUCTS;CODIGO;COLOR\n" +
		"FUNGICIDAS;L;Azufre Mojable;F001;rojo\n" +
		"INSECTICIDAS;kg;Abamectina;I001;azul\n" +
		";LT;Sin codigo;;verde\n" +
		"HERBICIDAS;barril;Glifosato;H001;\n" +
		"COADYUVANTES;L;Repetido;F001;\n"

	sheet, err := ReadCatalog(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "F001", sheet.Rows[0].Code)
	assert.Equal(t, model.UnitLiter, sheet.Rows[0].Unit)
	assert.Equal(t, model.CategoryFungicide, sheet.Rows[0].Category)
	assert.Nil(t, sheet.Rows[0].MinStock)
	assert.Equal(t, model.CategoryInsecticide, sheet.Rows[1].Category)

	require.Len(t, sheet.Rejected, 3)
	assert.Equal(t, 4, sheet.Rejected[0].Line)
	assert.Equal(t, ColCode, sheet.Rejected[0].Column)
	assert.Equal(t, ColUnit, sheet.Rejected[1].Column)
	assert.Contains(t, sheet.Rejected[2].Message, "duplicate of line 2")
}

func TestReadCatalogRequiresCodeColumn(t *testing.T) {
	_, err := ReadCatalog(strings.NewReader("PRODUCTS,UM\nAzufre,L\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColCode)
}

func TestReadCatalogWindows1252(t *testing.T) {
	text := "CÓDIGO;PRODUCTO;UNIDAD;SUBGRUPO;STOCK_MÍNIMO\nF002;Óxido Cuproso;KG;FUNGICIDA;1.234,5\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)

	sheet, err := ReadCatalog(strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "Óxido Cuproso", sheet.Rows[0].Name)
	require.NotNil(t, sheet.Rows[0].MinStock)
	assert.Equal(t, "1234.5", sheet.Rows[0].MinStock.String())
}

func TestReadStock(t *testing.T) {
	csv := "PRODUCTS,QUANTITY,UNIT_PRICE,EXPIRY_DATE\n" +
		"Azufre Mojable,12.5,18.20,2026-12-31\n" +
		"Abamectina,0,10,\n" +
		"Glifosato,3,abc,\n" +
		"Mancozeb,4,,31/01/2027\n"

	sheet, err := ReadStock(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "12.5", sheet.Rows[0].Quantity.String())
	assert.Equal(t, "18.2", sheet.Rows[0].UnitPrice.String())
	require.NotNil(t, sheet.Rows[0].ExpiryDate)
	assert.Equal(t, "2026-12-31", sheet.Rows[0].ExpiryDate.Format("2006-01-02"))

	assert.True(t, sheet.Rows[1].UnitPrice.IsZero())
	assert.Equal(t, "2027-01-31", sheet.Rows[1].ExpiryDate.Format("2006-01-02"))

	require.Len(t, sheet.Rejected, 2)
	assert.Equal(t, ColQuantity, sheet.Rejected[0].Column)
	assert.Equal(t, ColUnitPrice, sheet.Rejected[1].Column)
}

func TestParseNumber(t *testing.T) {
	cases := map[string]string{
		"1234.5":   "1234.5",
		"1234,5":   "1234.5",
		"1.234,50": "1234.5",
		"1,234.50": "1234.5",
		" 7 ":      "7",
		"0,00001":  "0.00001",
	}
	for in, want := range cases {
		got, err := parseNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
	_, err := parseNumber("x")
	assert.Error(t, err)
}
