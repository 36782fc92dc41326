package importer

import (
	"io"
	"strconv"
	"strings"
	"time"

	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
)

// Catalog sheet columns. MIN_STOCK is optional.
const (
	ColCode             = "CODIGO"
	ColName             = "PRODUCTS"
	ColActiveIngredient = "ACTIVE_INGREDIENT"
	ColUnit             = "UM"
	ColSupplier         = "SUPPLIER"
	ColSubgroup         = "SUBGROUP"
	ColMinStock         = "MIN_STOCK"
)

// Stock sheet columns.
const (
	ColQuantity   = "QUANTITY"
	ColUnitPrice  = "UNIT_PRICE"
	ColExpiryDate = "EXPIRY_DATE"
)

var CatalogHeader = []string{ColCode, ColName, ColActiveIngredient, ColUnit, ColSupplier, ColSubgroup, ColMinStock}

type CatalogRow struct {
	Line             int
	Code             string
	Name             string
	ActiveIngredient string
	Unit             model.Unit
	Supplier         string
	Category         model.Category
	MinStock         *decimal.Decimal
}

// Product builds the catalog row; MinStock stays zero when the sheet had none.
func (r CatalogRow) Product() *model.Product {
	p := &model.Product{
		Code:             r.Code,
		Name:             r.Name,
		ActiveIngredient: r.ActiveIngredient,
		Unit:             r.Unit,
		Supplier:         r.Supplier,
		Category:         r.Category,
	}
	if r.MinStock != nil {
		p.MinStockThreshold = *r.MinStock
	}
	return p
}

type CatalogSheet struct {
	Rows     []CatalogRow
	Rejected []RowError
}

// ReadCatalog parses a catalog upload. Column order does not matter and
// unknown columns are ignored. Rows without CODIGO, with an unknown unit or
// with a bad MIN_STOCK are rejected individually.
func ReadCatalog(r io.Reader) (*CatalogSheet, error) {
	s, err := load(r)
	if err != nil {
		return nil, err
	}
	if err := s.require(ColCode, ColName, ColUnit); err != nil {
		return nil, err
	}

	out := &CatalogSheet{}
	seen := make(map[string]int)
	for i := 0; i < s.rows(); i++ {
		line := i + 2
		code := s.str(ColCode, i)
		if code == "" {
			out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColCode, Message: "missing product code"})
			continue
		}
		if prev, dup := seen[code]; dup {
			out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColCode, Message: "duplicate of line " + strconv.Itoa(prev)})
			continue
		}
		name := s.str(ColName, i)
		if name == "" {
			out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColName, Message: "missing product name"})
			continue
		}
		unit, ok := model.ParseUnit(s.str(ColUnit, i))
		if !ok {
			out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColUnit, Message: "unknown unit " + quote(s.str(ColUnit, i))})
			continue
		}

		row := CatalogRow{
			Line:             line,
			Code:             code,
			Name:             name,
			ActiveIngredient: s.str(ColActiveIngredient, i),
			Unit:             unit,
			Supplier:         s.str(ColSupplier, i),
			Category:         model.CategoryFromSubgroup(s.str(ColSubgroup, i)),
		}
		if v := s.str(ColMinStock, i); v != "" {
			min, err := parseNumber(v)
			if err != nil || min.IsNegative() {
				out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColMinStock, Message: "invalid minimum stock " + quote(v)})
				continue
			}
			min = model.Qty(min)
			row.MinStock = &min
		}
		seen[code] = line
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

type StockRow struct {
	Line        int
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	ExpiryDate  *time.Time
	Supplier    string
}

type StockSheet struct {
	Rows     []StockRow
	Rejected []RowError
}

// ReadStock parses the opening-stock sheet that accompanies a catalog.
// Products are matched by name later, against the stored catalog.
func ReadStock(r io.Reader) (*StockSheet, error) {
	s, err := load(r)
	if err != nil {
		return nil, err
	}
	if err := s.require(ColName, ColQuantity); err != nil {
		return nil, err
	}

	out := &StockSheet{}
	for i := 0; i < s.rows(); i++ {
		line := i + 2
		name := s.str(ColName, i)
		if name == "" {
			out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColName, Message: "missing product name"})
			continue
		}
		qty, err := parseNumber(s.str(ColQuantity, i))
		if err != nil || !qty.IsPositive() {
			out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColQuantity, Message: "quantity must be a positive number"})
			continue
		}
		row := StockRow{Line: line, ProductName: name, Quantity: model.Qty(qty), UnitPrice: decimal.Zero, Supplier: s.str(ColSupplier, i)}

		if v := s.str(ColUnitPrice, i); v != "" {
			price, err := parseNumber(v)
			if err != nil || price.IsNegative() {
				out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColUnitPrice, Message: "invalid unit price " + quote(v)})
				continue
			}
			row.UnitPrice = model.Qty(price)
		}
		if v := s.str(ColExpiryDate, i); v != "" {
			exp, err := parseDate(v)
			if err != nil {
				out.Rejected = append(out.Rejected, RowError{Line: line, Column: ColExpiryDate, Message: err.Error()})
				continue
			}
			row.ExpiryDate = &exp
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func quote(s string) string { return "'" + strings.TrimSpace(s) + "'" }
