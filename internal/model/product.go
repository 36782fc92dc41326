package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitLiter      Unit = "L"
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitMilliliter Unit = "mL"
	UnitPiece      Unit = "unit"
)

type Category string

const (
	CategoryFungicide   Category = "FUNGICIDE"
	CategoryInsecticide Category = "INSECTICIDE"
	CategoryHerbicide   Category = "HERBICIDE"
	CategoryFertilizer  Category = "FERTILIZER"
	CategoryAdjuvant    Category = "ADJUVANT"
	CategoryOther       Category = "OTHER"
)

var Categories = []Category{
	CategoryFungicide, CategoryInsecticide, CategoryHerbicide,
	CategoryFertilizer, CategoryAdjuvant, CategoryOther,
}

// Product is a catalog row. It never stores stock; see the kardex package.
type Product struct {
	BaseModel
	Code              string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"code" validate:"required,max=32"`
	Name              string          `gorm:"type:varchar(255);not null;index" json:"name" validate:"required"`
	ActiveIngredient  string          `gorm:"type:varchar(255)" json:"active_ingredient"`
	Unit              Unit            `gorm:"type:varchar(8);not null" json:"unit_of_measure" validate:"required,oneof=L kg g mL unit"`
	Supplier          string          `gorm:"type:varchar(255)" json:"supplier"`
	Category          Category        `gorm:"type:varchar(16);not null;index" json:"category" validate:"required,oneof=FUNGICIDE INSECTICIDE HERBICIDE FERTILIZER ADJUVANT OTHER"`
	MinStockThreshold decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0" json:"min_stock_threshold" validate:"dnonneg"`
}

// ParseUnit accepts the spellings found in warehouse sheets.
func ParseUnit(s string) (Unit, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L", "LT", "LTS", "LITRO", "LITROS":
		return UnitLiter, true
	case "KG", "KGS", "KILO", "KILOS", "KILOGRAMO":
		return UnitKilogram, true
	case "G", "GR", "GRS", "GRAMO", "GRAMOS":
		return UnitGram, true
	case "ML", "MILILITRO", "MILILITROS", "CC":
		return UnitMilliliter, true
	case "UNIT", "UND", "UNID", "UNIDAD", "UNIDADES", "U":
		return UnitPiece, true
	}
	return "", false
}

// CategoryFromSubgroup maps a warehouse SUBGROUP label onto a category.
// Unrecognized labels fall into OTHER.
func CategoryFromSubgroup(s string) Category {
	up := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(up, "FUNGIC"):
		return CategoryFungicide
	case strings.Contains(up, "INSECT"), strings.Contains(up, "ACARIC"), strings.Contains(up, "NEMATIC"):
		return CategoryInsecticide
	case strings.Contains(up, "HERBIC"):
		return CategoryHerbicide
	case strings.Contains(up, "FERTIL"), strings.Contains(up, "NUTRI"), strings.Contains(up, "FOLIAR"), strings.Contains(up, "BIOESTIM"):
		return CategoryFertilizer
	case strings.Contains(up, "ADJUV"), strings.Contains(up, "ADYUV"), strings.Contains(up, "COADY"), strings.Contains(up, "ADHER"), strings.Contains(up, "SURFACT"):
		return CategoryAdjuvant
	}
	return CategoryOther
}
