package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LotCodeLayout is the timestamp part of a generated lot code.
const LotCodeLayout = "20060102150405"

// Lot is one ingress of a product: the ingress journal row and the unit
// at which remaining stock is tracked.
type Lot struct {
	BaseModel
	LotCode         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"lot_code"`
	ProductCode     string          `gorm:"type:varchar(32);not null;index" json:"product_code" validate:"required"`
	IngressDate     time.Time       `gorm:"not null;index" json:"ingress_date"`
	InitialQuantity decimal.Decimal `gorm:"type:decimal(18,5);not null" json:"initial_quantity" validate:"dpos"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0" json:"unit_price" validate:"dnonneg"`
	Supplier        string          `gorm:"type:varchar(255)" json:"supplier"`
	InvoiceRef      string          `gorm:"type:varchar(64)" json:"invoice_ref"`
	ExpiryDate      *time.Time      `gorm:"type:date;index" json:"expiry_date,omitempty"`
}

func NewLotCode(productCode string, ingress time.Time) string {
	return fmt.Sprintf("%s-%s", productCode, ingress.Format(LotCodeLayout))
}
