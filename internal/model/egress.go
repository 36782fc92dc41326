package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Shift string

const (
	ShiftDay   Shift = "Day"
	ShiftNight Shift = "Night"
)

// Egress is one consumption row, always tied to a single lot. Rows posted
// by a work order carry the order id and the recipe line number.
type Egress struct {
	BaseModel
	EgressID      string          `gorm:"type:varchar(96);uniqueIndex;not null" json:"egress_id"`
	Date          time.Time       `gorm:"not null;index" json:"date"`
	LotCode       string          `gorm:"type:varchar(64);not null;index" json:"lot_code" validate:"required"`
	ProductCode   string          `gorm:"type:varchar(32);not null;index" json:"product_code"`
	OrderID       *string         `gorm:"type:varchar(64);index" json:"order_id,omitempty"`
	Line          int             `gorm:"not null;default:0" json:"line"`
	Sector        string          `gorm:"type:varchar(64);index" json:"sector" validate:"required"`
	Shift         Shift           `gorm:"type:varchar(8)" json:"shift" validate:"required,oneof=Day Night"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,5);not null" json:"quantity" validate:"dpos"`
	TreatmentGoal string          `gorm:"type:varchar(255)" json:"treatment_goal"`
}

// OrderEgressID is deterministic so a retried mix collides instead of
// double-posting.
func OrderEgressID(orderID string, line int) string {
	return fmt.Sprintf("%s-%02d", orderID, line)
}
