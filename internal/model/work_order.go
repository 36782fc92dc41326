package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	StatusPlanned   OrderStatus = "PLANNED"
	StatusMixed     OrderStatus = "MIXED"
	StatusApplied   OrderStatus = "APPLIED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// OrderEvent names a transition of the work-order state machine.
type OrderEvent string

const (
	EventMix      OrderEvent = "mix"
	EventApply    OrderEvent = "apply"
	EventCancel   OrderEvent = "cancel"
	EventRollback OrderEvent = "rollback" // admin only
	EventCorrect  OrderEvent = "correct"  // admin only, egress correction
)

var orderTransitions = map[OrderStatus]map[OrderEvent]OrderStatus{
	StatusPlanned: {
		EventMix:    StatusMixed,
		EventCancel: StatusCancelled,
	},
	StatusMixed: {
		EventApply:    StatusApplied,
		EventRollback: StatusPlanned,
		EventCorrect:  StatusMixed,
	},
	StatusApplied: {
		EventRollback: StatusPlanned,
		EventCorrect:  StatusMixed,
	},
}

// Next returns the state reached from s on ev.
func (s OrderStatus) Next(ev OrderEvent) (OrderStatus, bool) {
	next, ok := orderTransitions[s][ev]
	return next, ok
}

// Active reports whether the order still needs field work.
func (s OrderStatus) Active() bool {
	return s != StatusApplied && s != StatusCancelled
}

// RecipeLine is one lot + amount + premix volume.
type RecipeLine struct {
	LotCode         string          `json:"lot_code" validate:"required"`
	ProductCode     string          `json:"product_code,omitempty"`
	ProductQuantity decimal.Decimal `json:"product_quantity" validate:"dpos"`
	PremixVolumeL   decimal.Decimal `json:"premix_volume_l" validate:"dpos"`
}

// ApplicationRecord is filled by the tractor operator after spraying.
type ApplicationRecord struct {
	TractorID      string          `json:"tractor_id" validate:"required"`
	ImplementID    string          `json:"implement_id"`
	Operator       string          `json:"operator"`
	HourMeterStart decimal.Decimal `json:"hour_meter_start" validate:"dnonneg"`
	HourMeterEnd   decimal.Decimal `json:"hour_meter_end" validate:"dnonneg"`
	WaterVolumeL   decimal.Decimal `json:"water_volume_l" validate:"dnonneg"`
	MixVolumeL     decimal.Decimal `json:"mix_volume_l" validate:"dnonneg"`
	NozzleType     string          `json:"nozzle_type"`
	NozzleCount    int             `json:"nozzle_count" validate:"gte=0"`
	PressureBar    decimal.Decimal `json:"pressure_bar" validate:"dnonneg"`
	Observations   string          `json:"observations"`
}

// Hours is the hour-meter delta.
func (a ApplicationRecord) Hours() decimal.Decimal {
	return a.HourMeterEnd.Sub(a.HourMeterStart)
}

// WorkOrder is a scheduled spray operation. Recipe and application record
// are stored as structured JSON columns.
type WorkOrder struct {
	BaseModel
	OrderID           string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	Status            OrderStatus    `gorm:"type:varchar(16);not null;index" json:"status"`
	ScheduledDate     time.Time      `gorm:"type:date;not null;index" json:"scheduled_date"`
	Sector            string         `gorm:"type:varchar(64);not null;index" json:"sector"`
	Shift             Shift          `gorm:"type:varchar(8);not null" json:"shift"`
	Goal              string         `gorm:"type:varchar(255)" json:"goal"`
	Recipe            datatypes.JSON `json:"recipe"`
	MixOperator       string         `gorm:"type:varchar(255)" json:"mix_operator,omitempty"`
	MixedAt           *time.Time     `json:"mixed_at,omitempty"`
	ApplicationRecord datatypes.JSON `json:"application_record,omitempty"`
	CompletedAt       *time.Time     `gorm:"index" json:"completed_at,omitempty"`
}

// OrderIDLayout keeps millisecond resolution so two planners rarely collide.
const OrderIDLayout = "20060102150405.000"

func NewOrderID(at time.Time) string {
	return "OT-" + at.UTC().Format(OrderIDLayout)
}

func (w *WorkOrder) Lines() ([]RecipeLine, error) {
	var lines []RecipeLine
	if len(w.Recipe) == 0 {
		return lines, nil
	}
	if err := json.Unmarshal(w.Recipe, &lines); err != nil {
		return nil, fmt.Errorf("decode recipe of %s: %w", w.OrderID, err)
	}
	return lines, nil
}

func (w *WorkOrder) SetLines(lines []RecipeLine) error {
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	w.Recipe = datatypes.JSON(raw)
	return nil
}

// Application returns nil when no record is attached.
func (w *WorkOrder) Application() (*ApplicationRecord, error) {
	if len(w.ApplicationRecord) == 0 || string(w.ApplicationRecord) == "null" {
		return nil, nil
	}
	var rec ApplicationRecord
	if err := json.Unmarshal(w.ApplicationRecord, &rec); err != nil {
		return nil, fmt.Errorf("decode application record of %s: %w", w.OrderID, err)
	}
	return &rec, nil
}

func (w *WorkOrder) SetApplication(rec *ApplicationRecord) error {
	if rec == nil {
		w.ApplicationRecord = nil
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	w.ApplicationRecord = datatypes.JSON(raw)
	return nil
}
