package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go-fundo-ops/pkg/validator"

	"gorm.io/datatypes"
)

type JournalKind string

const (
	JournalPhenology     JournalKind = "phenology"
	JournalTraps         JournalKind = "traps"
	JournalBerryDiameter JournalKind = "berry_diameter"
	JournalThinning      JournalKind = "thinning"
	JournalSanitary      JournalKind = "sanitary"
)

var JournalKinds = []JournalKind{
	JournalPhenology, JournalTraps, JournalBerryDiameter, JournalThinning, JournalSanitary,
}

// JournalBase is shared by every observation journal. The core only indexes
// sector and date; Payload follows the per-journal schema below.
type JournalBase struct {
	BaseModel
	RowID     string         `gorm:"type:varchar(96);uniqueIndex;not null" json:"row_id" validate:"required,max=96"`
	Date      time.Time      `gorm:"type:date;not null;index" json:"date" validate:"required"`
	Sector    string         `gorm:"type:varchar(64);not null;index" json:"sector" validate:"required"`
	Evaluator string         `gorm:"type:varchar(255);not null" json:"evaluator" validate:"required"`
	Payload   datatypes.JSON `json:"payload"`
}

func (j *JournalBase) Journal() *JournalBase { return j }

// JournalRow is implemented by every journal table struct.
type JournalRow interface {
	Journal() *JournalBase
	TableName() string
}

type PhenologyRecord struct{ JournalBase }
type TrapRecord struct{ JournalBase }
type BerryDiameterRecord struct{ JournalBase }
type ThinningRecord struct{ JournalBase }
type SanitaryRecord struct{ JournalBase }

func (PhenologyRecord) TableName() string     { return "phenology_records" }
func (TrapRecord) TableName() string          { return "trap_records" }
func (BerryDiameterRecord) TableName() string { return "berry_diameter_records" }
func (ThinningRecord) TableName() string      { return "thinning_records" }
func (SanitaryRecord) TableName() string      { return "sanitary_records" }

// JournalModels lists one zero value per journal table, for migrations.
func JournalModels() []interface{} {
	return []interface{}{
		&PhenologyRecord{}, &TrapRecord{}, &BerryDiameterRecord{}, &ThinningRecord{}, &SanitaryRecord{},
	}
}

// NewJournalRow wraps base in the table struct of kind.
func NewJournalRow(kind JournalKind, base JournalBase) (JournalRow, error) {
	switch kind {
	case JournalPhenology:
		return &PhenologyRecord{base}, nil
	case JournalTraps:
		return &TrapRecord{base}, nil
	case JournalBerryDiameter:
		return &BerryDiameterRecord{base}, nil
	case JournalThinning:
		return &ThinningRecord{base}, nil
	case JournalSanitary:
		return &SanitaryRecord{base}, nil
	}
	return nil, fmt.Errorf("unknown journal %q", kind)
}

func ParseJournalKind(s string) (JournalKind, bool) {
	for _, k := range JournalKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Payload schemas, one per journal.

// PhenologyStages is the number of stage-count columns on a phenology row.
const PhenologyStages = 5

type PhenologyPayload struct {
	Row    int   `json:"row" validate:"gte=1,lte=25"`
	Stages []int `json:"stages" validate:"len=5,dive,gte=0"`
}

type TrapCapture struct {
	Species string `json:"species" validate:"required"`
	Count   int    `json:"count" validate:"gte=0"`
}

type TrapPayload struct {
	TrapID   string        `json:"trap_id" validate:"required"`
	Captures []TrapCapture `json:"captures" validate:"required,dive"`
}

func (p TrapPayload) Total() int {
	total := 0
	for _, c := range p.Captures {
		total += c.Count
	}
	return total
}

type BerryDiameterPayload struct {
	Plant        int       `json:"plant" validate:"gte=1,lte=25"`
	Measurements []float64 `json:"measurements" validate:"len=6,dive,gte=0"`
}

type ThinningPayload struct {
	Worker string `json:"worker" validate:"required"`
	Tandas int    `json:"tandas" validate:"gte=0"`
}

type SanitaryFinding struct {
	Name      string  `json:"name" validate:"required"`
	Incidence float64 `json:"incidence" validate:"gte=0"`
	Severity  int     `json:"severity" validate:"gte=0,lte=4"`
}

type SanitaryPayload struct {
	Pests     []SanitaryFinding `json:"pests" validate:"dive"`
	Diseases  []SanitaryFinding `json:"diseases" validate:"dive"`
	Perimeter []SanitaryFinding `json:"perimeter" validate:"dive"`
}

func newPayload(kind JournalKind) (interface{}, error) {
	switch kind {
	case JournalPhenology:
		return &PhenologyPayload{}, nil
	case JournalTraps:
		return &TrapPayload{}, nil
	case JournalBerryDiameter:
		return &BerryDiameterPayload{}, nil
	case JournalThinning:
		return &ThinningPayload{}, nil
	case JournalSanitary:
		return &SanitaryPayload{}, nil
	}
	return nil, fmt.Errorf("unknown journal %q", kind)
}

// DecodePayload strictly decodes raw into the schema of kind and validates it.
// The returned value is a pointer to the payload struct.
func DecodePayload(kind JournalKind, raw []byte) (interface{}, error) {
	p, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("payload does not match %s schema: %w", kind, err)
	}
	if errs := validator.ValidateStruct(p); len(errs) > 0 {
		return nil, fmt.Errorf("%s payload: %s", kind, validator.Message(errs))
	}
	return p, nil
}

// Session groups journal rows by (date, sector, evaluator).
type Session struct {
	Date      time.Time `json:"date"`
	Sector    string    `json:"sector"`
	Evaluator string    `json:"evaluator"`
}

func (j *JournalBase) Session() Session {
	return Session{Date: j.Date, Sector: j.Sector, Evaluator: j.Evaluator}
}
