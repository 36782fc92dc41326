package kardex

import (
	"sort"
	"time"

	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
)

type MovementKind string

const (
	MovementIn  MovementKind = "IN"
	MovementOut MovementKind = "OUT"
)

// Movement is one line of the chronological kardex of a product.
type Movement struct {
	Date      time.Time       `json:"date"`
	Kind      MovementKind    `json:"kind"`
	LotCode   string          `json:"lot_code"`
	Reference string          `json:"reference"`
	Sector    string          `json:"sector,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Balance   decimal.Decimal `json:"balance"`
}

// Movements merges ingress and egress rows by day and carries a running
// balance. Within a day ingress sorts first.
func Movements(lots []model.Lot, egresses []model.Egress) []Movement {
	out := make([]Movement, 0, len(lots)+len(egresses))
	for _, l := range lots {
		out = append(out, Movement{
			Date:      l.IngressDate,
			Kind:      MovementIn,
			LotCode:   l.LotCode,
			Reference: l.InvoiceRef,
			Quantity:  model.Qty(l.InitialQuantity),
		})
	}
	for _, e := range egresses {
		ref := e.EgressID
		if e.OrderID != nil {
			ref = *e.OrderID
		}
		out = append(out, Movement{
			Date:      e.Date,
			Kind:      MovementOut,
			LotCode:   e.LotCode,
			Reference: ref,
			Sector:    e.Sector,
			Quantity:  model.Qty(e.Quantity),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date.UTC().Truncate(24*time.Hour), out[j].Date.UTC().Truncate(24*time.Hour)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == MovementIn
		}
		return out[i].Date.Before(out[j].Date)
	})

	balance := decimal.Zero
	for i := range out {
		if out[i].Kind == MovementIn {
			balance = balance.Add(out[i].Quantity)
		} else {
			balance = balance.Sub(out[i].Quantity)
		}
		out[i].Balance = model.Qty(balance)
	}
	return out
}
