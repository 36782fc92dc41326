// Package kardex derives stock from the ingress (lot) and egress journals.
// Nothing here touches storage; callers load the journals and pass them in.
package kardex

import (
	"sort"
	"time"

	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
)

type LotBalance struct {
	LotCode     string          `json:"lot_code"`
	ProductCode string          `json:"product_code"`
	IngressDate time.Time       `json:"ingress_date"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Initial     decimal.Decimal `json:"initial_quantity"`
	Consumed    decimal.Decimal `json:"consumed"`
	Remaining   decimal.Decimal `json:"remaining"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Value       decimal.Decimal `json:"lot_value"`
}

type ProductBalance struct {
	ProductCode string          `json:"product_code"`
	Name        string          `json:"name"`
	Category    model.Category  `json:"category"`
	Unit        model.Unit      `json:"unit_of_measure"`
	Remaining   decimal.Decimal `json:"remaining"`
	Value       decimal.Decimal `json:"value"`
	MinStock    decimal.Decimal `json:"min_stock_threshold"`
	Lots        int             `json:"lots"`
}

// LotBalances computes remaining = initial - consumed for each lot, in the
// order given.
func LotBalances(lots []model.Lot, consumed map[string]decimal.Decimal) []LotBalance {
	out := make([]LotBalance, 0, len(lots))
	for _, l := range lots {
		used := model.Qty(consumed[l.LotCode])
		remaining := model.Qty(l.InitialQuantity.Sub(used))
		out = append(out, LotBalance{
			LotCode:     l.LotCode,
			ProductCode: l.ProductCode,
			IngressDate: l.IngressDate,
			ExpiryDate:  l.ExpiryDate,
			Initial:     model.Qty(l.InitialQuantity),
			Consumed:    used,
			Remaining:   remaining,
			UnitPrice:   l.UnitPrice,
			Value:       remaining.Mul(l.UnitPrice),
		})
	}
	return out
}

// ProductBalances aggregates lot balances per catalog product. Products
// without lots appear with zero stock.
func ProductBalances(products []model.Product, lots []LotBalance) []ProductBalance {
	byCode := make(map[string]*ProductBalance, len(products))
	out := make([]ProductBalance, len(products))
	for i, p := range products {
		out[i] = ProductBalance{
			ProductCode: p.Code,
			Name:        p.Name,
			Category:    p.Category,
			Unit:        p.Unit,
			Remaining:   decimal.Zero,
			Value:       decimal.Zero,
			MinStock:    p.MinStockThreshold,
		}
		byCode[p.Code] = &out[i]
	}
	for _, l := range lots {
		pb, ok := byCode[l.ProductCode]
		if !ok {
			continue
		}
		pb.Remaining = model.Qty(pb.Remaining.Add(l.Remaining))
		pb.Value = pb.Value.Add(l.Value)
		pb.Lots++
	}
	return out
}

// Available is the check_availability predicate. Both sides are rounded to
// five places first, so requested == remaining passes and anything at least
// 1e-5 above it fails.
func Available(remaining, requested decimal.Decimal) bool {
	return model.Qty(requested).LessThanOrEqual(model.Qty(remaining))
}

// Expiring returns lots with stock whose expiry falls in
// [today, today+windowDays], nearest expiry first.
func Expiring(lots []LotBalance, today time.Time, windowDays int) []LotBalance {
	until := today.AddDate(0, 0, windowDays)
	var out []LotBalance
	for _, l := range lots {
		if l.ExpiryDate == nil || !l.Remaining.IsPositive() {
			continue
		}
		exp := *l.ExpiryDate
		if exp.Before(today) || exp.After(until) {
			continue
		}
		out = append(out, l)
	}
	sortByExpiry(out)
	return out
}

// LowStock returns products whose remaining is below threshold x multiplier.
func LowStock(products []ProductBalance, multiplier decimal.Decimal) []ProductBalance {
	var out []ProductBalance
	for _, p := range products {
		limit := model.Qty(p.MinStock.Mul(multiplier))
		if p.Remaining.LessThan(limit) {
			out = append(out, p)
		}
	}
	return out
}

// Suggest orders the lots with stock for recipe building: nearest expiry
// first, lots without expiry last, then oldest ingress.
func Suggest(lots []LotBalance) []LotBalance {
	var out []LotBalance
	for _, l := range lots {
		if l.Remaining.IsPositive() {
			out = append(out, l)
		}
	}
	sortByExpiry(out)
	return out
}

func sortByExpiry(lots []LotBalance) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i].ExpiryDate, lots[j].ExpiryDate
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		if !lots[i].IngressDate.Equal(lots[j].IngressDate) {
			return lots[i].IngressDate.Before(lots[j].IngressDate)
		}
		return lots[i].LotCode < lots[j].LotCode
	})
}

// TotalValue sums lot values.
func TotalValue(lots []LotBalance) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.Value)
	}
	return total
}

// ValueByCategory groups product values; every category is present.
func ValueByCategory(products []ProductBalance) map[model.Category]decimal.Decimal {
	out := make(map[model.Category]decimal.Decimal, len(model.Categories))
	for _, c := range model.Categories {
		out[c] = decimal.Zero
	}
	for _, p := range products {
		out[p.Category] = out[p.Category].Add(p.Value)
	}
	return out
}
