package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantityPlaces is the precision every stored quantity is rounded to.
const QuantityPlaces = 5

// Qty normalizes a quantity to five decimal places. All stock comparisons
// run on normalized values, so sub-1e-5 noise can never flip a check.
func Qty(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// SumQty adds quantities and normalizes the result.
func SumQty(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return Qty(total)
}

// DateOnly returns the calendar day of t in loc, as UTC midnight. Stored
// dates always use this form so range filters compare the same way on
// every driver.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD date into the stored form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
