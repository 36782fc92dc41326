package export

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"go-fundo-ops/internal/importer"
	"go-fundo-ops/internal/kardex"
	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func fmtDate(t time.Time) string { return t.Format(dateLayout) }

func fmtDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtDate(*t)
}

func fmtQty(d decimal.Decimal) string { return model.Qty(d).String() }

// Catalog renders the catalog with the import header, so the file can be
// uploaded again as is.
func Catalog(products []model.Product) *Workbook {
	sorted := append([]model.Product(nil), products...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	s := Sheet{Name: "catalog", Header: importer.CatalogHeader}
	for _, p := range sorted {
		s.Rows = append(s.Rows, []string{
			p.Code,
			p.Name,
			p.ActiveIngredient,
			string(p.Unit),
			p.Supplier,
			string(p.Category),
			fmtQty(p.MinStockThreshold),
		})
	}
	return &Workbook{Name: "catalog", Sheets: []Sheet{s}}
}

// Kardex renders the stock views plus one movement sheet per product.
func Kardex(products []kardex.ProductBalance, lots []kardex.LotBalance, movements map[string][]kardex.Movement) *Workbook {
	wb := &Workbook{Name: "kardex"}

	byProduct := Sheet{
		Name:   "stock_by_product",
		Header: []string{"product_code", "name", "category", "unit", "remaining", "value", "min_stock_threshold", "lots"},
	}
	for _, p := range products {
		byProduct.Rows = append(byProduct.Rows, []string{
			p.ProductCode, p.Name, string(p.Category), string(p.Unit),
			fmtQty(p.Remaining), p.Value.StringFixed(2), fmtQty(p.MinStock), strconv.Itoa(p.Lots),
		})
	}

	sortedLots := append([]kardex.LotBalance(nil), lots...)
	sort.SliceStable(sortedLots, func(i, j int) bool {
		if !sortedLots[i].IngressDate.Equal(sortedLots[j].IngressDate) {
			return sortedLots[i].IngressDate.Before(sortedLots[j].IngressDate)
		}
		return sortedLots[i].LotCode < sortedLots[j].LotCode
	})
	byLot := Sheet{
		Name:   "stock_by_lot",
		Header: []string{"ingress_date", "lot_code", "product_code", "expiry_date", "initial_quantity", "consumed", "remaining", "unit_price", "lot_value"},
	}
	for _, l := range sortedLots {
		byLot.Rows = append(byLot.Rows, []string{
			fmtDate(l.IngressDate), l.LotCode, l.ProductCode, fmtDatePtr(l.ExpiryDate),
			fmtQty(l.Initial), fmtQty(l.Consumed), fmtQty(l.Remaining), fmtQty(l.UnitPrice), l.Value.StringFixed(2),
		})
	}
	wb.Sheets = append(wb.Sheets, byProduct, byLot)

	codes := make([]string, 0, len(movements))
	for code := range movements {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		s := Sheet{
			Name:   "movements_" + code,
			Header: []string{"date", "kind", "lot_code", "reference", "sector", "quantity", "balance"},
		}
		for _, m := range movements[code] {
			s.Rows = append(s.Rows, []string{
				fmtDate(m.Date), string(m.Kind), m.LotCode, m.Reference, m.Sector, fmtQty(m.Quantity), fmtQty(m.Balance),
			})
		}
		wb.Sheets = append(wb.Sheets, s)
	}
	return wb
}

// Journal renders one sheet per session (date, sector, evaluator), sessions
// in ascending date order. racimosPorTanda converts thinning tandas to
// bunches.
func Journal(kind model.JournalKind, rows []model.JournalBase, racimosPorTanda int) (*Workbook, error) {
	sorted := append([]model.JournalBase(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Sector != b.Sector {
			return a.Sector < b.Sector
		}
		return a.Evaluator < b.Evaluator
	})

	header := journalHeader(kind)
	wb := &Workbook{Name: string(kind)}
	var cur *Sheet
	var curSession model.Session
	for i := range sorted {
		row := &sorted[i]
		if cur == nil || row.Session() != curSession {
			curSession = row.Session()
			wb.Sheets = append(wb.Sheets, Sheet{
				Name:   fmt.Sprintf("%s_%s_%s", fmtDate(row.Date), row.Sector, row.Evaluator),
				Header: header,
			})
			cur = &wb.Sheets[len(wb.Sheets)-1]
		}
		lines, err := journalLines(kind, row, racimosPorTanda)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", row.RowID, err)
		}
		cur.Rows = append(cur.Rows, lines...)
	}
	return wb, nil
}

func journalHeader(kind model.JournalKind) []string {
	base := []string{"date", "sector", "evaluator", "row_id"}
	switch kind {
	case model.JournalPhenology:
		h := append(base, "row")
		for i := 1; i <= model.PhenologyStages; i++ {
			h = append(h, "stage_"+strconv.Itoa(i))
		}
		return h
	case model.JournalTraps:
		return append(base, "trap_id", "species", "count")
	case model.JournalBerryDiameter:
		return append(base, "plant", "m1", "m2", "m3", "m4", "m5", "m6")
	case model.JournalThinning:
		return append(base, "worker", "tandas", "racimos")
	case model.JournalSanitary:
		return append(base, "group", "name", "incidence", "severity")
	}
	return base
}

func journalLines(kind model.JournalKind, row *model.JournalBase, racimosPorTanda int) ([][]string, error) {
	decoded, err := model.DecodePayload(kind, row.Payload)
	if err != nil {
		return nil, err
	}
	prefix := func(cells ...string) []string {
		return append([]string{fmtDate(row.Date), row.Sector, row.Evaluator, row.RowID}, cells...)
	}

	switch p := decoded.(type) {
	case *model.PhenologyPayload:
		cells := []string{strconv.Itoa(p.Row)}
		for _, s := range p.Stages {
			cells = append(cells, strconv.Itoa(s))
		}
		return [][]string{prefix(cells...)}, nil
	case *model.TrapPayload:
		var out [][]string
		for _, c := range p.Captures {
			out = append(out, prefix(p.TrapID, c.Species, strconv.Itoa(c.Count)))
		}
		if len(out) == 0 {
			out = append(out, prefix(p.TrapID, "", "0"))
		}
		return out, nil
	case *model.BerryDiameterPayload:
		cells := []string{strconv.Itoa(p.Plant)}
		for _, m := range p.Measurements {
			cells = append(cells, strconv.FormatFloat(m, 'f', -1, 64))
		}
		return [][]string{prefix(cells...)}, nil
	case *model.ThinningPayload:
		return [][]string{prefix(p.Worker, strconv.Itoa(p.Tandas), strconv.Itoa(p.Tandas*racimosPorTanda))}, nil
	case *model.SanitaryPayload:
		var out [][]string
		groups := []struct {
			name     string
			findings []model.SanitaryFinding
		}{{"pests", p.Pests}, {"diseases", p.Diseases}, {"perimeter", p.Perimeter}}
		for _, g := range groups {
			for _, f := range g.findings {
				out = append(out, prefix(g.name, f.Name, strconv.FormatFloat(f.Incidence, 'f', -1, 64), strconv.Itoa(f.Severity)))
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown journal %q", kind)
}

// WorkOrder renders the detail export: summary, recipe and, once applied,
// the application record.
func WorkOrder(order *model.WorkOrder, egresses []model.Egress) (*Workbook, error) {
	lines, err := order.Lines()
	if err != nil {
		return nil, err
	}
	app, err := order.Application()
	if err != nil {
		return nil, err
	}

	summary := Sheet{
		Name:   "summary",
		Header: []string{"order_id", "status", "scheduled_date", "sector", "shift", "goal", "mix_operator", "mixed_at", "completed_at"},
		Rows: [][]string{{
			order.OrderID, string(order.Status), fmtDate(order.ScheduledDate), order.Sector, string(order.Shift),
			order.Goal, order.MixOperator, fmtTimePtr(order.MixedAt), fmtTimePtr(order.CompletedAt),
		}},
	}

	posted := make(map[int]string, len(egresses))
	for _, e := range egresses {
		posted[e.Line] = e.EgressID
	}
	recipe := Sheet{
		Name:   "recipe",
		Header: []string{"line", "lot_code", "product_code", "product_quantity", "premix_volume_l", "egress_id"},
	}
	for i, l := range lines {
		recipe.Rows = append(recipe.Rows, []string{
			strconv.Itoa(i + 1), l.LotCode, l.ProductCode, fmtQty(l.ProductQuantity), fmtQty(l.PremixVolumeL), posted[i+1],
		})
	}

	wb := &Workbook{Name: order.OrderID, Sheets: []Sheet{summary, recipe}}
	if app != nil {
		wb.Sheets = append(wb.Sheets, Sheet{
			Name: "application",
			Header: []string{
				"tractor_id", "implement_id", "operator", "hour_meter_start", "hour_meter_end", "hours",
				"water_volume_l", "mix_volume_l", "nozzle_type", "nozzle_count", "pressure_bar", "observations",
			},
			Rows: [][]string{{
				app.TractorID, app.ImplementID, app.Operator, app.HourMeterStart.String(), app.HourMeterEnd.String(),
				app.Hours().String(), app.WaterVolumeL.String(), app.MixVolumeL.String(), app.NozzleType,
				strconv.Itoa(app.NozzleCount), app.PressureBar.String(), app.Observations,
			}},
		})
	}
	return wb, nil
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
