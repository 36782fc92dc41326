package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/kardex"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DashboardService interface {
	Summary(ctx context.Context) (*DashboardSummary, error)
	InventoryValue(ctx context.Context) (*InventoryValue, error)
	LowStock(ctx context.Context) ([]kardex.ProductBalance, error)
	Expiring(ctx context.Context, windowDays int) ([]kardex.LotBalance, error)
	ActiveOrders(ctx context.Context) (int64, error)
	TractorHours(ctx context.Context, from, to time.Time) (*TractorHoursReport, error)
	BerryDiameter(ctx context.Context) ([]SectorDiameter, error)
	TrapPressure(ctx context.Context, threshold *float64) ([]SectorTrapPressure, error)
	ThinningRanking(ctx context.Context, from, to time.Time) ([]WorkerBunches, error)
	Digest(ctx context.Context) (*model.AlertDigest, error)
}

type DashboardSummary struct {
	InventoryValue decimal.Decimal `json:"inventory_value"`
	Products       int             `json:"products"`
	LotsWithStock  int             `json:"lots_with_stock"`
	LowStock       int             `json:"low_stock"`
	Expiring       int             `json:"expiring"`
	ActiveOrders   int64           `json:"active_orders"`
}

type InventoryValue struct {
	Total      decimal.Decimal                    `json:"total"`
	ByCategory map[model.Category]decimal.Decimal `json:"by_category"`
}

type TractorHours struct {
	TractorID string          `json:"tractor_id"`
	Hours     decimal.Decimal `json:"hours"`
	Orders    int             `json:"orders"`
}

type TractorHoursReport struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Total     decimal.Decimal `json:"total"`
	ByTractor []TractorHours  `json:"by_tractor"`
}

type SectorDiameter struct {
	Sector    string    `json:"sector"`
	Date      time.Time `json:"date"`
	Evaluator string    `json:"evaluator"`
	Cells     int       `json:"cells"`
	Mean      float64   `json:"mean_mm"`
}

type TrapMTD struct {
	TrapID   string  `json:"trap_id"`
	Captures int     `json:"captures"`
	MTD      float64 `json:"mtd"`
}

type SectorTrapPressure struct {
	Sector    string    `json:"sector"`
	Date      time.Time `json:"date"`
	Evaluator string    `json:"evaluator"`
	Traps     []TrapMTD `json:"traps"`
	Alert     bool      `json:"alert"`
}

type WorkerBunches struct {
	Worker  string `json:"worker"`
	Tandas  int    `json:"tandas"`
	Racimos int    `json:"racimos"`
}

type dashboardService struct {
	stock       KardexService
	orderRepo   repository.WorkOrderRepository
	journalRepo repository.JournalRepository
	settings    Settings
	logger      *zap.Logger
}

func NewDashboardService(
	stock KardexService,
	orderRepo repository.WorkOrderRepository,
	journalRepo repository.JournalRepository,
	settings Settings,
	logger *zap.Logger,
) DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dashboardService{
		stock:       stock,
		orderRepo:   orderRepo,
		journalRepo: journalRepo,
		settings:    settings,
		logger:      logger,
	}
}

func (s *dashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	snap, err := s.stock.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.orderRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	withStock := 0
	for _, l := range snap.Lots {
		if l.Remaining.IsPositive() {
			withStock++
		}
	}
	return &DashboardSummary{
		InventoryValue: kardex.TotalValue(snap.Lots),
		Products:       len(snap.Products),
		LotsWithStock:  withStock,
		LowStock:       len(kardex.LowStock(snap.Balances, s.settings.LowStockMultiplier)),
		Expiring:       len(kardex.Expiring(snap.Lots, s.settings.today(), s.settings.ExpiringWindowDays)),
		ActiveOrders:   active,
	}, nil
}

func (s *dashboardService) InventoryValue(ctx context.Context) (*InventoryValue, error) {
	snap, err := s.stock.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &InventoryValue{
		Total:      kardex.TotalValue(snap.Lots),
		ByCategory: kardex.ValueByCategory(snap.Balances),
	}, nil
}

func (s *dashboardService) LowStock(ctx context.Context) ([]kardex.ProductBalance, error) {
	return s.stock.LowStockProducts(ctx)
}

func (s *dashboardService) Expiring(ctx context.Context, windowDays int) ([]kardex.LotBalance, error) {
	return s.stock.ExpiringLots(ctx, windowDays)
}

func (s *dashboardService) ActiveOrders(ctx context.Context) (int64, error) {
	return s.orderRepo.CountActive(ctx)
}

// TractorHours sums hour-meter deltas of orders completed between the local
// days from and to, both inclusive.
func (s *dashboardService) TractorHours(ctx context.Context, from, to time.Time) (*TractorHoursReport, error) {
	if to.Before(from) {
		return nil, apperr.Validation("window end %s is before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	loc := s.settings.loc()
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	orders, err := s.orderRepo.FindCompletedBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}

	report := &TractorHoursReport{From: from, To: to, Total: decimal.Zero, ByTractor: []TractorHours{}}
	byTractor := make(map[string]*TractorHours)
	for i := range orders {
		rec, err := orders[i].Application()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		hours := rec.Hours()
		report.Total = report.Total.Add(hours)
		th, ok := byTractor[rec.TractorID]
		if !ok {
			th = &TractorHours{TractorID: rec.TractorID, Hours: decimal.Zero}
			byTractor[rec.TractorID] = th
		}
		th.Hours = th.Hours.Add(hours)
		th.Orders++
	}
	for _, th := range byTractor {
		report.ByTractor = append(report.ByTractor, *th)
	}
	sort.Slice(report.ByTractor, func(i, j int) bool {
		return report.ByTractor[i].TractorID < report.ByTractor[j].TractorID
	})
	return report, nil
}

// BerryDiameter averages the measured cells (> 0) of the most recent
// session of each sector.
func (s *dashboardService) BerryDiameter(ctx context.Context) ([]SectorDiameter, error) {
	rows, err := s.journalRepo.FindRows(ctx, model.JournalBerryDiameter, repository.JournalFilter{})
	if err != nil {
		return nil, err
	}

	out := []SectorDiameter{}
	for _, group := range latestSessions(rows) {
		sd := SectorDiameter{Sector: group.session.Sector, Date: group.session.Date, Evaluator: group.session.Evaluator}
		sum := 0.0
		for _, r := range group.rows {
			p, err := model.DecodePayload(model.JournalBerryDiameter, r.Payload)
			if err != nil {
				s.logger.Warn("skipping unreadable berry row", zap.String("row_id", r.RowID), zap.Error(err))
				continue
			}
			for _, m := range p.(*model.BerryDiameterPayload).Measurements {
				if m > 0 {
					sum += m
					sd.Cells++
				}
			}
		}
		if sd.Cells > 0 {
			sd.Mean = round2(sum / float64(sd.Cells))
		}
		out = append(out, sd)
	}
	return out, nil
}

// TrapPressure computes captures per trap per day for the most recent
// session of each sector. A sector is in alert when any trap reaches the
// threshold.
func (s *dashboardService) TrapPressure(ctx context.Context, threshold *float64) ([]SectorTrapPressure, error) {
	limit := s.settings.TrapMTDThreshold
	if threshold != nil {
		if *threshold < 0 {
			return nil, apperr.Validation("threshold must not be negative")
		}
		limit = *threshold
	}
	days := s.settings.TrapEvaluationDays
	if days <= 0 {
		days = 7
	}

	rows, err := s.journalRepo.FindRows(ctx, model.JournalTraps, repository.JournalFilter{})
	if err != nil {
		return nil, err
	}

	out := []SectorTrapPressure{}
	for _, group := range latestSessions(rows) {
		sp := SectorTrapPressure{Sector: group.session.Sector, Date: group.session.Date, Evaluator: group.session.Evaluator, Traps: []TrapMTD{}}
		captures := make(map[string]int)
		var traps []string
		for _, r := range group.rows {
			p, err := model.DecodePayload(model.JournalTraps, r.Payload)
			if err != nil {
				s.logger.Warn("skipping unreadable trap row", zap.String("row_id", r.RowID), zap.Error(err))
				continue
			}
			tp := p.(*model.TrapPayload)
			if _, seen := captures[tp.TrapID]; !seen {
				traps = append(traps, tp.TrapID)
			}
			captures[tp.TrapID] += tp.Total()
		}
		sort.Strings(traps)
		for _, id := range traps {
			mtd := float64(captures[id]) / float64(days)
			sp.Traps = append(sp.Traps, TrapMTD{TrapID: id, Captures: captures[id], MTD: mtd})
			if mtd >= limit {
				sp.Alert = true
			}
		}
		out = append(out, sp)
	}
	return out, nil
}

// ThinningRanking totals estimated bunches per worker over journal dates
// from..to inclusive, most bunches first.
func (s *dashboardService) ThinningRanking(ctx context.Context, from, to time.Time) ([]WorkerBunches, error) {
	if to.Before(from) {
		return nil, apperr.Validation("window end %s is before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	f, t := model.DateOnly(from, time.UTC), model.DateOnly(to, time.UTC)
	rows, err := s.journalRepo.FindRows(ctx, model.JournalThinning, repository.JournalFilter{From: &f, To: &t})
	if err != nil {
		return nil, err
	}

	perBunch := s.settings.RacimosPorTanda
	tandas := make(map[string]int)
	for _, r := range rows {
		p, err := model.DecodePayload(model.JournalThinning, r.Payload)
		if err != nil {
			s.logger.Warn("skipping unreadable thinning row", zap.String("row_id", r.RowID), zap.Error(err))
			continue
		}
		tp := p.(*model.ThinningPayload)
		tandas[tp.Worker] += tp.Tandas
	}

	out := make([]WorkerBunches, 0, len(tandas))
	for w, n := range tandas {
		out = append(out, WorkerBunches{Worker: w, Tandas: n, Racimos: n * perBunch})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Racimos != out[j].Racimos {
			return out[i].Racimos > out[j].Racimos
		}
		return out[i].Worker < out[j].Worker
	})
	return out, nil
}

// Digest collects what needs attention today.
func (s *dashboardService) Digest(ctx context.Context) (*model.AlertDigest, error) {
	snap, err := s.stock.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.orderRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	traps, err := s.TrapPressure(ctx, nil)
	if err != nil {
		return nil, err
	}

	d := &model.AlertDigest{
		Date:           s.settings.today(),
		GeneratedAt:    s.settings.now().UTC(),
		InventoryValue: kardex.TotalValue(snap.Lots).StringFixed(2),
		ActiveOrders:   active,
		LowStock:       []model.DigestItem{},
		Expiring:       []model.DigestItem{},
		TrapAlerts:     []model.DigestItem{},
	}
	for _, p := range kardex.LowStock(snap.Balances, s.settings.LowStockMultiplier) {
		d.LowStock = append(d.LowStock, model.DigestItem{Key: p.ProductCode, Label: p.Name, Value: p.Remaining.String()})
	}
	for _, l := range kardex.Expiring(snap.Lots, s.settings.today(), s.settings.ExpiringWindowDays) {
		d.Expiring = append(d.Expiring, model.DigestItem{Key: l.LotCode, Label: l.ProductCode, Value: l.ExpiryDate.Format("2006-01-02")})
	}
	for _, sp := range traps {
		if !sp.Alert {
			continue
		}
		for _, t := range sp.Traps {
			if t.MTD >= s.settings.TrapMTDThreshold {
				d.TrapAlerts = append(d.TrapAlerts, model.DigestItem{
					Key:   sp.Sector,
					Label: t.TrapID,
					Value: decimal.NewFromFloat(t.MTD).StringFixed(3),
				})
			}
		}
	}
	return d, nil
}

type sessionRows struct {
	session model.Session
	rows    []model.JournalBase
}

// latestSessions picks, per sector, the session with the latest date. Two
// evaluators on the same day resolve to the one who wrote last. Result is
// sorted by sector.
func latestSessions(rows []model.JournalBase) []sessionRows {
	type pick struct {
		date      time.Time
		evaluator string
		written   time.Time
	}
	best := make(map[string]pick)
	for _, r := range rows {
		cur, ok := best[r.Sector]
		switch {
		case !ok, r.Date.After(cur.date):
			best[r.Sector] = pick{date: r.Date, evaluator: r.Evaluator, written: r.CreatedAt}
		case r.Date.Equal(cur.date) && r.CreatedAt.After(cur.written):
			best[r.Sector] = pick{date: r.Date, evaluator: r.Evaluator, written: r.CreatedAt}
		}
	}

	sectors := make([]string, 0, len(best))
	for sector := range best {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	out := make([]sessionRows, 0, len(sectors))
	for _, sector := range sectors {
		b := best[sector]
		g := sessionRows{session: model.Session{Date: b.date.UTC(), Sector: sector, Evaluator: b.evaluator}}
		for _, r := range rows {
			if r.Sector == sector && r.Evaluator == b.evaluator && r.Date.Equal(b.date) {
				g.rows = append(g.rows, r)
			}
		}
		out = append(out, g)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
