package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"go.uber.org/zap"
)

type JournalService interface {
	Append(ctx context.Context, kind model.JournalKind, entries []JournalEntry, actor string) ([]model.JournalBase, error)
	List(ctx context.Context, kind model.JournalKind, filter repository.JournalFilter) ([]model.JournalBase, error)
	Sessions(ctx context.Context, kind model.JournalKind, filter repository.JournalFilter) ([]SessionSummary, error)
}

// JournalEntry is the wire form of one observation row.
type JournalEntry struct {
	RowID     string          `json:"row_id"`
	Date      string          `json:"date"`
	Sector    string          `json:"sector"`
	Evaluator string          `json:"evaluator"`
	Payload   json.RawMessage `json:"payload"`
}

type SessionSummary struct {
	model.Session
	Rows int `json:"rows"`
}

type journalService struct {
	gw          repository.Gateway
	journalRepo repository.JournalRepository
	settings    Settings
	logger      *zap.Logger
}

func NewJournalService(gw repository.Gateway, journalRepo repository.JournalRepository, settings Settings, logger *zap.Logger) JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &journalService{gw: gw, journalRepo: journalRepo, settings: settings, logger: logger}
}

// Append type-checks every entry and writes them as one batch. The first
// bad entry rejects the whole call.
func (s *journalService) Append(ctx context.Context, kind model.JournalKind, entries []JournalEntry, actor string) ([]model.JournalBase, error) {
	if _, ok := model.ParseJournalKind(string(kind)); !ok {
		return nil, apperr.NotFound("journal", string(kind))
	}
	if len(entries) == 0 {
		return nil, apperr.Validation("no rows to append")
	}

	now := s.settings.now()
	batch := make(repository.Batch, 0, len(entries))
	out := make([]model.JournalBase, 0, len(entries))
	for i, e := range entries {
		rowID := e.RowID
		if rowID == "" {
			rowID = fmt.Sprintf("%s-%d-%d", kind, now.UnixNano(), i)
		}
		base, err := buildJournalRow(kind, e, rowID, actor)
		if err != nil {
			return nil, apperr.Validation("row %d: %s", i, err.Error())
		}
		row, err := model.NewJournalRow(kind, base)
		if err != nil {
			return nil, err
		}
		batch = append(batch, repository.Insert(row))
		out = append(out, base)
	}

	if err := s.gw.Write(ctx, batch); err != nil {
		return nil, err
	}
	for i := range batch {
		// the insert filled ID and timestamps on the table struct
		out[i] = *batch[i].Row.(model.JournalRow).Journal()
	}
	s.logger.Info("journal rows appended",
		zap.String("journal", string(kind)),
		zap.Int("rows", len(out)),
		zap.String("actor", actor))
	return out, nil
}

func (s *journalService) List(ctx context.Context, kind model.JournalKind, filter repository.JournalFilter) ([]model.JournalBase, error) {
	if _, ok := model.ParseJournalKind(string(kind)); !ok {
		return nil, apperr.NotFound("journal", string(kind))
	}
	rows, err := s.journalRepo.FindRows(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.JournalBase{}
	}
	return rows, nil
}

// Sessions groups rows by (date, sector, evaluator), oldest first.
func (s *journalService) Sessions(ctx context.Context, kind model.JournalKind, filter repository.JournalFilter) ([]SessionSummary, error) {
	rows, err := s.List(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.Session]int)
	var order []model.Session
	for i := range rows {
		k := rows[i].Session()
		k.Date = k.Date.UTC()
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}
	sort.SliceStable(order, func(i, j int) bool { return sessionLess(order[i], order[j]) })

	out := make([]SessionSummary, len(order))
	for i, k := range order {
		out[i] = SessionSummary{Session: k, Rows: counts[k]}
	}
	return out, nil
}

// buildJournalRow validates one entry against the common columns and the
// payload schema of kind.
func buildJournalRow(kind model.JournalKind, e JournalEntry, rowID, actor string) (model.JournalBase, error) {
	date, err := model.ParseDate(strings.TrimSpace(e.Date))
	if err != nil {
		return model.JournalBase{}, fmt.Errorf("date %q is not YYYY-MM-DD", e.Date)
	}
	if len(e.Payload) == 0 {
		return model.JournalBase{}, fmt.Errorf("payload is required")
	}
	if _, err := model.DecodePayload(kind, e.Payload); err != nil {
		return model.JournalBase{}, err
	}

	base := model.JournalBase{
		RowID:     strings.TrimSpace(rowID),
		Date:      date,
		Sector:    strings.TrimSpace(e.Sector),
		Evaluator: strings.TrimSpace(e.Evaluator),
		Payload:   append([]byte(nil), e.Payload...),
	}
	if err := validate(&base); err != nil {
		return model.JournalBase{}, err
	}
	base.Stamp(actor)
	return base, nil
}

func sessionLess(a, b model.Session) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Sector != b.Sector {
		return a.Sector < b.Sector
	}
	return a.Evaluator < b.Evaluator
}
