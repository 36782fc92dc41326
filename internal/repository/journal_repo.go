package repository

import (
	"context"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"gorm.io/gorm"
)

type JournalFilter struct {
	Sector    string
	Evaluator string
	From      *time.Time // date >= From
	To        *time.Time // date <= To
}

type JournalRepository interface {
	FindRows(ctx context.Context, kind model.JournalKind, filter JournalFilter) ([]model.JournalBase, error)
}

type journalRepo struct {
	db *gorm.DB
}

func NewJournalRepo(db *gorm.DB) JournalRepository {
	return &journalRepo{db}
}

// FindRows reads one journal table, oldest session first.
func (r *journalRepo) FindRows(ctx context.Context, kind model.JournalKind, filter JournalFilter) ([]model.JournalBase, error) {
	row, err := model.NewJournalRow(kind, model.JournalBase{})
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	q := r.db.WithContext(ctx).Table(row.TableName()).Order("date ASC, sector ASC, evaluator ASC, created_at ASC, row_id ASC")
	if filter.Sector != "" {
		q = q.Where("sector = ?", filter.Sector)
	}
	if filter.Evaluator != "" {
		q = q.Where("evaluator = ?", filter.Evaluator)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date <= ?", *filter.To)
	}

	var rows []model.JournalBase
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.Classify(err)
	}
	return rows, nil
}
