package repository

import (
	"context"
	"sort"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LotRepository interface {
	FindAll(ctx context.Context) ([]model.Lot, error)
	FindByProduct(ctx context.Context, productCode string) ([]model.Lot, error)
	FindByCode(ctx context.Context, lotCode string) (*model.Lot, error)
	FindByCodes(ctx context.Context, lotCodes []string) (map[string]model.Lot, error)
	// LockByCodes takes row locks on the lots, in code order, for the
	// lifetime of the surrounding transaction.
	LockByCodes(ctx context.Context, lotCodes []string) (map[string]model.Lot, error)
	WithTx(tx *gorm.DB) LotRepository
}

type lotRepo struct {
	db *gorm.DB
}

func NewLotRepo(db *gorm.DB) LotRepository {
	return &lotRepo{db}
}

func (r *lotRepo) WithTx(tx *gorm.DB) LotRepository {
	return &lotRepo{tx}
}

func (r *lotRepo) FindAll(ctx context.Context) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.WithContext(ctx).Order("ingress_date ASC, lot_code ASC").Find(&lots).Error
	return lots, apperr.Classify(err)
}

func (r *lotRepo) FindByProduct(ctx context.Context, productCode string) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.WithContext(ctx).
		Where("product_code = ?", productCode).
		Order("ingress_date ASC, lot_code ASC").
		Find(&lots).Error
	return lots, apperr.Classify(err)
}

func (r *lotRepo) FindByCode(ctx context.Context, lotCode string) (*model.Lot, error) {
	var lot model.Lot
	if err := r.db.WithContext(ctx).First(&lot, "lot_code = ?", lotCode).Error; err != nil {
		return nil, notFound(err, "lot", lotCode)
	}
	return &lot, nil
}

func (r *lotRepo) FindByCodes(ctx context.Context, lotCodes []string) (map[string]model.Lot, error) {
	return r.findByCodes(r.db.WithContext(ctx), lotCodes)
}

func (r *lotRepo) LockByCodes(ctx context.Context, lotCodes []string) (map[string]model.Lot, error) {
	return r.findByCodes(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), lotCodes)
}

func (r *lotRepo) findByCodes(q *gorm.DB, lotCodes []string) (map[string]model.Lot, error) {
	out := make(map[string]model.Lot, len(lotCodes))
	if len(lotCodes) == 0 {
		return out, nil
	}
	codes := append([]string(nil), lotCodes...)
	sort.Strings(codes)

	var lots []model.Lot
	if err := q.Where("lot_code IN ?", codes).Order("lot_code ASC").Find(&lots).Error; err != nil {
		return nil, apperr.Classify(err)
	}
	for _, l := range lots {
		out[l.LotCode] = l
	}
	for _, code := range codes {
		if _, ok := out[code]; !ok {
			return nil, apperr.NotFound("lot", code)
		}
	}
	return out, nil
}
