package repository

import (
	"context"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EgressFilter struct {
	LotCodes    []string
	ProductCode string
	OrderID     string
	From        *time.Time
	To          *time.Time
}

type EgressRepository interface {
	FindAll(ctx context.Context, filter EgressFilter) ([]model.Egress, error)
	FindByID(ctx context.Context, egressID string) (*model.Egress, error)
	FindByOrder(ctx context.Context, orderID string) ([]model.Egress, error)
	// ConsumedByLot sums egress quantities per lot. An empty list means all lots.
	ConsumedByLot(ctx context.Context, lotCodes []string) (map[string]decimal.Decimal, error)
	WithTx(tx *gorm.DB) EgressRepository
}

type egressRepo struct {
	db *gorm.DB
}

func NewEgressRepo(db *gorm.DB) EgressRepository {
	return &egressRepo{db}
}

func (r *egressRepo) WithTx(tx *gorm.DB) EgressRepository {
	return &egressRepo{tx}
}

func (r *egressRepo) FindAll(ctx context.Context, filter EgressFilter) ([]model.Egress, error) {
	q := r.db.WithContext(ctx).Order("date ASC, egress_id ASC")
	if len(filter.LotCodes) > 0 {
		q = q.Where("lot_code IN ?", filter.LotCodes)
	}
	if filter.ProductCode != "" {
		q = q.Where("product_code = ?", filter.ProductCode)
	}
	if filter.OrderID != "" {
		q = q.Where("order_id = ?", filter.OrderID)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("date < ?", *filter.To)
	}
	var rows []model.Egress
	err := q.Find(&rows).Error
	return rows, apperr.Classify(err)
}

func (r *egressRepo) FindByID(ctx context.Context, egressID string) (*model.Egress, error) {
	var e model.Egress
	if err := r.db.WithContext(ctx).First(&e, "egress_id = ?", egressID).Error; err != nil {
		return nil, notFound(err, "egress", egressID)
	}
	return &e, nil
}

func (r *egressRepo) FindByOrder(ctx context.Context, orderID string) ([]model.Egress, error) {
	var rows []model.Egress
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("line ASC").Find(&rows).Error
	return rows, apperr.Classify(err)
}

// ConsumedByLot loads the quantities and sums them as decimals; SQL SUM on
// sqlite would go through float64.
func (r *egressRepo) ConsumedByLot(ctx context.Context, lotCodes []string) (map[string]decimal.Decimal, error) {
	type row struct {
		LotCode  string
		Quantity decimal.Decimal
	}
	q := r.db.WithContext(ctx).Model(&model.Egress{}).Select("lot_code, quantity")
	if len(lotCodes) > 0 {
		q = q.Where("lot_code IN ?", lotCodes)
	}
	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperr.Classify(err)
	}
	out := make(map[string]decimal.Decimal)
	for _, r := range rows {
		out[r.LotCode] = out[r.LotCode].Add(r.Quantity)
	}
	for code, sum := range out {
		out[code] = model.Qty(sum)
	}
	return out, nil
}
