package repository

import (
	"context"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderFilter struct {
	Status model.OrderStatus
	Sector string
	From   *time.Time // scheduled_date >= From
	To     *time.Time // scheduled_date <= To
}

type WorkOrderRepository interface {
	FindByID(ctx context.Context, orderID string) (*model.WorkOrder, error)
	// LockByID is FindByID with a row lock; call it through WithTx.
	LockByID(ctx context.Context, orderID string) (*model.WorkOrder, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]model.WorkOrder, error)
	CountActive(ctx context.Context) (int64, error)
	FindCompletedBetween(ctx context.Context, from, to time.Time) ([]model.WorkOrder, error)
	WithTx(tx *gorm.DB) WorkOrderRepository
}

type workOrderRepo struct {
	db *gorm.DB
}

func NewWorkOrderRepo(db *gorm.DB) WorkOrderRepository {
	return &workOrderRepo{db}
}

func (r *workOrderRepo) WithTx(tx *gorm.DB) WorkOrderRepository {
	return &workOrderRepo{tx}
}

func (r *workOrderRepo) FindByID(ctx context.Context, orderID string) (*model.WorkOrder, error) {
	var w model.WorkOrder
	if err := r.db.WithContext(ctx).First(&w, "order_id = ?", orderID).Error; err != nil {
		return nil, notFound(err, "work order", orderID)
	}
	return &w, nil
}

func (r *workOrderRepo) LockByID(ctx context.Context, orderID string) (*model.WorkOrder, error) {
	var w model.WorkOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&w, "order_id = ?", orderID).Error
	if err != nil {
		return nil, notFound(err, "work order", orderID)
	}
	return &w, nil
}

func (r *workOrderRepo) FindAll(ctx context.Context, filter OrderFilter) ([]model.WorkOrder, error) {
	q := r.db.WithContext(ctx).Order("scheduled_date ASC, order_id ASC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Sector != "" {
		q = q.Where("sector = ?", filter.Sector)
	}
	if filter.From != nil {
		q = q.Where("scheduled_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("scheduled_date <= ?", *filter.To)
	}
	var orders []model.WorkOrder
	err := q.Find(&orders).Error
	return orders, apperr.Classify(err)
}

func (r *workOrderRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.WorkOrder{}).
		Where("status NOT IN ?", []model.OrderStatus{model.StatusApplied, model.StatusCancelled}).
		Count(&n).Error
	return n, apperr.Classify(err)
}

// FindCompletedBetween returns APPLIED orders with from <= completed_at < to.
func (r *workOrderRepo) FindCompletedBetween(ctx context.Context, from, to time.Time) ([]model.WorkOrder, error) {
	var orders []model.WorkOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", model.StatusApplied, from, to).
		Order("completed_at ASC").
		Find(&orders).Error
	return orders, apperr.Classify(err)
}
