package repository

import (
	"context"
	"errors"
	"strings"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	FindAll(ctx context.Context, category model.Category) ([]model.Product, error)
	FindByCode(ctx context.Context, code string) (*model.Product, error)
	FindByCodes(ctx context.Context, codes []string) (map[string]model.Product, error)
	FindByName(ctx context.Context, name string) (*model.Product, error)
	IsReferenced(ctx context.Context, code string) (bool, error)
	WithTx(tx *gorm.DB) ProductRepository
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{tx}
}

// FindAll lists the catalog; an empty category means every category.
func (r *productRepo) FindAll(ctx context.Context, category model.Category) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Order("code ASC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Find(&products).Error
	return products, apperr.Classify(err)
}

func (r *productRepo) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "code = ?", code).Error; err != nil {
		return nil, notFound(err, "product", code)
	}
	return &product, nil
}

func (r *productRepo) FindByCodes(ctx context.Context, codes []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	var products []model.Product
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&products).Error; err != nil {
		return nil, apperr.Classify(err)
	}
	for _, p := range products {
		out[p.Code] = p
	}
	return out, nil
}

// FindByName matches the catalog name ignoring case and outer spaces.
func (r *productRepo) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var product model.Product
	key := strings.ToUpper(strings.TrimSpace(name))
	if err := r.db.WithContext(ctx).Where("UPPER(TRIM(name)) = ?", key).First(&product).Error; err != nil {
		return nil, notFound(err, "product", name)
	}
	return &product, nil
}

// IsReferenced reports whether any lot or egress cites the product.
func (r *productRepo) IsReferenced(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Lot{}).Where("product_code = ?", code).Count(&n).Error; err != nil {
		return false, apperr.Classify(err)
	}
	if n > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Egress{}).Where("product_code = ?", code).Count(&n).Error; err != nil {
		return false, apperr.Classify(err)
	}
	return n > 0, nil
}

func notFound(err error, entity, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, key)
	}
	return apperr.Classify(err)
}
