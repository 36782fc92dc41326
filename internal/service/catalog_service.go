package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/importer"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"go.uber.org/zap"
)

// InitialInventoryRef marks lots created by a stock import.
const InitialInventoryRef = "INVENTARIO-INICIAL"

type CatalogService interface {
	Create(ctx context.Context, req *model.Product, actor string) error
	Update(ctx context.Context, code string, req *model.Product, actor string) (*model.Product, error)
	Get(ctx context.Context, code string) (*model.Product, error)
	List(ctx context.Context, category model.Category) ([]model.Product, error)
	Disable(ctx context.Context, code, actor string) (*model.Product, error)
	Import(ctx context.Context, catalog *importer.CatalogSheet, stock *importer.StockSheet, actor string) (*ImportResult, error)
}

type ImportResult struct {
	Created       int                 `json:"created"`
	Updated       int                 `json:"updated"`
	Lots          int                 `json:"lots_created"`
	Rejected      []importer.RowError `json:"rejected"`
	StockRejected []importer.RowError `json:"stock_rejected,omitempty"`
}

type catalogService struct {
	gw          repository.Gateway
	productRepo repository.ProductRepository
	settings    Settings
	logger      *zap.Logger
}

func NewCatalogService(gw repository.Gateway, productRepo repository.ProductRepository, settings Settings, logger *zap.Logger) CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogService{
		gw:          gw,
		productRepo: productRepo,
		settings:    settings,
		logger:      logger,
	}
}

func (s *catalogService) Create(ctx context.Context, req *model.Product, actor string) error {
	// 1. Validate
	req.Code = strings.TrimSpace(req.Code)
	req.MinStockThreshold = model.Qty(req.MinStockThreshold)
	if err := validate(req); err != nil {
		return err
	}

	// 2. Duplicate code
	if existing, err := s.productRepo.FindByCode(ctx, req.Code); err == nil && existing != nil {
		return apperr.Conflict("product code %s already exists", req.Code)
	} else if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}

	// 3. Insert
	req.Stamp(actor)
	if err := s.gw.Write(ctx, repository.Batch{repository.Insert(req)}); err != nil {
		return err
	}
	s.logger.Info("product created", zap.String("code", req.Code), zap.String("actor", actor))
	return nil
}

// Update rewrites the descriptive fields; the code is immutable.
func (s *catalogService) Update(ctx context.Context, code string, req *model.Product, actor string) (*model.Product, error) {
	existing, err := s.productRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	existing.Name = req.Name
	existing.ActiveIngredient = req.ActiveIngredient
	existing.Unit = req.Unit
	existing.Supplier = req.Supplier
	existing.Category = req.Category
	existing.MinStockThreshold = model.Qty(req.MinStockThreshold)
	if err := validate(existing); err != nil {
		return nil, err
	}

	existing.Stamp(actor)
	if err := s.gw.Write(ctx, repository.Batch{repository.Update(existing)}); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *catalogService) Get(ctx context.Context, code string) (*model.Product, error) {
	return s.productRepo.FindByCode(ctx, code)
}

func (s *catalogService) List(ctx context.Context, category model.Category) ([]model.Product, error) {
	return s.productRepo.FindAll(ctx, category)
}

// Disable parks an unused product in OTHER. Products that any lot or
// egress cites stay as they are.
func (s *catalogService) Disable(ctx context.Context, code, actor string) (*model.Product, error) {
	existing, err := s.productRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	used, err := s.productRepo.IsReferenced(ctx, code)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, apperr.Conflict("product %s has stock movements and cannot be disabled", code)
	}

	existing.Category = model.CategoryOther
	existing.Stamp(actor)
	if err := s.gw.Write(ctx, repository.Batch{repository.Update(existing)}); err != nil {
		return nil, err
	}
	s.logger.Info("product disabled", zap.String("code", code), zap.String("actor", actor))
	return existing, nil
}

// Import upserts catalog rows by code and turns matching stock rows into
// initial-inventory lots, all in one batch. Rows the sheet reader rejected
// are reported back untouched.
func (s *catalogService) Import(ctx context.Context, catalog *importer.CatalogSheet, stock *importer.StockSheet, actor string) (*ImportResult, error) {
	res := &ImportResult{Rejected: []importer.RowError{}}
	var batch repository.Batch

	// 1. Current catalog, indexed by code and by name
	current, err := s.productRepo.FindAll(ctx, "")
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*model.Product, len(current))
	byName := make(map[string]*model.Product, len(current))
	for i := range current {
		byCode[current[i].Code] = &current[i]
		byName[nameKey(current[i].Name)] = &current[i]
	}

	// 2. Catalog upserts
	if catalog != nil {
		res.Rejected = append(res.Rejected, catalog.Rejected...)
		for _, row := range catalog.Rows {
			p := row.Product()
			if existing, ok := byCode[row.Code]; ok {
				existing.Name = p.Name
				existing.ActiveIngredient = p.ActiveIngredient
				existing.Unit = p.Unit
				existing.Supplier = p.Supplier
				existing.Category = p.Category
				if row.MinStock != nil {
					existing.MinStockThreshold = *row.MinStock
				}
				existing.Stamp(actor)
				batch = append(batch, repository.Update(existing))
				byName[nameKey(existing.Name)] = existing
				res.Updated++
				continue
			}
			p.Stamp(actor)
			byCode[p.Code] = p
			byName[nameKey(p.Name)] = p
			batch = append(batch, repository.Insert(p))
			res.Created++
		}
	}

	// 3. Opening stock
	if stock != nil {
		res.StockRejected = append(res.StockRejected, stock.Rejected...)
		now := s.settings.now()
		seen := make(map[string]int)
		for _, row := range stock.Rows {
			p, ok := byName[nameKey(row.ProductName)]
			if !ok {
				res.StockRejected = append(res.StockRejected, importer.RowError{
					Line: row.Line, Column: importer.ColName, Message: "no catalog product named " + row.ProductName,
				})
				continue
			}
			if prev, dup := seen[p.Code]; dup {
				res.StockRejected = append(res.StockRejected, importer.RowError{
					Line: row.Line, Column: importer.ColName, Message: fmt.Sprintf("product already stocked on line %d", prev),
				})
				continue
			}
			seen[p.Code] = row.Line

			supplier := row.Supplier
			if supplier == "" {
				supplier = p.Supplier
			}
			lot := &model.Lot{
				LotCode:         model.NewLotCode(p.Code, now.In(s.settings.loc())),
				ProductCode:     p.Code,
				IngressDate:     now.UTC(),
				InitialQuantity: row.Quantity,
				UnitPrice:       row.UnitPrice,
				Supplier:        supplier,
				InvoiceRef:      InitialInventoryRef,
			}
			if row.ExpiryDate != nil {
				exp := model.DateOnly(*row.ExpiryDate, time.UTC)
				lot.ExpiryDate = &exp
			}
			lot.Stamp(actor)
			batch = append(batch, repository.Insert(lot))
			res.Lots++
		}
	}

	if len(batch) == 0 {
		return res, nil
	}
	if err := s.gw.Write(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.Info("catalog imported",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("lots", res.Lots),
		zap.Int("rejected", len(res.Rejected)+len(res.StockRejected)),
		zap.String("actor", actor),
	)
	return res, nil
}

func nameKey(name string) string { return strings.ToUpper(strings.TrimSpace(name)) }
