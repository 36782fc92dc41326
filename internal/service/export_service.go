package service

import (
	"context"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/export"
	"go-fundo-ops/internal/kardex"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"go.uber.org/zap"
)

// WorkbookPublisher mirrors a workbook somewhere outside the API, e.g. a
// shared spreadsheet.
type WorkbookPublisher interface {
	PublishWorkbook(ctx context.Context, wb *export.Workbook) ([]string, error)
}

type ExportService interface {
	Catalog(ctx context.Context) (*export.Workbook, error)
	Kardex(ctx context.Context) (*export.Workbook, error)
	Journal(ctx context.Context, kind model.JournalKind, filter repository.JournalFilter) (*export.Workbook, error)
	WorkOrder(ctx context.Context, orderID string) (*export.Workbook, error)
	Publish(ctx context.Context, wb *export.Workbook) ([]string, error)
	CanPublish() bool
}

type exportService struct {
	catalog   CatalogService
	stock     KardexService
	journals  JournalService
	orders    WorkOrderService
	publisher WorkbookPublisher
	settings  Settings
	logger    *zap.Logger
}

// NewExportService builds workbooks from the read views. publisher may be
// nil when no spreadsheet is configured.
func NewExportService(
	catalog CatalogService,
	stock KardexService,
	journals JournalService,
	orders WorkOrderService,
	publisher WorkbookPublisher,
	settings Settings,
	logger *zap.Logger,
) ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &exportService{
		catalog:   catalog,
		stock:     stock,
		journals:  journals,
		orders:    orders,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
	}
}

func (s *exportService) Catalog(ctx context.Context) (*export.Workbook, error) {
	products, err := s.catalog.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return export.Catalog(products), nil
}

func (s *exportService) Kardex(ctx context.Context) (*export.Workbook, error) {
	snap, err := s.stock.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	movements := make(map[string][]kardex.Movement)
	for _, p := range snap.Balances {
		if p.Lots == 0 {
			continue
		}
		mv, err := s.stock.Movements(ctx, p.ProductCode, nil, nil)
		if err != nil {
			return nil, err
		}
		movements[p.ProductCode] = mv
	}
	return export.Kardex(snap.Balances, snap.Lots, movements), nil
}

func (s *exportService) Journal(ctx context.Context, kind model.JournalKind, filter repository.JournalFilter) (*export.Workbook, error) {
	rows, err := s.journals.List(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	wb, err := export.Journal(kind, rows, s.settings.RacimosPorTanda)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	return wb, nil
}

func (s *exportService) WorkOrder(ctx context.Context, orderID string) (*export.Workbook, error) {
	detail, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return export.WorkOrder(detail.Order, detail.Egresses)
}

func (s *exportService) CanPublish() bool { return s.publisher != nil }

func (s *exportService) Publish(ctx context.Context, wb *export.Workbook) ([]string, error) {
	if s.publisher == nil {
		return nil, apperr.Validation("spreadsheet publishing is not configured")
	}
	tabs, err := s.publisher.PublishWorkbook(ctx, wb)
	if err != nil {
		s.logger.Error("workbook publish failed", zap.String("workbook", wb.Name), zap.Error(err))
		return nil, apperr.Transient(err)
	}
	s.logger.Info("workbook published", zap.String("workbook", wb.Name), zap.Int("tabs", len(tabs)))
	return tabs, nil
}
