package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/kardex"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type KardexService interface {
	RegisterIngress(ctx context.Context, lot *model.Lot, actor string) (*model.Lot, error)
	PostEgress(ctx context.Context, req *model.Egress, actor string) (*model.Egress, error)
	CorrectEgress(ctx context.Context, egressID string, quantity decimal.Decimal, actor string) (*model.Egress, error)

	StockByLot(ctx context.Context, productCode string) ([]kardex.LotBalance, error)
	StockByProduct(ctx context.Context) ([]kardex.ProductBalance, error)
	ExpiringLots(ctx context.Context, windowDays int) ([]kardex.LotBalance, error)
	LowStockProducts(ctx context.Context) ([]kardex.ProductBalance, error)
	CheckAvailability(ctx context.Context, lotCode string, quantity decimal.Decimal) (*Availability, error)
	Suggestions(ctx context.Context, productCode string) ([]kardex.LotBalance, error)
	Movements(ctx context.Context, productCode string, from, to *time.Time) ([]kardex.Movement, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
}

type Availability struct {
	LotCode   string          `json:"lot_code"`
	Requested decimal.Decimal `json:"requested"`
	Remaining decimal.Decimal `json:"remaining"`
	Available bool            `json:"available"`
}

// Snapshot is one consistent read of catalog and stock, shared by the
// dashboard and the exports.
type Snapshot struct {
	Products []model.Product
	Lots     []kardex.LotBalance
	Balances []kardex.ProductBalance
}

type kardexService struct {
	gw          repository.Gateway
	productRepo repository.ProductRepository
	lotRepo     repository.LotRepository
	egressRepo  repository.EgressRepository
	orderRepo   repository.WorkOrderRepository
	locks       *LockSet
	settings    Settings
	logger      *zap.Logger
}

func NewKardexService(
	gw repository.Gateway,
	productRepo repository.ProductRepository,
	lotRepo repository.LotRepository,
	egressRepo repository.EgressRepository,
	orderRepo repository.WorkOrderRepository,
	locks *LockSet,
	settings Settings,
	logger *zap.Logger,
) KardexService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &kardexService{
		gw:          gw,
		productRepo: productRepo,
		lotRepo:     lotRepo,
		egressRepo:  egressRepo,
		orderRepo:   orderRepo,
		locks:       locks,
		settings:    settings,
		logger:      logger,
	}
}

func (s *kardexService) RegisterIngress(ctx context.Context, lot *model.Lot, actor string) (*model.Lot, error) {
	// 1. Validate
	lot.InitialQuantity = model.Qty(lot.InitialQuantity)
	lot.UnitPrice = model.Qty(lot.UnitPrice)
	if err := validate(lot); err != nil {
		return nil, err
	}
	if _, err := s.productRepo.FindByCode(ctx, lot.ProductCode); err != nil {
		return nil, err
	}

	// 2. Defaults
	if lot.IngressDate.IsZero() {
		lot.IngressDate = s.settings.now().UTC()
	}
	if strings.TrimSpace(lot.LotCode) == "" {
		lot.LotCode = model.NewLotCode(lot.ProductCode, lot.IngressDate.In(s.settings.loc()))
	}
	if lot.ExpiryDate != nil {
		exp := model.DateOnly(*lot.ExpiryDate, time.UTC)
		lot.ExpiryDate = &exp
	}

	// 3. Insert; a reused lot code surfaces as a conflict
	lot.Stamp(actor)
	if err := s.gw.Write(ctx, repository.Batch{repository.Insert(lot)}); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Conflict("lot code %s already exists", lot.LotCode)
		}
		return nil, err
	}
	s.logger.Info("lot registered",
		zap.String("lot_code", lot.LotCode),
		zap.String("quantity", lot.InitialQuantity.String()),
		zap.String("actor", actor))
	return lot, nil
}

// PostEgress records a consumption outside any work order, under the same
// lot lock and no-oversell check as a mix.
func (s *kardexService) PostEgress(ctx context.Context, req *model.Egress, actor string) (*model.Egress, error) {
	req.Quantity = model.Qty(req.Quantity)
	req.OrderID = nil
	req.Line = 0
	if err := validate(req); err != nil {
		return nil, err
	}

	release := s.locks.Acquire(lotKey(req.LotCode))
	defer release()

	now := s.settings.now()
	err := s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		// 1. Lock lot and read its consumption
		lots, err := s.lotRepo.WithTx(tx).LockByCodes(ctx, []string{req.LotCode})
		if err != nil {
			return nil, err
		}
		lot := lots[req.LotCode]
		consumed, err := s.egressRepo.WithTx(tx).ConsumedByLot(ctx, []string{req.LotCode})
		if err != nil {
			return nil, err
		}

		// 2. No oversell
		remaining := model.Qty(lot.InitialQuantity.Sub(consumed[req.LotCode]))
		if !kardex.Available(remaining, req.Quantity) {
			return nil, apperr.InsufficientStock(req.LotCode, req.Quantity, remaining)
		}

		// 3. Build row
		req.ProductCode = lot.ProductCode
		if req.Date.IsZero() {
			req.Date = model.DateOnly(now, s.settings.loc())
		} else {
			req.Date = model.DateOnly(req.Date, time.UTC)
		}
		if req.EgressID == "" {
			req.EgressID = fmt.Sprintf("EG-%s-%s", req.LotCode, now.UTC().Format(model.OrderIDLayout))
		}
		req.Stamp(actor)
		return repository.Batch{repository.Insert(req)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("egress posted",
		zap.String("egress_id", req.EgressID),
		zap.String("lot_code", req.LotCode),
		zap.String("quantity", req.Quantity.String()),
		zap.String("actor", actor))
	return req, nil
}

// CorrectEgress replaces one egress with the corrected quantity. For an
// order egress the recipe line follows, and an APPLIED order drops its
// application record and goes back to MIXED.
func (s *kardexService) CorrectEgress(ctx context.Context, egressID string, quantity decimal.Decimal, actor string) (*model.Egress, error) {
	quantity = model.Qty(quantity)
	if !quantity.IsPositive() {
		return nil, apperr.Validation("quantity must be greater than zero")
	}

	current, err := s.egressRepo.FindByID(ctx, egressID)
	if err != nil {
		return nil, err
	}
	keys := []string{lotKey(current.LotCode)}
	if current.OrderID != nil {
		keys = append(keys, orderKey(*current.OrderID))
	}
	release := s.locks.Acquire(keys...)
	defer release()

	var corrected *model.Egress
	err = s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		// 1. Re-read under lock
		old, err := s.egressRepo.WithTx(tx).FindByID(ctx, egressID)
		if err != nil {
			return nil, err
		}
		lots, err := s.lotRepo.WithTx(tx).LockByCodes(ctx, []string{old.LotCode})
		if err != nil {
			return nil, err
		}
		consumed, err := s.egressRepo.WithTx(tx).ConsumedByLot(ctx, []string{old.LotCode})
		if err != nil {
			return nil, err
		}

		// 2. Availability without the row being replaced
		remaining := model.Qty(lots[old.LotCode].InitialQuantity.Sub(consumed[old.LotCode]).Add(old.Quantity))
		if !kardex.Available(remaining, quantity) {
			return nil, apperr.InsufficientStock(old.LotCode, quantity, remaining)
		}

		next := *old
		next.ID = uuid.Nil
		next.Quantity = quantity
		next.Stamp(actor)
		corrected = &next
		batch := repository.Batch{repository.Delete(old), repository.Insert(&next)}

		// 3. Order side
		if old.OrderID == nil {
			return batch, nil
		}
		order, err := s.orderRepo.WithTx(tx).LockByID(ctx, *old.OrderID)
		if err != nil {
			return nil, err
		}
		status, ok := order.Status.Next(model.EventCorrect)
		if !ok {
			return nil, apperr.OrderState(order.OrderID, string(order.Status), "correct an egress")
		}
		lines, err := order.Lines()
		if err != nil {
			return nil, err
		}
		if old.Line < 1 || old.Line > len(lines) {
			return nil, apperr.Validation("egress %s points at recipe line %d of %d", old.EgressID, old.Line, len(lines))
		}
		lines[old.Line-1].ProductQuantity = quantity
		if err := order.SetLines(lines); err != nil {
			return nil, err
		}
		if status != order.Status {
			order.Status = status
			order.CompletedAt = nil
			order.ApplicationRecord = nil
		}
		order.Stamp(actor)
		return append(batch, repository.Update(order)), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("egress corrected",
		zap.String("egress_id", egressID),
		zap.String("quantity", quantity.String()),
		zap.String("actor", actor))
	return corrected, nil
}

func (s *kardexService) StockByLot(ctx context.Context, productCode string) ([]kardex.LotBalance, error) {
	var (
		lots []model.Lot
		err  error
	)
	if productCode != "" {
		lots, err = s.lotRepo.FindByProduct(ctx, productCode)
	} else {
		lots, err = s.lotRepo.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(lots))
	for i, l := range lots {
		codes[i] = l.LotCode
	}
	var consumed map[string]decimal.Decimal
	if productCode != "" {
		if len(codes) == 0 {
			return []kardex.LotBalance{}, nil
		}
		consumed, err = s.egressRepo.ConsumedByLot(ctx, codes)
	} else {
		consumed, err = s.egressRepo.ConsumedByLot(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	return kardex.LotBalances(lots, consumed), nil
}

func (s *kardexService) Snapshot(ctx context.Context) (*Snapshot, error) {
	products, err := s.productRepo.FindAll(ctx, "")
	if err != nil {
		return nil, err
	}
	lots, err := s.StockByLot(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Products: products,
		Lots:     lots,
		Balances: kardex.ProductBalances(products, lots),
	}, nil
}

func (s *kardexService) StockByProduct(ctx context.Context) ([]kardex.ProductBalance, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Balances, nil
}

func (s *kardexService) ExpiringLots(ctx context.Context, windowDays int) ([]kardex.LotBalance, error) {
	if windowDays <= 0 {
		windowDays = s.settings.ExpiringWindowDays
	}
	lots, err := s.StockByLot(ctx, "")
	if err != nil {
		return nil, err
	}
	out := kardex.Expiring(lots, s.settings.today(), windowDays)
	if out == nil {
		out = []kardex.LotBalance{}
	}
	return out, nil
}

func (s *kardexService) LowStockProducts(ctx context.Context) ([]kardex.ProductBalance, error) {
	balances, err := s.StockByProduct(ctx)
	if err != nil {
		return nil, err
	}
	out := kardex.LowStock(balances, s.settings.LowStockMultiplier)
	if out == nil {
		out = []kardex.ProductBalance{}
	}
	return out, nil
}

func (s *kardexService) CheckAvailability(ctx context.Context, lotCode string, quantity decimal.Decimal) (*Availability, error) {
	lot, err := s.lotRepo.FindByCode(ctx, lotCode)
	if err != nil {
		return nil, err
	}
	consumed, err := s.egressRepo.ConsumedByLot(ctx, []string{lotCode})
	if err != nil {
		return nil, err
	}
	remaining := model.Qty(lot.InitialQuantity.Sub(consumed[lotCode]))
	return &Availability{
		LotCode:   lotCode,
		Requested: model.Qty(quantity),
		Remaining: remaining,
		Available: kardex.Available(remaining, quantity),
	}, nil
}

func (s *kardexService) Suggestions(ctx context.Context, productCode string) ([]kardex.LotBalance, error) {
	if _, err := s.productRepo.FindByCode(ctx, productCode); err != nil {
		return nil, err
	}
	lots, err := s.StockByLot(ctx, productCode)
	if err != nil {
		return nil, err
	}
	out := kardex.Suggest(lots)
	if out == nil {
		out = []kardex.LotBalance{}
	}
	return out, nil
}

// Movements returns the kardex card of a product. The running balance is
// computed over the whole history; from/to only trim the rows shown.
func (s *kardexService) Movements(ctx context.Context, productCode string, from, to *time.Time) ([]kardex.Movement, error) {
	if _, err := s.productRepo.FindByCode(ctx, productCode); err != nil {
		return nil, err
	}
	lots, err := s.lotRepo.FindByProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}
	egresses, err := s.egressRepo.FindAll(ctx, repository.EgressFilter{ProductCode: productCode})
	if err != nil {
		return nil, err
	}

	out := []kardex.Movement{}
	for _, m := range kardex.Movements(lots, egresses) {
		day := model.DateOnly(m.Date, time.UTC)
		if from != nil && day.Before(*from) {
			continue
		}
		if to != nil && day.After(*to) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
