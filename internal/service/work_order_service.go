package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/kardex"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WorkOrderService interface {
	Plan(ctx context.Context, req *PlanRequest, actor string) (*model.WorkOrder, error)
	ConfirmMix(ctx context.Context, orderID, mixOperator, actor string) (*model.WorkOrder, error)
	RecordApplication(ctx context.Context, orderID string, rec *model.ApplicationRecord, actor string) (*model.WorkOrder, error)
	Cancel(ctx context.Context, orderID, actor string) (*model.WorkOrder, error)
	DeletePlanned(ctx context.Context, orderID, actor string) error
	Rollback(ctx context.Context, orderID, actor string) (*model.WorkOrder, error)
	Get(ctx context.Context, orderID string) (*OrderDetail, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]model.WorkOrder, error)
}

type PlanRequest struct {
	ScheduledDate time.Time          `json:"scheduled_date"`
	Sector        string             `json:"sector" validate:"required"`
	Shift         model.Shift        `json:"shift" validate:"required,oneof=Day Night"`
	Goal          string             `json:"goal"`
	Recipe        []model.RecipeLine `json:"recipe" validate:"required,min=1,dive"`
}

type OrderDetail struct {
	Order       *model.WorkOrder         `json:"order"`
	Recipe      []model.RecipeLine       `json:"recipe"`
	Application *model.ApplicationRecord `json:"application_record,omitempty"`
	Egresses    []model.Egress           `json:"egresses"`
}

type workOrderService struct {
	gw         repository.Gateway
	orderRepo  repository.WorkOrderRepository
	lotRepo    repository.LotRepository
	egressRepo repository.EgressRepository
	locks      *LockSet
	settings   Settings
	logger     *zap.Logger
}

func NewWorkOrderService(
	gw repository.Gateway,
	orderRepo repository.WorkOrderRepository,
	lotRepo repository.LotRepository,
	egressRepo repository.EgressRepository,
	locks *LockSet,
	settings Settings,
	logger *zap.Logger,
) WorkOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workOrderService{
		gw:         gw,
		orderRepo:  orderRepo,
		lotRepo:    lotRepo,
		egressRepo: egressRepo,
		locks:      locks,
		settings:   settings,
		logger:     logger,
	}
}

// Plan stores a new order in PLANNED. It checks that every lot exists but
// consumes nothing; stock is only checked again at mix time.
func (s *workOrderService) Plan(ctx context.Context, req *PlanRequest, actor string) (*model.WorkOrder, error) {
	// 1. Validate
	for i := range req.Recipe {
		req.Recipe[i].LotCode = strings.TrimSpace(req.Recipe[i].LotCode)
		req.Recipe[i].ProductQuantity = model.Qty(req.Recipe[i].ProductQuantity)
		req.Recipe[i].PremixVolumeL = model.Qty(req.Recipe[i].PremixVolumeL)
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Resolve lots
	codes := make([]string, len(req.Recipe))
	for i, l := range req.Recipe {
		codes[i] = l.LotCode
	}
	lots, err := s.lotRepo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		if _, ok := lots[code]; !ok {
			return nil, apperr.NotFound("lot", code)
		}
	}
	for i := range req.Recipe {
		req.Recipe[i].ProductCode = lots[req.Recipe[i].LotCode].ProductCode
	}

	// 3. Build order
	now := s.settings.now()
	scheduled := s.settings.today()
	if !req.ScheduledDate.IsZero() {
		scheduled = model.DateOnly(req.ScheduledDate, time.UTC)
	}
	order := &model.WorkOrder{
		OrderID:       model.NewOrderID(now),
		Status:        model.StatusPlanned,
		ScheduledDate: scheduled,
		Sector:        req.Sector,
		Shift:         req.Shift,
		Goal:          req.Goal,
	}
	if err := order.SetLines(req.Recipe); err != nil {
		return nil, err
	}
	order.Stamp(actor)

	// 4. Insert
	if err := s.gw.Write(ctx, repository.Batch{repository.Insert(order)}); err != nil {
		return nil, err
	}
	s.logger.Info("work order planned",
		zap.String("order_id", order.OrderID),
		zap.String("sector", order.Sector),
		zap.Int("lines", len(req.Recipe)),
		zap.String("actor", actor))
	return order, nil
}

// ConfirmMix posts one egress per recipe line and moves the order to MIXED,
// in one batch. The order and every cited lot stay locked while stock is
// re-checked, so two mixes on the same lot cannot both pass.
func (s *workOrderService) ConfirmMix(ctx context.Context, orderID, mixOperator, actor string) (*model.WorkOrder, error) {
	mixOperator = strings.TrimSpace(mixOperator)
	if mixOperator == "" {
		return nil, apperr.Validation("mix_operator is required")
	}

	// 1. Find the lots to lock
	current, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := current.Lines()
	if err != nil {
		return nil, err
	}
	keys := []string{orderKey(orderID)}
	for _, l := range lines {
		keys = append(keys, lotKey(l.LotCode))
	}
	release := s.locks.Acquire(keys...)
	defer release()

	var mixed *model.WorkOrder
	now := s.settings.now()
	err = s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		// 2. Re-read the order under lock
		order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		next, ok := order.Status.Next(model.EventMix)
		if !ok {
			return nil, apperr.OrderState(order.OrderID, string(order.Status), "confirm mix")
		}
		lines, err := order.Lines()
		if err != nil {
			return nil, err
		}

		// 3. Lock lots and re-check stock, same-lot lines summed
		requested := make(map[string]decimal.Decimal)
		for _, l := range lines {
			requested[l.LotCode] = requested[l.LotCode].Add(l.ProductQuantity)
		}
		codes := make([]string, 0, len(requested))
		for code := range requested {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		lots, err := s.lotRepo.WithTx(tx).LockByCodes(ctx, codes)
		if err != nil {
			return nil, err
		}
		consumed, err := s.egressRepo.WithTx(tx).ConsumedByLot(ctx, codes)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			remaining := model.Qty(lots[code].InitialQuantity.Sub(consumed[code]))
			if !kardex.Available(remaining, requested[code]) {
				return nil, apperr.InsufficientStock(code, model.Qty(requested[code]), remaining)
			}
		}

		// 4. Egresses + status in one batch
		batch := make(repository.Batch, 0, len(lines)+1)
		day := model.DateOnly(now, s.settings.loc())
		orderRef := order.OrderID
		for i, l := range lines {
			e := &model.Egress{
				EgressID:      model.OrderEgressID(order.OrderID, i+1),
				Date:          day,
				LotCode:       l.LotCode,
				ProductCode:   lots[l.LotCode].ProductCode,
				OrderID:       &orderRef,
				Line:          i + 1,
				Sector:        order.Sector,
				Shift:         order.Shift,
				Quantity:      model.Qty(l.ProductQuantity),
				TreatmentGoal: order.Goal,
			}
			e.Stamp(actor)
			batch = append(batch, repository.Insert(e))
		}

		mixedAt := now.UTC()
		order.Status = next
		order.MixOperator = mixOperator
		order.MixedAt = &mixedAt
		order.Stamp(actor)
		mixed = order
		return append(batch, repository.Update(order)), nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInsufficientStock {
			s.logger.Info("mix refused", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("work order mixed",
		zap.String("order_id", orderID),
		zap.String("mix_operator", mixOperator),
		zap.String("actor", actor))
	return mixed, nil
}

func (s *workOrderService) RecordApplication(ctx context.Context, orderID string, rec *model.ApplicationRecord, actor string) (*model.WorkOrder, error) {
	// 1. Validate the record
	if rec == nil {
		return nil, apperr.Validation("application record is required")
	}
	if err := validate(rec); err != nil {
		return nil, err
	}
	if !rec.HourMeterEnd.GreaterThan(rec.HourMeterStart) {
		return nil, apperr.Validation("hour_meter_end (%s) must be greater than hour_meter_start (%s)",
			rec.HourMeterEnd.String(), rec.HourMeterStart.String())
	}

	release := s.locks.Acquire(orderKey(orderID))
	defer release()

	var applied *model.WorkOrder
	now := s.settings.now()
	err := s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		next, ok := order.Status.Next(model.EventApply)
		if !ok {
			return nil, apperr.OrderState(order.OrderID, string(order.Status), "record application")
		}
		if err := order.SetApplication(rec); err != nil {
			return nil, err
		}
		completed := now.UTC()
		order.Status = next
		order.CompletedAt = &completed
		order.Stamp(actor)
		applied = order
		return repository.Batch{repository.Update(order)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("work order applied",
		zap.String("order_id", orderID),
		zap.String("tractor_id", rec.TractorID),
		zap.String("hours", rec.Hours().String()),
		zap.String("actor", actor))
	return applied, nil
}

func (s *workOrderService) Cancel(ctx context.Context, orderID, actor string) (*model.WorkOrder, error) {
	release := s.locks.Acquire(orderKey(orderID))
	defer release()

	var cancelled *model.WorkOrder
	err := s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		next, ok := order.Status.Next(model.EventCancel)
		if !ok {
			return nil, apperr.OrderState(order.OrderID, string(order.Status), "cancel")
		}
		order.Status = next
		order.Stamp(actor)
		cancelled = order
		return repository.Batch{repository.Update(order)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("work order cancelled", zap.String("order_id", orderID), zap.String("actor", actor))
	return cancelled, nil
}

// DeletePlanned removes an order that never reached the mixing tank.
func (s *workOrderService) DeletePlanned(ctx context.Context, orderID, actor string) error {
	release := s.locks.Acquire(orderKey(orderID))
	defer release()

	err := s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status != model.StatusPlanned {
			return nil, apperr.OrderState(order.OrderID, string(order.Status), "delete")
		}
		return repository.Batch{repository.Delete(order)}, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("work order deleted", zap.String("order_id", orderID), zap.String("actor", actor))
	return nil
}

// Rollback is the admin correction path: the order's egresses and its
// application record go away in one batch and the order is PLANNED again.
func (s *workOrderService) Rollback(ctx context.Context, orderID, actor string) (*model.WorkOrder, error) {
	current, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := current.Lines()
	if err != nil {
		return nil, err
	}
	keys := []string{orderKey(orderID)}
	for _, l := range lines {
		keys = append(keys, lotKey(l.LotCode))
	}
	release := s.locks.Acquire(keys...)
	defer release()

	var rolled *model.WorkOrder
	var removed int
	err = s.gw.Transact(ctx, func(tx *gorm.DB) (repository.Batch, error) {
		order, err := s.orderRepo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		next, ok := order.Status.Next(model.EventRollback)
		if !ok {
			return nil, apperr.OrderState(order.OrderID, string(order.Status), "roll back")
		}
		egresses, err := s.egressRepo.WithTx(tx).FindByOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		batch := make(repository.Batch, 0, len(egresses)+1)
		for i := range egresses {
			batch = append(batch, repository.Delete(&egresses[i]))
		}
		order.Status = next
		order.MixOperator = ""
		order.MixedAt = nil
		order.CompletedAt = nil
		order.ApplicationRecord = nil
		order.Stamp(actor)
		rolled = order
		removed = len(egresses)
		return append(batch, repository.Update(order)), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("work order rolled back",
		zap.String("order_id", orderID),
		zap.Int("egresses_removed", removed),
		zap.String("actor", actor))
	return rolled, nil
}

func (s *workOrderService) Get(ctx context.Context, orderID string) (*OrderDetail, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := order.Lines()
	if err != nil {
		return nil, err
	}
	app, err := order.Application()
	if err != nil {
		return nil, err
	}
	egresses, err := s.egressRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if egresses == nil {
		egresses = []model.Egress{}
	}
	return &OrderDetail{Order: order, Recipe: lines, Application: app, Egresses: egresses}, nil
}

func (s *workOrderService) List(ctx context.Context, filter repository.OrderFilter) ([]model.WorkOrder, error) {
	return s.orderRepo.FindAll(ctx, filter)
}
