package service

import (
	"sort"
	"sync"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/config"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/pkg/validator"

	"github.com/shopspring/decimal"
)

// Settings carries the deployment knobs the services read.
type Settings struct {
	Location           *time.Location
	TrapMTDThreshold   float64
	LowStockMultiplier decimal.Decimal
	ExpiringWindowDays int
	RacimosPorTanda    int
	TrapEvaluationDays int

	// Now is the service clock; tests pin it.
	Now func() time.Time
}

func DefaultSettings() Settings {
	return Settings{
		Location:           time.UTC,
		TrapMTDThreshold:   0.5,
		LowStockMultiplier: decimal.NewFromInt(1),
		ExpiringWindowDays: 30,
		RacimosPorTanda:    100,
		TrapEvaluationDays: 7,
		Now:                time.Now,
	}
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Location:           cfg.Location(),
		TrapMTDThreshold:   cfg.Alerts.TrapMTDThreshold,
		LowStockMultiplier: decimal.NewFromFloat(cfg.Alerts.LowStockMultiplier),
		ExpiringWindowDays: cfg.Alerts.ExpiringWindowDays,
		RacimosPorTanda:    cfg.Field.RacimosPorTanda,
		TrapEvaluationDays: cfg.Field.TrapEvaluationDays,
		Now:                time.Now,
	}
}

func (s Settings) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s Settings) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// today is the local calendar day in stored form.
func (s Settings) today() time.Time {
	return model.DateOnly(s.now(), s.loc())
}

// validate runs the struct rules and reports every failed field.
func validate(v interface{}) error {
	if errs := validator.ValidateStruct(v); len(errs) > 0 {
		return apperr.Validation("%s", validator.Message(errs))
	}
	return nil
}

// LockSet hands out in-process mutexes by key. Work-order mutations take
// "order:<id>" and stock mutations take "lot:<code>" for every lot they
// touch; the database row locks cover other processes.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*keyLock)}
}

// Acquire locks every key in sorted order and returns the release func.
func (l *LockSet) Acquire(keys ...string) (release func()) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	uniq := make([]string, 0, len(sorted))
	for _, k := range sorted {
		if len(uniq) == 0 || uniq[len(uniq)-1] != k {
			uniq = append(uniq, k)
		}
	}

	held := make([]*keyLock, 0, len(uniq))
	for _, k := range uniq {
		l.mu.Lock()
		kl, ok := l.locks[k]
		if !ok {
			kl = &keyLock{}
			l.locks[k] = kl
		}
		kl.refs++
		l.mu.Unlock()

		kl.mu.Lock()
		held = append(held, kl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, k := range uniq {
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, k)
			}
		}
		l.mu.Unlock()
	}
}

func orderKey(orderID string) string { return "order:" + orderID }
func lotKey(lotCode string) string   { return "lot:" + lotCode }
