package repository

import (
	"context"
	"fmt"
	"reflect"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is a single-table write. Updates and deletes address the row by its
// primary key, so Row must carry a non-nil ID.
type Op struct {
	Kind OpKind
	Row  interface{}
}

func Insert(row interface{}) Op { return Op{Kind: OpInsert, Row: row} }
func Update(row interface{}) Op { return Op{Kind: OpUpdate, Row: row} }
func Delete(row interface{}) Op { return Op{Kind: OpDelete, Row: row} }

// Batch is applied as one all-or-nothing unit, in order.
type Batch []Op

// Tables lists every table the gateway serves.
func Tables() []interface{} {
	tables := []interface{}{
		&model.Product{}, &model.Lot{}, &model.Egress{}, &model.WorkOrder{}, &model.User{},
	}
	return append(tables, model.JournalModels()...)
}

// Gateway is the only write path to durable storage.
type Gateway interface {
	// Write applies batch atomically.
	Write(ctx context.Context, batch Batch) error
	// Transact runs fn inside a transaction (for locked reads) and then
	// applies the batch it returns in that same transaction.
	Transact(ctx context.Context, fn func(tx *gorm.DB) (Batch, error)) error
	// DB returns a read handle bound to ctx.
	DB(ctx context.Context) *gorm.DB
}

type gateway struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGateway(db *gorm.DB, logger *zap.Logger) Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gateway{db: db, logger: logger}
}

func (g *gateway) DB(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx)
}

func (g *gateway) Write(ctx context.Context, batch Batch) error {
	return g.Transact(ctx, func(*gorm.DB) (Batch, error) { return batch, nil })
}

func (g *gateway) Transact(ctx context.Context, fn func(tx *gorm.DB) (Batch, error)) error {
	var applied int
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := fn(tx)
		if err != nil {
			return err
		}
		for i, op := range batch {
			if err := applyOp(tx, op); err != nil {
				return fmt.Errorf("batch op %d (%s %s): %w", i, op.Kind, tableOf(op.Row), err)
			}
		}
		applied = len(batch)
		return nil
	})
	if err != nil {
		classified := apperr.Classify(err)
		if apperr.KindOf(classified) == apperr.KindTransient {
			g.logger.Warn("gateway write failed, retryable", zap.Error(err))
		}
		return classified
	}
	if applied > 0 {
		g.logger.Debug("batch committed", zap.Int("ops", applied))
	}
	return nil
}

func applyOp(tx *gorm.DB, op Op) error {
	switch op.Kind {
	case OpInsert:
		return tx.Create(op.Row).Error
	case OpUpdate:
		if !hasID(op.Row) {
			return apperr.Validation("update of %s without primary key", tableOf(op.Row))
		}
		return tx.Save(op.Row).Error
	case OpDelete:
		if err := deletable(op.Row); err != nil {
			return err
		}
		res := tx.Delete(op.Row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(tableOf(op.Row), idOf(op.Row).String())
		}
		return nil
	}
	return apperr.Validation("unknown batch operation %q", op.Kind)
}

// deletable enforces the delete policy: egress corrections and work orders
// that never left PLANNED.
func deletable(row interface{}) error {
	if !hasID(row) {
		return apperr.Validation("delete of %s without primary key", tableOf(row))
	}
	switch r := row.(type) {
	case *model.Egress:
		return nil
	case *model.WorkOrder:
		if r.Status != model.StatusPlanned {
			return apperr.OrderState(r.OrderID, string(r.Status), "delete")
		}
		return nil
	}
	return apperr.Validation("rows of %s cannot be deleted", tableOf(row))
}

func tableOf(row interface{}) string {
	if t, ok := row.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	typ := reflect.TypeOf(row)
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil {
		return "<nil>"
	}
	return typ.Name()
}

func idOf(row interface{}) uuid.UUID {
	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return uuid.Nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return uuid.Nil
	}
	f := v.FieldByName("ID")
	if !f.IsValid() {
		return uuid.Nil
	}
	id, _ := f.Interface().(uuid.UUID)
	return id
}

func hasID(row interface{}) bool {
	return idOf(row) != uuid.Nil
}
