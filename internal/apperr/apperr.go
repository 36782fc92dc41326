package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind is the stable error-kind string reported to clients.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindNotFound          Kind = "NotFoundError"
	KindOrderState        Kind = "OrderStateError"
	KindInsufficientStock Kind = "InsufficientStockError"
	KindConflict          Kind = "ConflictError"
	KindTransient         Kind = "TransientError"
	KindInternal          Kind = "InternalError"
)

// Postgres SQLSTATE codes the classifier cares about.
const (
	PgErrUniqueViolation     = "23505"
	PgErrForeignKeyViolation = "23503"
	PgErrNotNullViolation    = "23502"
	PgErrCheckViolation      = "23514"
	PgErrSerialization       = "40001"
	PgErrDeadlock            = "40P01"
	PgErrLockNotAvailable    = "55P03"
	PgErrQueryCanceled       = "57014"
	PgErrAdminShutdown       = "57P01"
)

type Error struct {
	Kind    Kind
	Message string

	// Set for InsufficientStockError.
	Lot       string
	Shortfall decimal.Decimal

	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrOrderState        = &Error{Kind: KindOrderState}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrTransient         = &Error{Kind: KindTransient}
)

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, key string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s '%s' not found", entity, key)}
}

func OrderState(orderID, status, op string) *Error {
	return &Error{Kind: KindOrderState, Message: fmt.Sprintf("work order %s is %s; cannot %s", orderID, status, op)}
}

func InsufficientStock(lot string, requested, remaining decimal.Decimal) *Error {
	shortfall := requested.Sub(remaining)
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock in lot %s: requested %s, remaining %s, short by %s", lot, requested.StringFixed(5), remaining.StringFixed(5), shortfall.StringFixed(5)),
		Lot:       lot,
		Shortfall: shortfall,
	}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "storage unavailable, retry later: " + err.Error(), Err: err}
}

// New builds an error of kind with a fixed message. Used when a kind
// arrives over the wire, e.g. in a sync response body.
func New(kind Kind, message string) *Error {
	switch kind {
	case KindValidation, KindNotFound, KindOrderState, KindInsufficientStock,
		KindConflict, KindTransient:
	default:
		kind = KindInternal
	}
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind carried by err, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Classify maps driver and context errors onto kinds. Errors that already
// carry a kind pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: "record not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: "duplicate primary key", Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &Error{Kind: KindValidation, Message: "reference to a missing row", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Transient(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPg(pgErr)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return &Error{Kind: KindConflict, Message: "duplicate primary key", Err: err}
		case sqliteErr.Code == sqlite3.ErrConstraint:
			return &Error{Kind: KindValidation, Message: sqliteErr.Error(), Err: err}
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return Transient(err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Transient(err)
	}

	return err
}

func classifyPg(pgErr *pgconn.PgError) error {
	code := pgErr.SQLState()
	switch {
	case code == PgErrUniqueViolation:
		return &Error{Kind: KindConflict, Message: "duplicate primary key: " + pgErr.Detail, Err: pgErr}
	case code == PgErrForeignKeyViolation, code == PgErrNotNullViolation, code == PgErrCheckViolation,
		strings.HasPrefix(code, "22"):
		return &Error{Kind: KindValidation, Message: pgErr.Message, Err: pgErr}
	case code == PgErrSerialization, code == PgErrDeadlock, code == PgErrLockNotAvailable,
		code == PgErrQueryCanceled, code == PgErrAdminShutdown, strings.HasPrefix(code, "08"):
		return Transient(pgErr)
	}
	return pgErr
}
