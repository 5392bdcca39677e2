package database

import (
	"context"
	"errors"

	"github.com/lib/pq"

	merrors "github.com/Ramsey-B/matcher/pkg/errors"
)

const (
	pqUniqueViolation = pq.ErrorCode("23505")
	pqQueryCanceled   = pq.ErrorCode("57014")
)

// MapError translates driver errors into the shared taxonomy: deadline and statement
// cancellation become StoreTimeoutError, unique violations become ConflictError.
func MapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return merrors.NewStoreTimeoutError(op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqQueryCanceled:
			return merrors.NewStoreTimeoutError(op, err)
		case pqUniqueViolation:
			return merrors.NewConflictError(pqErr.Table, pqErr.Constraint, err)
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
