package object

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/matcher/pkg/database"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

const table = "objects"

// Repository handles canonical object persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, objectType models.ObjectType) (*models.CanonicalObject, error) {
	ctx, span := tracing.StartSpan(ctx, "object.Repository.Create")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto(table).
		Cols("type").
		Values(int(objectType)).
		Returning("id", "type", "created_at")

	query, args := ib.Build()
	var obj models.CanonicalObject
	if err := r.db.Conn(ctx).GetContext(ctx, &obj, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create object")
		return nil, database.MapError(ctx, "objects.create", err)
	}
	return &obj, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*models.CanonicalObject, error) {
	ctx, span := tracing.StartSpan(ctx, "object.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "type", "created_at")
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var obj models.CanonicalObject
	if err := r.db.Conn(ctx).GetContext(ctx, &obj, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, merrors.NewNotFoundError("object", id)
		}
		return nil, database.MapError(ctx, "objects.get", err)
	}
	return &obj, nil
}

// Lock takes FOR UPDATE row locks. Rows are locked in ascending id order so that two
// merges over overlapping objects cannot deadlock.
func (r *Repository) Lock(ctx context.Context, ids []int64) ([]models.CanonicalObject, error) {
	ctx, span := tracing.StartSpan(ctx, "object.Repository.Lock")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "type", "created_at")
	sb.From(table)
	sb.Where(sb.In("id", sqlbuilder.Flatten(sorted)...))
	sb.OrderBy("id").Asc()
	sb.ForUpdate()

	query, args := sb.Build()
	var objects []models.CanonicalObject
	if err := r.db.Conn(ctx).SelectContext(ctx, &objects, query, args...); err != nil {
		return nil, database.MapError(ctx, "objects.lock", err)
	}
	return objects, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "object.Repository.Delete")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom(table)
	del.Where(del.Equal("id", id))

	query, args := del.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return database.MapError(ctx, "objects.delete", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return merrors.NewNotFoundError("object", id)
	}

	r.logger.WithContext(ctx).WithField("object_id", id).Debug("Deleted object")
	return nil
}

func (r *Repository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "object.Repository.ExistingIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From(table)
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	var existing []int64
	if err := r.db.Conn(ctx).SelectContext(ctx, &existing, query, args...); err != nil {
		return nil, database.MapError(ctx, "objects.existing", err)
	}
	return existing, nil
}

func (r *Repository) ListIDsByType(ctx context.Context, objectType models.ObjectType, afterID int64, limit int) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "object.Repository.ListIDsByType")
	defer span.End()

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From(table)
	sb.Where(
		sb.Equal("type", int(objectType)),
		sb.GreaterThan("id", afterID),
	)
	sb.OrderBy("id").Asc()
	sb.Limit(limit)

	query, args := sb.Build()
	var ids []int64
	if err := r.db.Conn(ctx).SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, database.MapError(ctx, "objects.list_by_type", err)
	}
	return ids, nil
}
