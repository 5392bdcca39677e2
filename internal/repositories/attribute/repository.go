package attribute

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/matcher/pkg/database"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

const table = "attributes"

var (
	columns  = []string{"id", "object_id", "platform_id", "name", "kind", "value", "normalized", "created_at"}
	factCols = []string{"object_id", "platform_id", "name", "kind", "value"}
)

// Repository handles attribute persistence. Attributes are append-only; a fact is
// (object, platform, name, kind, value) and is stored once.
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

func (r *Repository) List(ctx context.Context, objectID int64) (models.AttributeSet, error) {
	ctx, span := tracing.StartSpan(ctx, "attribute.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("object_id", objectID))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	var attrs models.AttributeSet
	if err := r.db.Conn(ctx).SelectContext(ctx, &attrs, query, args...); err != nil {
		return nil, database.MapError(ctx, "attributes.list", err)
	}
	return attrs, nil
}

func (r *Repository) Append(ctx context.Context, objectID int64, attrs models.AttributeSet) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "attribute.Repository.Append")
	defer span.End()

	if len(attrs) == 0 {
		return 0, nil
	}

	ib := database.NewInsertBuilder().
		InsertInto(table).
		Cols("object_id", "platform_id", "name", "kind", "value", "normalized")
	for _, a := range attrs {
		ib.Values(objectID, a.PlatformID, a.Name, string(a.Kind), a.Value, a.Normalized)
	}
	ib.OnConflictDoNothing(factCols...)

	query, args := ib.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("object_id", objectID).Error("Failed to append attributes")
		return 0, database.MapError(ctx, "attributes.append", err)
	}
	written, _ := result.RowsAffected()
	return int(written), nil
}

// Reassign moves attributes to another object. Facts the target already holds stay with
// the source and go away with it.
func (r *Repository) Reassign(ctx context.Context, fromObjectID, toObjectID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "attribute.Repository.Reassign")
	defer span.End()

	const query = `
UPDATE attributes AS a
SET object_id = $1
WHERE a.object_id = $2
  AND NOT EXISTS (
    SELECT 1 FROM attributes AS t
    WHERE t.object_id = $1
      AND t.platform_id = a.platform_id
      AND t.name = a.name
      AND t.kind = a.kind
      AND t.value = a.value
  )`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, toObjectID, fromObjectID)
	if err != nil {
		return 0, database.MapError(ctx, "attributes.reassign", err)
	}
	moved, _ := result.RowsAffected()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom(table)
	del.Where(del.Equal("object_id", fromObjectID))
	dq, dargs := del.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, dq, dargs...); err != nil {
		return 0, database.MapError(ctx, "attributes.reassign", err)
	}
	return int(moved), nil
}

// FindCandidates returns ids of objects of the given type holding at least one of the
// keys, ascending, at most limit.
func (r *Repository) FindCandidates(ctx context.Context, objectType models.ObjectType, keys []models.MatchKey, limit int) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "attribute.Repository.FindCandidates")
	defer span.End()

	if len(keys) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT a.object_id")
	sb.From("attributes AS a")
	sb.Join("objects AS o", "o.id = a.object_id")

	matches := make([]string, len(keys))
	for i, k := range keys {
		matches[i] = sb.And(sb.Equal("a.name", k.Name), sb.Equal("a.normalized", k.Value))
	}
	sb.Where(
		sb.Equal("o.type", int(objectType)),
		sb.Or(matches...),
	)
	sb.OrderBy("a.object_id").Asc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var ids []int64
	if err := r.db.Conn(ctx).SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, database.MapError(ctx, "attributes.find_candidates", err)
	}
	return ids, nil
}
