package link

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/matcher/pkg/database"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

const table = "object_links"

var columns = []string{"id", "object_id", "platform_id", "external_id", "original_content", "rating", "created_at"}

type row struct {
	ID              int64     `db:"id"`
	ObjectID        int64     `db:"object_id"`
	PlatformID      int64     `db:"platform_id"`
	ExternalID      string    `db:"external_id"`
	OriginalContent *bool     `db:"original_content"`
	Rating          *int      `db:"rating"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r row) toModel() models.ObjectLink {
	link := models.ObjectLink{
		ID:         r.ID,
		ObjectID:   r.ObjectID,
		PlatformID: r.PlatformID,
		ExternalID: r.ExternalID,
		CreatedAt:  r.CreatedAt,
	}
	if r.OriginalContent != nil || r.Rating != nil {
		link.WorkMeta = &models.WorkMeta{OriginalContent: r.OriginalContent, Rating: r.Rating}
	}
	return link
}

// Repository handles object link persistence. (platform_id, external_id) is unique
// across all objects.
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

func (r *Repository) FindByKey(ctx context.Context, platformID int64, externalID string) (*models.ObjectLink, error) {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.FindByKey")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("platform_id", platformID),
		sb.Equal("external_id", externalID),
	)

	query, args := sb.Build()
	var found row
	if err := r.db.Conn(ctx).GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, merrors.NewNotFoundError("link", fmt.Sprintf("%d/%s", platformID, externalID))
		}
		return nil, database.MapError(ctx, "links.find_by_key", err)
	}
	link := found.toModel()
	return &link, nil
}

// Create inserts the link and fills its id. A concurrent owner of the same key yields a
// ConflictError; inside a transaction the statement failure also aborts it, so callers
// retry in a fresh one.
func (r *Repository) Create(ctx context.Context, link *models.ObjectLink) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.Create")
	defer span.End()

	var original *bool
	var rating *int
	if link.WorkMeta != nil {
		original, rating = link.WorkMeta.OriginalContent, link.WorkMeta.Rating
	}

	ib := database.NewInsertBuilder().
		InsertInto(table).
		Cols("object_id", "platform_id", "external_id", "original_content", "rating").
		Values(link.ObjectID, link.PlatformID, link.ExternalID, original, rating).
		Returning("id", "created_at")

	query, args := ib.Build()
	var created struct {
		ID        int64     `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.Conn(ctx).GetContext(ctx, &created, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return merrors.NewConflictError("link", fmt.Sprintf("%d/%s", link.PlatformID, link.ExternalID), err)
		}
		return database.MapError(ctx, "links.create", err)
	}
	link.ID = created.ID
	link.CreatedAt = created.CreatedAt
	return nil
}

func (r *Repository) UpsertWorkMeta(ctx context.Context, linkID int64, meta models.WorkMeta) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.UpsertWorkMeta")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("original_content", meta.OriginalContent),
		ub.Assign("rating", meta.Rating),
	)
	ub.Where(ub.Equal("id", linkID))

	query, args := ub.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return database.MapError(ctx, "links.upsert_work_meta", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return merrors.NewNotFoundError("link", linkID)
	}
	return nil
}

func (r *Repository) ListByObject(ctx context.Context, objectID int64) ([]models.ObjectLink, error) {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.ListByObject")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("object_id", objectID))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	var rows []row
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.MapError(ctx, "links.list", err)
	}
	links := make([]models.ObjectLink, len(rows))
	for i, lr := range rows {
		links[i] = lr.toModel()
	}
	return links, nil
}

func (r *Repository) CountByObject(ctx context.Context, objectID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.CountByObject")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(sb.Equal("object_id", objectID))

	query, args := sb.Build()
	var count int
	if err := r.db.Conn(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, database.MapError(ctx, "links.count", err)
	}
	return count, nil
}

func (r *Repository) Reassign(ctx context.Context, fromObjectID, toObjectID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.Reassign")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(ub.Assign("object_id", toObjectID))
	ub.Where(ub.Equal("object_id", fromObjectID))

	query, args := ub.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, database.MapError(ctx, "links.reassign", err)
	}
	moved, _ := result.RowsAffected()
	return int(moved), nil
}
