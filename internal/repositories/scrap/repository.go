package scrap

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/matcher/pkg/database"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

const (
	table         = "scraps"
	rawLinksTable = "scrap_raw_links"
	linksTable    = "scrap_links"
)

var columns = []string{"id", "platform_id", "status", "claimed_by", "claimed_at", "finished_at", "result", "created_at", "updated_at"}

type row struct {
	models.Scrap
	Result database.JSONB[*models.ProcessingResult] `db:"result"`
}

func (r row) toModel() *models.Scrap {
	scrap := r.Scrap
	scrap.Result = r.Result.GetValue()
	return &scrap
}

type rawLinkRow struct {
	Position int                            `db:"position"`
	Payload  database.JSONB[models.RawLink] `db:"payload"`
}

// Repository handles scrap persistence and the claim protocol between workers.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Repository) Create(ctx context.Context, platformID int64) (*models.Scrap, error) {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.Create")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto(table).
		Cols("platform_id", "status").
		Values(platformID, string(models.ScrapStatusPending)).
		Returning(columns...)

	query, args := ib.Build()
	var created row
	if err := r.db.Conn(ctx).GetContext(ctx, &created, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("platform_id", platformID).Error("Failed to create scrap")
		return nil, database.MapError(ctx, "scraps.create", err)
	}
	return created.toModel(), nil
}

// AddRawLinks appends links after the ones already stored, keeping their order.
func (r *Repository) AddRawLinks(ctx context.Context, scrapID int64, links []models.RawLink) error {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.AddRawLinks")
	defer span.End()

	if _, err := r.Get(ctx, scrapID); err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COALESCE(MAX(position) + 1, 0)")
	sb.From(rawLinksTable)
	sb.Where(sb.Equal("scrap_id", scrapID))

	query, args := sb.Build()
	var next int
	if err := r.db.Conn(ctx).GetContext(ctx, &next, query, args...); err != nil {
		return database.MapError(ctx, "scraps.add_raw_links", err)
	}

	ib := database.NewInsertBuilder().
		InsertInto(rawLinksTable).
		Cols("scrap_id", "position", "payload")
	for i, link := range links {
		link.ScrapID = scrapID
		link.Position = next + i
		ib.Values(scrapID, link.Position, database.NewJSONB(link))
	}

	query, args = ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return database.MapError(ctx, "scraps.add_raw_links", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*models.Scrap, error) {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var found row
	if err := r.db.Conn(ctx).GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, merrors.NewNotFoundError("scrap", id)
		}
		return nil, database.MapError(ctx, "scraps.get", err)
	}
	return found.toModel(), nil
}

func (r *Repository) Latest(ctx context.Context) (*models.Scrap, error) {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.Latest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("created_at DESC", "id DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var found row
	if err := r.db.Conn(ctx).GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, merrors.NewNotFoundError("scrap", "latest")
		}
		return nil, database.MapError(ctx, "scraps.latest", err)
	}
	return found.toModel(), nil
}

// Claim is a single conditional UPDATE: of two workers racing for the same scrap only
// one gets the row back.
func (r *Repository) Claim(ctx context.Context, id int64, workerID string, staleAfter time.Duration) (*models.Scrap, error) {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.Claim")
	defer span.End()

	now := r.now().UTC()
	claimable := make([]any, len(models.ClaimableStatuses))
	for i, s := range models.ClaimableStatuses {
		claimable[i] = string(s)
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", string(models.ScrapStatusProcessing)),
		ub.Assign("claimed_by", workerID),
		ub.Assign("claimed_at", now),
		"finished_at = NULL",
		"result = NULL",
		ub.Assign("updated_at", now),
	)
	eligible := ub.In("status", claimable...)
	if staleAfter > 0 {
		eligible = ub.Or(eligible, ub.And(
			ub.Equal("status", string(models.ScrapStatusProcessing)),
			ub.LessThan("claimed_at", now.Add(-staleAfter)),
		))
	}
	ub.Where(ub.Equal("id", id), eligible)
	ub.SQL("RETURNING " + strings.Join(columns, ", "))

	query, args := ub.Build()
	var claimed row
	err := r.db.Conn(ctx).GetContext(ctx, &claimed, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, merrors.NewConflictError("scrap", id, nil)
	}
	if err != nil {
		return nil, database.MapError(ctx, "scraps.claim", err)
	}
	return claimed.toModel(), nil
}

// Finish records the outcome. Only the worker holding the claim may finish a scrap.
func (r *Repository) Finish(ctx context.Context, id int64, workerID string, status models.ScrapStatus, result models.ProcessingResult) error {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.Finish")
	defer span.End()

	now := r.now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", string(status)),
		ub.Assign("finished_at", now),
		ub.Assign("result", database.NewJSONB(result)),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", string(models.ScrapStatusProcessing)),
		ub.Equal("claimed_by", workerID),
	)

	query, args := ub.Build()
	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return database.MapError(ctx, "scraps.finish", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return merrors.NewConflictError("scrap", id, nil)
	}
	return nil
}

func (r *Repository) ListRawLinks(ctx context.Context, scrapID int64) ([]models.RawLink, error) {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.ListRawLinks")
	defer span.End()

	if _, err := r.Get(ctx, scrapID); err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("position", "payload")
	sb.From(rawLinksTable)
	sb.Where(sb.Equal("scrap_id", scrapID))
	sb.OrderBy("position").Asc()

	query, args := sb.Build()
	var rows []rawLinkRow
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.MapError(ctx, "scraps.list_raw_links", err)
	}

	links := make([]models.RawLink, len(rows))
	for i, lr := range rows {
		link := lr.Payload.GetValue()
		link.ScrapID = scrapID
		link.Position = lr.Position
		links[i] = link
	}
	return links, nil
}

func (r *Repository) AttachLink(ctx context.Context, scrapID, linkID int64) error {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.AttachLink")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto(linksTable).
		Cols("scrap_id", "link_id").
		Values(scrapID, linkID).
		OnConflictDoNothing("scrap_id", "link_id")

	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return database.MapError(ctx, "scraps.attach_link", err)
	}
	return nil
}

var nukeTables = []string{
	linksTable, rawLinksTable, table,
	"roles", "persons", "seasons", "episodes",
	"attributes", "object_links", "objects",
}

func (r *Repository) Nuke(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "scrap.Repository.Nuke")
	defer span.End()

	query := "TRUNCATE " + strings.Join(nukeTables, ", ")
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query); err != nil {
		return database.MapError(ctx, "scraps.nuke", err)
	}
	r.logger.WithContext(ctx).Warn("Deleted all catalog and scrap data")
	return nil
}
