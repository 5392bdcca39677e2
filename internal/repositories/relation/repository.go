package relation

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/matcher/pkg/database"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

// Repository handles the typed edges between objects: episode to season, season to
// serie, person to work, and person data.
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

func (r *Repository) UpsertEpisode(ctx context.Context, episode models.Episode) error {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.UpsertEpisode")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("episodes").
		Cols("object_id", "season_id", "number").
		Values(episode.ObjectID, episode.SeasonID, episode.Number).
		OnConflictUpdate([]string{"object_id"}, "season_id", "number")

	return r.exec(ctx, "relations.upsert", ib)
}

func (r *Repository) UpsertSeason(ctx context.Context, season models.Season) error {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.UpsertSeason")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("seasons").
		Cols("object_id", "serie_id", "number").
		Values(season.ObjectID, season.SerieID, season.Number).
		OnConflictUpdate([]string{"object_id"}, "serie_id", "number")

	return r.exec(ctx, "relations.upsert", ib)
}

func (r *Repository) UpsertRole(ctx context.Context, role models.Role) error {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.UpsertRole")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("roles").
		Cols("person_id", "object_id", "role").
		Values(role.PersonID, role.ObjectID, int(role.Role)).
		OnConflictDoNothing("person_id", "object_id", "role")

	return r.exec(ctx, "relations.upsert", ib)
}

func (r *Repository) UpsertPerson(ctx context.Context, person models.Person) error {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.UpsertPerson")
	defer span.End()

	ib := database.NewInsertBuilder().
		InsertInto("persons").
		Cols("object_id", "gender").
		Values(person.ObjectID, int(person.Gender)).
		OnConflictUpdate([]string{"object_id"}, "gender")

	return r.exec(ctx, "relations.upsert", ib)
}

type reassignStatement struct {
	query string
	args  func(from, to int64) []any
}

func fromAndTo(from, to int64) []any { return []any{from, to} }
func fromOnly(from, _ int64) []any  { return []any{from} }

// When both objects own a row the target keeps its values and only fills the gaps from
// the source; otherwise the source row moves. What is left on the source is removed and
// references to the source are rewritten to the target.
var reassignStatements = []reassignStatement{
	{`UPDATE episodes AS t SET season_id = COALESCE(t.season_id, s.season_id), number = COALESCE(t.number, s.number)
	  FROM episodes AS s WHERE t.object_id = $2 AND s.object_id = $1`, fromAndTo},
	{`UPDATE episodes SET object_id = $2 WHERE object_id = $1
	   AND NOT EXISTS (SELECT 1 FROM episodes WHERE object_id = $2)`, fromAndTo},
	{`DELETE FROM episodes WHERE object_id = $1`, fromOnly},
	{`UPDATE seasons AS t SET serie_id = COALESCE(t.serie_id, s.serie_id), number = COALESCE(t.number, s.number)
	  FROM seasons AS s WHERE t.object_id = $2 AND s.object_id = $1`, fromAndTo},
	{`UPDATE seasons SET object_id = $2 WHERE object_id = $1
	   AND NOT EXISTS (SELECT 1 FROM seasons WHERE object_id = $2)`, fromAndTo},
	{`DELETE FROM seasons WHERE object_id = $1`, fromOnly},
	{`UPDATE persons AS t SET gender = s.gender
	  FROM persons AS s WHERE t.object_id = $2 AND s.object_id = $1 AND t.gender = 0`, fromAndTo},
	{`UPDATE persons SET object_id = $2 WHERE object_id = $1
	   AND NOT EXISTS (SELECT 1 FROM persons WHERE object_id = $2)`, fromAndTo},
	{`DELETE FROM persons WHERE object_id = $1`, fromOnly},
	{`UPDATE episodes SET season_id = $2 WHERE season_id = $1`, fromAndTo},
	{`UPDATE seasons SET serie_id = $2 WHERE serie_id = $1`, fromAndTo},
	{`INSERT INTO roles (person_id, object_id, role)
	 SELECT CASE WHEN person_id = $1 THEN $2::bigint ELSE person_id END,
	        CASE WHEN object_id = $1 THEN $2::bigint ELSE object_id END,
	        role
	 FROM roles WHERE person_id = $1 OR object_id = $1
	 ON CONFLICT (person_id, object_id, role) DO NOTHING`, fromAndTo},
	{`DELETE FROM roles WHERE person_id = $1 OR object_id = $1`, fromOnly},
}

func (r *Repository) Reassign(ctx context.Context, fromObjectID, toObjectID int64) error {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.Reassign")
	defer span.End()

	conn := r.db.Conn(ctx)
	for _, statement := range reassignStatements {
		if _, err := conn.ExecContext(ctx, statement.query, statement.args(fromObjectID, toObjectID)...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"from_object_id": fromObjectID,
				"to_object_id":   toObjectID,
			}).Error("Failed to reassign relations")
			return database.MapError(ctx, "relations.reassign", err)
		}
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, op string, ib *database.InsertBuilder) error {
	query, args := ib.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return database.MapError(ctx, op, err)
	}
	return nil
}
