package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/matcher/pkg/models"
)

// Statement is one parameterized Cypher query.
type Statement struct {
	Cypher string
	Params map[string]any
}

const (
	RelSeasonOf   = "SEASON_OF"
	RelSerieOf    = "SERIE_OF"
	RelDirector   = "DIRECTOR"
	RelActor      = "ACTOR"
	RelWriter     = "WRITER"
	RelIdentifies = "IDENTIFIES"
)

// movableRelations are the relationship types carried over from a merge loser.
var movableRelations = []string{RelSeasonOf, RelSerieOf, RelDirector, RelActor, RelWriter, RelIdentifies}

var labels = map[models.ObjectType]string{
	models.ObjectTypePerson:  "Person",
	models.ObjectTypeMovie:   "Movie",
	models.ObjectTypeEpisode: "Episode",
	models.ObjectTypeSeason:  "Season",
	models.ObjectTypeSerie:   "Serie",
}

// Label returns the node label of an object type.
func Label(t models.ObjectType) (string, error) {
	label, ok := labels[t]
	if !ok {
		return "", fmt.Errorf("no graph label for object type %d", t)
	}
	return label, nil
}

// RoleRelation returns the relationship type of a role.
func RoleRelation(role models.RoleType) string {
	switch role {
	case models.RoleTypeDirector:
		return RelDirector
	case models.RoleTypeWriter:
		return RelWriter
	default:
		return RelActor
	}
}

func upsertObject(label string, id int64, now time.Time) Statement {
	return Statement{
		Cypher: fmt.Sprintf(`MERGE (n:%s {id: $id})
ON CREATE SET n.created_at = $now
SET n.updated_at = $now`, label),
		Params: map[string]any{"id": id, "now": now.UTC().Format(time.RFC3339)},
	}
}

func upsertLink(label string, objectID, platformID int64, externalID string) Statement {
	return Statement{
		Cypher: fmt.Sprintf(`MATCH (n:%s {id: $object_id})
MERGE (l:Link {platform_id: $platform_id, external_id: $external_id})
MERGE (l)-[:%s]->(n)`, label, RelIdentifies),
		Params: map[string]any{"object_id": objectID, "platform_id": platformID, "external_id": externalID},
	}
}

// moveRelations copies every relationship of loser onto winner, both directions.
func moveRelations(label string, winner, loser int64) []Statement {
	params := map[string]any{"winner": winner, "loser": loser}
	out := make([]Statement, 0, 2*len(movableRelations))
	for _, rel := range movableRelations {
		out = append(out,
			Statement{
				Cypher: fmt.Sprintf(`MATCH (l:%[1]s {id: $loser})-[r:%[2]s]->(t)
MATCH (w:%[1]s {id: $winner})
WHERE t <> w
MERGE (w)-[n:%[2]s]->(t)
SET n += properties(r)`, label, rel),
				Params: params,
			},
			Statement{
				Cypher: fmt.Sprintf(`MATCH (s)-[r:%[2]s]->(l:%[1]s {id: $loser})
MATCH (w:%[1]s {id: $winner})
WHERE s <> w
MERGE (s)-[n:%[2]s]->(w)
SET n += properties(r)`, label, rel),
				Params: params,
			},
		)
	}
	return out
}

func deleteObject(label string, id int64) Statement {
	return Statement{
		Cypher: fmt.Sprintf(`MATCH (n:%s {id: $id})
DETACH DELETE n`, label),
		Params: map[string]any{"id": id},
	}
}

// edgeStatements mirrors one typed edge. An episode or season sits in one parent only, so
// earlier parent edges are removed first.
func edgeStatements(edge models.Edge) ([]Statement, error) {
	params := map[string]any{"from": edge.FromID, "to": edge.ToID}
	if edge.Number != nil {
		params["number"] = *edge.Number
	} else {
		params["number"] = nil
	}

	switch edge.Kind {
	case models.RelationSeasonOf:
		return parentEdge("Episode", "Season", RelSeasonOf, params), nil
	case models.RelationSerieOf:
		return parentEdge("Season", "Serie", RelSerieOf, params), nil
	case models.RelationRole:
		role := models.RoleTypeActor
		if edge.Role != nil {
			role = *edge.Role
		}
		works := []string{"w:Movie", "w:Serie", "w:Episode"}
		return []Statement{{
			Cypher: fmt.Sprintf(`MATCH (p:Person {id: $from})
MATCH (w {id: $to})
WHERE %s
MERGE (p)-[:%s]->(w)`, strings.Join(works, " OR "), RoleRelation(role)),
			Params: params,
		}}, nil
	}
	return nil, fmt.Errorf("unknown relation kind %q", edge.Kind)
}

func parentEdge(childLabel, parentLabel, rel string, params map[string]any) []Statement {
	return []Statement{
		{
			Cypher: fmt.Sprintf(`MATCH (c:%s {id: $from})-[old:%s]->(p)
WHERE p.id <> $to
DELETE old`, childLabel, rel),
			Params: params,
		},
		{
			Cypher: fmt.Sprintf(`MATCH (c:%s {id: $from})
MATCH (p:%s {id: $to})
MERGE (c)-[r:%s]->(p)
SET r.number = $number`, childLabel, parentLabel, rel),
			Params: params,
		},
	}
}
