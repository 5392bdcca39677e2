package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/matcher/pkg/models"
)

type fakeWriter struct {
	batches [][]Statement
	err     error
}

func (w *fakeWriter) Write(_ context.Context, statements []Statement) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, statements)
	return nil
}

// blockingWriter holds every write until its context ends.
type blockingWriter struct {
	deadlines []time.Duration
}

func (w *blockingWriter) Write(ctx context.Context, _ []Statement) error {
	if deadline, ok := ctx.Deadline(); ok {
		w.deadlines = append(w.deadlines, time.Until(deadline))
	}
	<-ctx.Done()
	return ctx.Err()
}

func newProjector(w Writer) *Projector {
	p := NewProjector(w, 0, ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {}))
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestProjectDecision_CreateUpsertsNodeAndLink(t *testing.T) {
	w := &fakeWriter{}
	p := newProjector(w)

	err := p.ProjectDecision(context.Background(), models.Decision{
		Kind:       models.DecisionCreate,
		ObjectID:   7,
		ObjectType: models.ObjectTypeMovie,
		PlatformID: 1,
		ExternalID: "nf-1",
	})
	require.NoError(t, err)

	require.Len(t, w.batches, 1)
	batch := w.batches[0]
	require.Len(t, batch, 2)

	assert.Contains(t, batch[0].Cypher, "MERGE (n:Movie {id: $id})")
	assert.Equal(t, int64(7), batch[0].Params["id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", batch[0].Params["now"])

	assert.Contains(t, batch[1].Cypher, "MERGE (l:Link {platform_id: $platform_id, external_id: $external_id})")
	assert.Contains(t, batch[1].Cypher, "-[:IDENTIFIES]->")
	assert.Equal(t, "nf-1", batch[1].Params["external_id"])
}

func TestProjectDecision_MergeMovesThenDeletesLosers(t *testing.T) {
	w := &fakeWriter{}
	p := newProjector(w)

	err := p.ProjectDecision(context.Background(), models.Decision{
		Kind:       models.DecisionMerge,
		ObjectID:   3,
		ObjectType: models.ObjectTypeSerie,
		Losers:     []int64{5, 8},
		PlatformID: 2,
		ExternalID: "am-9",
	})
	require.NoError(t, err)

	batch := w.batches[0]
	perLoser := 2*len(movableRelations) + 1
	require.Len(t, batch, 2+2*perLoser)

	for i, loser := range []int64{5, 8} {
		start := 2 + i*perLoser
		for _, st := range batch[start : start+perLoser-1] {
			assert.Equal(t, loser, st.Params["loser"])
			assert.Equal(t, int64(3), st.Params["winner"])
			assert.Contains(t, st.Cypher, ":Serie {id: $loser}")
			assert.Contains(t, st.Cypher, "SET n += properties(r)")
		}
		last := batch[start+perLoser-1]
		assert.Contains(t, last.Cypher, "DETACH DELETE n")
		assert.Equal(t, loser, last.Params["id"])
	}
}

func TestProjectDecision_SkipsDeferred(t *testing.T) {
	w := &fakeWriter{}
	p := newProjector(w)

	require.NoError(t, p.ProjectDecision(context.Background(), models.Decision{Kind: models.DecisionDeferred}))
	assert.Empty(t, w.batches)
}

func TestProjectDecision_UnknownType(t *testing.T) {
	p := newProjector(&fakeWriter{})
	err := p.ProjectDecision(context.Background(), models.Decision{Kind: models.DecisionCreate, ObjectType: models.ObjectType(42)})
	assert.Error(t, err)
}

func TestProjectEdge(t *testing.T) {
	two := 2
	writer := models.RoleTypeWriter

	tests := []struct {
		name      string
		edge      models.Edge
		wantCount int
		wantText  string
	}{
		{
			name:      "season of",
			edge:      models.Edge{Kind: models.RelationSeasonOf, FromID: 1, ToID: 2, Number: &two},
			wantCount: 2,
			wantText:  "MERGE (c)-[r:SEASON_OF]->(p)",
		},
		{
			name:      "serie of",
			edge:      models.Edge{Kind: models.RelationSerieOf, FromID: 2, ToID: 3},
			wantCount: 2,
			wantText:  "MATCH (p:Serie {id: $to})",
		},
		{
			name:      "writer role",
			edge:      models.Edge{Kind: models.RelationRole, FromID: 4, ToID: 3, Role: &writer},
			wantCount: 1,
			wantText:  "MERGE (p)-[:WRITER]->(w)",
		},
		{
			name:      "role defaults to actor",
			edge:      models.Edge{Kind: models.RelationRole, FromID: 4, ToID: 3},
			wantCount: 1,
			wantText:  "MERGE (p)-[:ACTOR]->(w)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			require.NoError(t, newProjector(w).ProjectEdge(context.Background(), tt.edge))

			require.Len(t, w.batches, 1)
			batch := w.batches[0]
			require.Len(t, batch, tt.wantCount)

			var all []string
			for _, st := range batch {
				all = append(all, st.Cypher)
				assert.Equal(t, tt.edge.FromID, st.Params["from"])
				assert.Equal(t, tt.edge.ToID, st.Params["to"])
			}
			assert.Contains(t, strings.Join(all, "\n"), tt.wantText)
		})
	}
}

func TestProjectEdge_SeasonNumber(t *testing.T) {
	w := &fakeWriter{}
	two := 2
	require.NoError(t, newProjector(w).ProjectEdge(context.Background(), models.Edge{Kind: models.RelationSeasonOf, FromID: 1, ToID: 2, Number: &two}))
	assert.Equal(t, 2, w.batches[0][1].Params["number"])

	w = &fakeWriter{}
	require.NoError(t, newProjector(w).ProjectEdge(context.Background(), models.Edge{Kind: models.RelationSeasonOf, FromID: 1, ToID: 2}))
	assert.Nil(t, w.batches[0][1].Params["number"])
}

func TestObserve_SwallowsWriteErrors(t *testing.T) {
	p := newProjector(&fakeWriter{err: errors.New("bolt: connection refused")})

	assert.NotPanics(t, func() {
		p.Observe(context.Background(), models.Scrap{}, models.Decision{Kind: models.DecisionCreate, ObjectID: 1, ObjectType: models.ObjectTypeMovie})
		p.ObserveEdge(context.Background(), models.Scrap{}, models.Edge{Kind: models.RelationSerieOf, FromID: 1, ToID: 2})
	})
}

func TestObserve_WritesAreBoundedByTimeout(t *testing.T) {
	w := &blockingWriter{}
	p := NewProjector(w, 20*time.Millisecond, ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {}))

	decision := models.Decision{Kind: models.DecisionCreate, ObjectID: 7, ObjectType: models.ObjectTypeMovie}
	edge := models.Edge{Kind: models.RelationSeasonOf, FromID: 2, ToID: 1}

	start := time.Now()
	p.Observe(context.Background(), models.Scrap{}, decision)
	p.ObserveEdge(context.Background(), models.Scrap{}, edge)
	elapsed := time.Since(start)

	require.Len(t, w.deadlines, 2)
	for _, d := range w.deadlines {
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
	assert.Less(t, elapsed, time.Second)
}

func TestNewProjector_DefaultsWriteTimeout(t *testing.T) {
	p := NewProjector(&fakeWriter{}, 0, ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {}))
	assert.Equal(t, DefaultWriteTimeout, p.timeout)
}
