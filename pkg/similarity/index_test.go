package similarity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/matcher/internal/testsupport"
	"github.com/Ramsey-B/matcher/pkg/comparator"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
)

// stubComparator scores a candidate by looking its title up in a table. Every object
// shares one neighbour key.
type stubComparator struct {
	scores map[string]float64
}

func (c *stubComparator) Score(_ models.ObjectType, _, b models.AttributeSet) (comparator.Result, error) {
	titles := b.ByName("title")
	if len(titles) == 0 {
		return comparator.Result{}, nil
	}
	if titles[0].Value == "broken" {
		return comparator.Result{}, merrors.NewComparatorError("title", "broken", errors.New("unreadable"))
	}
	return comparator.Result{Score: c.scores[titles[0].Value], Confidence: 1}, nil
}

func (c *stubComparator) Keys(_ models.ObjectType, _ models.AttributeSet, _ comparator.KeyScope) []models.MatchKey {
	return []models.MatchKey{{Name: "group", Value: "all"}}
}

func (c *stubComparator) Normalize(_ models.ObjectType, attr models.Attribute) string {
	return attr.Value
}

type fixture struct {
	mem   *testsupport.MemStore
	cmp   *stubComparator
	edges *MemoryStore
	index *Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := testsupport.NewMemStore()
	cmp := &stubComparator{scores: map[string]float64{}}
	edges := NewMemoryStore(0)
	return &fixture{
		mem:   mem,
		cmp:   cmp,
		edges: edges,
		index: NewIndex(mem.Store(), cmp, edges, DefaultConfig(), testsupport.Logger(t)),
	}
}

func (f *fixture) seed(t *testing.T, objectType models.ObjectType, title string, score float64) int64 {
	t.Helper()
	ctx := context.Background()
	s := f.mem.Store()

	obj, err := s.Objects.Create(ctx, objectType)
	require.NoError(t, err)
	attrs := models.AttributeSet{
		models.NewStringAttribute("title", title, 1),
		models.NewStringAttribute("group", "all", 1),
	}
	for i := range attrs {
		attrs[i].Normalized = attrs[i].Value
	}
	_, err = s.Attributes.Append(ctx, obj.ID, attrs)
	require.NoError(t, err)
	f.cmp.scores[title] = score
	return obj.ID
}

func TestSimilar_OrdersByScoreThenID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	c1 := f.seed(t, models.ObjectTypeMovie, "c1", 0.5)
	c2 := f.seed(t, models.ObjectTypeMovie, "c2", 0.9)
	c3 := f.seed(t, models.ObjectTypeMovie, "c3", 0.7)
	c4 := f.seed(t, models.ObjectTypeMovie, "c4", 0.7)
	c5 := f.seed(t, models.ObjectTypeMovie, "c5", 0.5)
	f.seed(t, models.ObjectTypeMovie, "c6", 0.31)
	f.seed(t, models.ObjectTypeMovie, "c7", 0.3)
	f.seed(t, models.ObjectTypeMovie, "c8", 0.2)

	similar, err := f.index.Similar(ctx, subject, 5)
	require.NoError(t, err)

	assert.Equal(t, []models.Similar{
		{TargetID: c2, Score: 0.9},
		{TargetID: c3, Score: 0.7},
		{TargetID: c4, Score: 0.7},
		{TargetID: c1, Score: 0.5},
		{TargetID: c5, Score: 0.5},
	}, similar)
}

func TestRank_DisplayFloorIsStrict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	above := f.seed(t, models.ObjectTypeMovie, "above", 0.31)
	f.seed(t, models.ObjectTypeMovie, "at", 0.3)
	f.seed(t, models.ObjectTypeMovie, "below", 0.1)

	edges, err := f.index.Rank(ctx, subject, 10)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, above, edges[0].CandidateID)
	assert.Equal(t, subject, edges[0].SubjectID)
}

func TestRecompute_SameTypeOnlyAndSkipsSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	movie := f.seed(t, models.ObjectTypeMovie, "movie", 0.8)
	f.seed(t, models.ObjectTypeSerie, "serie", 0.95)

	edges, err := f.index.Recompute(ctx, subject)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, movie, edges[0].CandidateID)
}

func TestRecompute_SkipsMalformedCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	f.seed(t, models.ObjectTypeMovie, "broken", 0)
	good := f.seed(t, models.ObjectTypeMovie, "good", 0.6)

	edges, err := f.index.Recompute(ctx, subject)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, good, edges[0].CandidateID)
}

func TestRecompute_KeepsAtMostMaxEdges(t *testing.T) {
	f := newFixture(t)
	f.index.config.MaxEdges = 2
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	f.seed(t, models.ObjectTypeMovie, "a", 0.4)
	b := f.seed(t, models.ObjectTypeMovie, "b", 0.8)
	c := f.seed(t, models.ObjectTypeMovie, "c", 0.6)

	edges, err := f.index.Recompute(ctx, subject)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, b, edges[0].CandidateID)
	assert.Equal(t, c, edges[1].CandidateID)
}

func TestRank_ServesCacheUntilRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	other := f.seed(t, models.ObjectTypeMovie, "other", 0.5)

	edges, err := f.index.Rank(ctx, subject, 5)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0.5, edges[0].Score)

	f.cmp.scores["other"] = 0.9

	edges, err = f.index.Rank(ctx, subject, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, edges[0].Score, "cached edges are served as is")

	_, err = f.index.Recompute(ctx, subject)
	require.NoError(t, err)

	edges, err = f.index.Rank(ctx, subject, 5)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, other, edges[0].CandidateID)
	assert.Equal(t, 0.9, edges[0].Score)
}

func TestRank_FiltersRemovedCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	gone := f.seed(t, models.ObjectTypeMovie, "gone", 0.9)
	kept := f.seed(t, models.ObjectTypeMovie, "kept", 0.5)

	_, err := f.index.Recompute(ctx, subject)
	require.NoError(t, err)
	require.NoError(t, f.mem.Store().Objects.Delete(ctx, gone))

	edges, err := f.index.Rank(ctx, subject, 5)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, kept, edges[0].CandidateID)
}

func TestRecompute_DropsEdgesOfRemovedSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	f.seed(t, models.ObjectTypeMovie, "other", 0.5)

	_, err := f.index.Recompute(ctx, subject)
	require.NoError(t, err)
	require.NoError(t, f.mem.Store().Objects.Delete(ctx, subject))

	_, err = f.index.Recompute(ctx, subject)
	assert.True(t, merrors.IsNotFound(err))

	_, found, err := f.edges.Get(ctx, subject)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = f.index.Rank(ctx, subject, 5)
	assert.True(t, merrors.IsNotFound(err))
}

func TestRank_StaleEntryOfRemovedSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	f.seed(t, models.ObjectTypeMovie, "other", 0.5)

	_, err := f.index.Recompute(ctx, subject)
	require.NoError(t, err)
	require.NoError(t, f.mem.Store().Objects.Delete(ctx, subject))

	_, err = f.index.Rank(ctx, subject, 5)
	assert.True(t, merrors.IsNotFound(err))

	_, found, err := f.edges.Get(ctx, subject)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRank_NonPositiveLimit(t *testing.T) {
	f := newFixture(t)
	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)
	f.seed(t, models.ObjectTypeMovie, "other", 0.5)

	edges, err := f.index.Rank(context.Background(), subject, 0)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestRank_StoreTimeoutPropagates(t *testing.T) {
	f := newFixture(t)
	subject := f.seed(t, models.ObjectTypeMovie, "subject", 1)

	f.mem.Delay(testsupport.OpAttributesCandidates, 200*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.index.Rank(ctx, subject, 5)
	assert.True(t, merrors.IsStoreTimeout(err))
}

func TestRebuild_RecomputesEveryObjectOfType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := []int64{
		f.seed(t, models.ObjectTypeMovie, "a", 0.9),
		f.seed(t, models.ObjectTypeMovie, "b", 0.8),
		f.seed(t, models.ObjectTypeMovie, "c", 0.7),
	}
	f.seed(t, models.ObjectTypeSerie, "s", 0.9)

	count, err := f.index.Rebuild(ctx, models.ObjectTypeMovie, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	for _, id := range ids {
		edges, found, err := f.edges.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Len(t, edges, 2)
	}
}

func TestRank_WeightedComparatorTiesByID(t *testing.T) {
	mem := testsupport.NewMemStore()
	cmp := comparator.NewWeighted(comparator.DefaultWeights(), nil)
	index := NewIndex(mem.Store(), cmp, NewMemoryStore(0), DefaultConfig(), testsupport.Logger(t))
	ctx := context.Background()
	s := mem.Store()

	seed := func(title string, year int64) int64 {
		obj, err := s.Objects.Create(ctx, models.ObjectTypeMovie)
		require.NoError(t, err)
		attrs := models.AttributeSet{
			models.NewStringAttribute("title", title, 1),
			models.NewIntAttribute("year", year, 1),
		}
		for i := range attrs {
			attrs[i].Normalized = cmp.Normalize(models.ObjectTypeMovie, attrs[i])
		}
		_, err = s.Attributes.Append(ctx, obj.ID, attrs)
		require.NoError(t, err)
		return obj.ID
	}

	subject := seed("The Matrix", 1999)
	first := seed("The Matrix", 1999)
	second := seed("The Matrix", 1999)

	edges, err := index.Rank(ctx, subject, 5)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, first, edges[0].CandidateID)
	assert.Equal(t, second, edges[1].CandidateID)
	assert.Equal(t, edges[0].Score, edges[1].Score)

	again, err := index.Recompute(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, edges[0].Score, again[0].Score)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero floor", mutate: func(c *Config) { c.DisplayFloor = 0 }},
		{name: "floor of one", mutate: func(c *Config) { c.DisplayFloor = 1 }, wantErr: true},
		{name: "negative floor", mutate: func(c *Config) { c.DisplayFloor = -0.1 }, wantErr: true},
		{name: "no neighbours", mutate: func(c *Config) { c.MaxNeighbours = 0 }, wantErr: true},
		{name: "no edges", mutate: func(c *Config) { c.MaxEdges = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
