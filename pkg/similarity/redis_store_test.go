package similarity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/matcher/internal/testsupport"
	"github.com/Ramsey-B/matcher/pkg/models"
	mredis "github.com/Ramsey-B/matcher/pkg/redis"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	host, port := testsupport.StartRedis(t)
	client := mredis.NewClient(mredis.Config{Host: host, Port: port}, testsupport.Logger(t))
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "", time.Hour)
}

func TestRedisStore_ReplaceAndGet(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, found, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Replace(ctx, 1, []models.SimilarityEdge{
		{SubjectID: 1, CandidateID: 10, Score: 0.5, ComputedAt: at},
		{SubjectID: 1, CandidateID: 9, Score: 0.5, ComputedAt: at},
		{SubjectID: 1, CandidateID: 2, Score: 0.9, ComputedAt: at},
	}))

	edges, found, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, edges, 3)

	ids := []int64{edges[0].CandidateID, edges[1].CandidateID, edges[2].CandidateID}
	assert.Equal(t, []int64{2, 9, 10}, ids)
	assert.True(t, at.Equal(edges[0].ComputedAt))
	assert.Equal(t, int64(1), edges[2].SubjectID)

	require.NoError(t, store.Replace(ctx, 1, []models.SimilarityEdge{
		{SubjectID: 1, CandidateID: 3, Score: 0.4, ComputedAt: at},
	}))
	edges, _, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, int64(3), edges[0].CandidateID)
}

func TestRedisStore_EmptyListIsFound(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, 7, nil))
	edges, found, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, edges)
}

func TestRedisStore_Delete(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	for _, id := range []int64{1, 2} {
		require.NoError(t, store.Replace(ctx, id, []models.SimilarityEdge{
			{SubjectID: id, CandidateID: 100, Score: 0.8, ComputedAt: at},
		}))
	}
	require.NoError(t, store.Delete(ctx, 1, 2))
	require.NoError(t, store.Delete(ctx))

	for _, id := range []int64{1, 2} {
		_, found, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, found)
	}
}
