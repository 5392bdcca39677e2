package similarity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/matcher/pkg/models"
	mredis "github.com/Ramsey-B/matcher/pkg/redis"
)

// RedisStore keeps each subject's edges in a sorted set keyed similar:{id}, next to a
// similar:{id}:at marker holding the computation time. The marker distinguishes an empty
// list from a missing one.
type RedisStore struct {
	client *mredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis edge store. A zero ttl keeps entries forever.
func NewRedisStore(client *mredis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "similar:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(subjectID int64) string {
	return s.prefix + strconv.FormatInt(subjectID, 10)
}

func (s *RedisStore) markerKey(subjectID int64) string {
	return s.key(subjectID) + ":at"
}

func (s *RedisStore) Replace(ctx context.Context, subjectID int64, edges []models.SimilarityEdge) error {
	key, marker := s.key(subjectID), s.markerKey(subjectID)
	computedAt := time.Now().UTC()
	if len(edges) > 0 {
		computedAt = edges[0].ComputedAt.UTC()
	}

	members := make([]redis.Z, 0, len(edges))
	for _, e := range edges {
		members = append(members, redis.Z{Score: e.Score, Member: strconv.FormatInt(e.CandidateID, 10)})
	}

	_, err := s.client.Redis().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		pipe.Set(ctx, marker, computedAt.Format(time.RFC3339Nano), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store similarity edges of %d: %w", subjectID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, subjectID int64) ([]models.SimilarityEdge, bool, error) {
	rdb := s.client.Redis()

	at, err := rdb.Get(ctx, s.markerKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	computedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, false, fmt.Errorf("malformed similarity marker for %d: %w", subjectID, err)
	}

	members, err := rdb.ZRevRangeWithScores(ctx, s.key(subjectID), 0, -1).Result()
	if err != nil {
		return nil, false, err
	}

	edges := make([]models.SimilarityEdge, 0, len(members))
	for _, z := range members {
		member, _ := z.Member.(string)
		candidateID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("malformed similarity member %q for %d: %w", member, subjectID, err)
		}
		edges = append(edges, models.SimilarityEdge{
			SubjectID:   subjectID,
			CandidateID: candidateID,
			Score:       z.Score,
			ComputedAt:  computedAt,
		})
	}
	// Sorted sets break score ties by member bytes, not numerically.
	SortEdges(edges)
	return edges, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, subjectIDs ...int64) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(subjectIDs))
	for _, id := range subjectIDs {
		keys = append(keys, s.key(id), s.markerKey(id))
	}
	return s.client.Del(ctx, keys...)
}
