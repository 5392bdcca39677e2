// Package similarity maintains the ranked "similar to" lists of canonical objects.
package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/matcher/pkg/comparator"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/store"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

const (
	DefaultDisplayFloor  = 0.3
	DefaultMaxNeighbours = 200
	DefaultMaxEdges      = 50
)

type Config struct {
	// DisplayFloor is a strict lower bound: an edge is kept only when its score is above it.
	DisplayFloor float64
	// MaxNeighbours bounds the candidate search of one recompute.
	MaxNeighbours int
	// MaxEdges bounds how many edges are kept per subject.
	MaxEdges int
}

func DefaultConfig() Config {
	return Config{
		DisplayFloor:  DefaultDisplayFloor,
		MaxNeighbours: DefaultMaxNeighbours,
		MaxEdges:      DefaultMaxEdges,
	}
}

func (c Config) Validate() error {
	if c.DisplayFloor < 0 || c.DisplayFloor >= 1 {
		return fmt.Errorf("display floor must be in [0,1), got %v", c.DisplayFloor)
	}
	if c.MaxNeighbours < 1 {
		return fmt.Errorf("max neighbours must be positive, got %d", c.MaxNeighbours)
	}
	if c.MaxEdges < 1 {
		return fmt.Errorf("max edges must be positive, got %d", c.MaxEdges)
	}
	return nil
}

// Index computes similarity edges with the resolver's comparator, restricted to objects of
// the same type, and serves them ranked. Edges are a cache: losing them only costs a
// recompute.
type Index struct {
	store      *store.Store
	comparator comparator.Comparator
	edges      EdgeStore
	config     Config
	logger     ectologger.Logger
	now        func() time.Time
}

func NewIndex(st *store.Store, cmp comparator.Comparator, edges EdgeStore, config Config, logger ectologger.Logger) *Index {
	return &Index{
		store:      st,
		comparator: cmp,
		edges:      edges,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Recompute rebuilds the edges of one subject. A subject that no longer exists, such as
// the loser of a merge, has its edges dropped and yields a NotFoundError.
func (i *Index) Recompute(ctx context.Context, subjectID int64) ([]models.SimilarityEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Index.Recompute")
	defer span.End()
	tracing.SetInt64(span, "subject_id", subjectID)

	edges, err := i.recompute(ctx, subjectID)
	switch {
	case err == nil:
		metrics.RecordRecompute("ok")
	case merrors.IsNotFound(err):
		metrics.RecordRecompute("gone")
	default:
		metrics.RecordRecompute("error")
		tracing.RecordError(span, err)
	}
	return edges, err
}

func (i *Index) recompute(ctx context.Context, subjectID int64) ([]models.SimilarityEdge, error) {
	log := i.logger.WithContext(ctx).WithField("subject_id", subjectID)

	subject, err := i.store.Objects.Get(ctx, subjectID)
	if err != nil {
		if merrors.IsNotFound(err) {
			if delErr := i.edges.Delete(ctx, subjectID); delErr != nil {
				log.WithError(delErr).Warn("Failed to drop edges of a missing object")
			}
		}
		return nil, err
	}

	attrs, err := i.store.Attributes.List(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	var edges []models.SimilarityEdge
	keys := i.comparator.Keys(subject.Type, attrs, comparator.KeyScopeNeighbours)
	if len(keys) > 0 {
		ids, err := i.store.Attributes.FindCandidates(ctx, subject.Type, keys, i.config.MaxNeighbours)
		if err != nil {
			return nil, err
		}

		computedAt := i.now().UTC()
		for _, id := range ids {
			if id == subjectID {
				continue
			}
			candidateAttrs, err := i.store.Attributes.List(ctx, id)
			if err != nil {
				if merrors.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			result, err := i.comparator.Score(subject.Type, attrs, candidateAttrs)
			if err != nil {
				if !merrors.IsComparatorError(err) {
					return nil, err
				}
				metrics.ComparatorErrorsTotal.WithLabelValues(subject.Type.String()).Inc()
				log.WithError(err).WithField("candidate_id", id).Debug("Skipping neighbour with malformed attributes")
				continue
			}
			if result.Score <= i.config.DisplayFloor {
				continue
			}
			edges = append(edges, models.SimilarityEdge{
				SubjectID:   subjectID,
				CandidateID: id,
				Score:       result.Score,
				ComputedAt:  computedAt,
			})
		}
	}

	SortEdges(edges)
	if len(edges) > i.config.MaxEdges {
		edges = edges[:i.config.MaxEdges]
	}
	if err := i.edges.Replace(ctx, subjectID, edges); err != nil {
		return nil, err
	}
	log.WithField("edges", len(edges)).Debug("Recomputed similarity edges")
	return edges, nil
}

// Rank returns at most limit edges of a subject, best first, ties by ascending candidate
// id. A subject with no cached entry is computed on demand. Edges pointing at objects that
// have since been merged away are filtered out.
func (i *Index) Rank(ctx context.Context, subjectID int64, limit int) ([]models.SimilarityEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Index.Rank")
	defer span.End()
	tracing.SetInt64(span, "subject_id", subjectID)

	if limit <= 0 {
		return nil, nil
	}

	edges, found, err := i.edges.Get(ctx, subjectID)
	if err != nil {
		// A broken cache degrades to an on-demand computation.
		i.logger.WithContext(ctx).WithError(err).Warn("Failed to read similarity edges")
		found = false
	}
	if !found {
		edges, err = i.recompute(ctx, subjectID)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
	}

	ids := make([]int64, 0, len(edges)+1)
	ids = append(ids, subjectID)
	for _, e := range edges {
		ids = append(ids, e.CandidateID)
	}
	existing, err := i.store.Objects.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	alive := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		alive[id] = struct{}{}
	}
	if _, ok := alive[subjectID]; !ok {
		_ = i.edges.Delete(ctx, subjectID)
		return nil, merrors.NewNotFoundError("object", subjectID)
	}

	ranked := make([]models.SimilarityEdge, 0, len(edges))
	for _, e := range edges {
		if _, ok := alive[e.CandidateID]; !ok || e.Score <= i.config.DisplayFloor {
			continue
		}
		ranked = append(ranked, e)
	}
	SortEdges(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Similar is Rank shaped for callers that join the result against objects by id.
func (i *Index) Similar(ctx context.Context, objectID int64, limit int) ([]models.Similar, error) {
	edges, err := i.Rank(ctx, objectID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Similar, len(edges))
	for n, e := range edges {
		out[n] = models.Similar{TargetID: e.CandidateID, Score: e.Score}
	}
	return out, nil
}

// Invalidate drops the cached edges of the given subjects.
func (i *Index) Invalidate(ctx context.Context, subjectIDs ...int64) error {
	return i.edges.Delete(ctx, subjectIDs...)
}

// Rebuild recomputes every object of one type, paging by id. It returns how many subjects
// were recomputed.
func (i *Index) Rebuild(ctx context.Context, objectType models.ObjectType, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var afterID int64
	count := 0
	for {
		ids, err := i.store.Objects.ListIDsByType(ctx, objectType, afterID, pageSize)
		if err != nil {
			return count, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			if _, err := i.Recompute(ctx, id); err != nil && !merrors.IsNotFound(err) {
				return count, err
			}
			count++
		}
		if len(ids) < pageSize {
			return count, nil
		}
		afterID = ids[len(ids)-1]
	}
}
