// Package resolver decides the identity of scraped links against the canonical catalog.
package resolver

import (
	"context"
	"errors"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/matcher/pkg/comparator"
	appctx "github.com/Ramsey-B/matcher/pkg/context"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/store"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

type options struct {
	deferAmbiguous bool
}

type Option func(*options)

// WithDeferAmbiguous makes links matching several candidates come back as
// DecisionDeferred without touching the store.
func WithDeferAmbiguous() Option {
	return func(o *options) {
		o.deferAmbiguous = true
	}
}

type Resolver struct {
	store      *store.Store
	comparator comparator.Comparator
	config     Config
	logger     ectologger.Logger
}

func NewResolver(st *store.Store, cmp comparator.Comparator, config Config, logger ectologger.Logger) *Resolver {
	return &Resolver{
		store:      st,
		comparator: cmp,
		config:     config,
		logger:     logger,
	}
}

// Resolve attaches, merges or creates so that the link is owned by exactly one canonical
// object. Each attempt runs in one transaction bounded by the store timeout. A uniqueness
// conflict rolls the attempt back and retries; the retry takes the exact-match path
// against whichever writer won.
func (r *Resolver) Resolve(ctx context.Context, platformID int64, link models.RawLink, opts ...Option) (*models.Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.Resolve")
	defer span.End()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	log := r.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).WithFields(map[string]any{
		"external_id": link.ExternalID,
		"type":        link.Type.String(),
	})

	attrs := r.prepare(link.Type, link.Attributes.WithPlatform(platformID))

	for attempt := 0; ; attempt++ {
		decision, err := r.attempt(ctx, platformID, link, attrs, o)
		if err == nil {
			metrics.RecordDecision(link.Type.String(), string(decision.Kind))
			log.WithFields(map[string]any{
				"decision":  decision.Kind,
				"object_id": decision.ObjectID,
				"score":     decision.Score,
			}).Debug("Resolved link")
			return decision, nil
		}

		if !merrors.IsConflict(err) || attempt+1 >= r.config.MaxConflictRetries {
			tracing.RecordError(span, err)
			log.WithError(err).Error("Failed to resolve link")
			return nil, err
		}

		metrics.ResolverConflictsTotal.Inc()
		log.WithError(err).Warnf("Concurrent write on link, retrying (attempt %d)", attempt+1)
	}
}

// prepare stamps each attribute with its lookup value.
func (r *Resolver) prepare(objectType models.ObjectType, attrs models.AttributeSet) models.AttributeSet {
	for i := range attrs {
		attrs[i].Normalized = r.comparator.Normalize(objectType, attrs[i])
	}
	return attrs
}

func (r *Resolver) attempt(ctx context.Context, platformID int64, link models.RawLink, attrs models.AttributeSet, o options) (*models.Decision, error) {
	attemptCtx := ctx
	if r.config.StoreTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.config.StoreTimeout)
		defer cancel()
	}

	var decision *models.Decision
	err := r.store.Tx.WithinTx(attemptCtx, func(ctx context.Context) error {
		var err error
		decision, err = r.decide(ctx, platformID, link, attrs, o)
		return err
	})
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !merrors.IsStoreTimeout(err) {
		err = merrors.NewStoreTimeoutError("resolve", err)
	}
	if err != nil {
		return nil, err
	}
	return decision, nil
}

func (r *Resolver) decide(ctx context.Context, platformID int64, link models.RawLink, attrs models.AttributeSet, o options) (*models.Decision, error) {
	decision := &models.Decision{
		ObjectType: link.Type,
		PlatformID: platformID,
		ExternalID: link.ExternalID,
	}

	existing, err := r.store.Links.FindByKey(ctx, platformID, link.ExternalID)
	switch {
	case err == nil:
		decision.Kind = models.DecisionAttach
		decision.Exact = true
		decision.ObjectID = existing.ObjectID
		decision.LinkID = existing.ID
		decision.Score = 1
		decision.Confidence = 1
		objectType, err := r.refresh(ctx, existing, link, attrs)
		if err != nil {
			return nil, err
		}
		decision.ObjectType = objectType
		return decision, nil
	case !merrors.IsNotFound(err):
		return nil, err
	}

	scored, err := r.candidates(ctx, link.Type, attrs)
	if err != nil {
		return nil, err
	}
	decision.Candidates = scored

	threshold := r.config.ThresholdFor(link.Type)
	var matches []models.CandidateScore
	for _, c := range scored {
		if c.Score >= threshold {
			matches = append(matches, c)
		}
	}

	switch {
	case len(matches) == 0:
		decision.Kind = models.DecisionCreate
		obj, err := r.store.Objects.Create(ctx, link.Type)
		if err != nil {
			return nil, err
		}
		decision.ObjectID = obj.ID

	case len(matches) == 1:
		decision.Kind = models.DecisionAttach
		decision.ObjectID = matches[0].ObjectID
		decision.Score = matches[0].Score
		decision.Confidence = matches[0].Confidence

	case o.deferAmbiguous:
		decision.Kind = models.DecisionDeferred
		return decision, nil

	default:
		survivor := r.survivor(matches)
		if err := r.merge(ctx, link.Type, survivor.ObjectID, matches); err != nil {
			return nil, err
		}
		decision.Kind = models.DecisionMerge
		decision.ObjectID = survivor.ObjectID
		decision.Score = survivor.Score
		decision.Confidence = survivor.Confidence
		for _, m := range matches {
			if m.ObjectID != survivor.ObjectID {
				decision.Losers = append(decision.Losers, m.ObjectID)
			}
		}
	}

	created := &models.ObjectLink{
		ObjectID:   decision.ObjectID,
		PlatformID: platformID,
		ExternalID: link.ExternalID,
	}
	if err := r.store.Links.Create(ctx, created); err != nil {
		return nil, err
	}
	decision.LinkID = created.ID

	if _, err := r.store.Attributes.Append(ctx, decision.ObjectID, attrs); err != nil {
		return nil, err
	}
	if link.WorkMeta != nil {
		if err := r.store.Links.UpsertWorkMeta(ctx, created.ID, *link.WorkMeta); err != nil {
			return nil, err
		}
	}
	return decision, nil
}

// refresh is the exact-match path: new facts are appended and work meta is replaced.
// The object's type is kept even when the link now claims another one, and is returned.
func (r *Resolver) refresh(ctx context.Context, existing *models.ObjectLink, link models.RawLink, attrs models.AttributeSet) (models.ObjectType, error) {
	obj, err := r.store.Objects.Get(ctx, existing.ObjectID)
	if err != nil {
		return 0, err
	}
	if obj.Type != link.Type {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"object_id":   obj.ID,
			"object_type": obj.Type.String(),
			"link_type":   link.Type.String(),
			"external_id": link.ExternalID,
		}).Warn("Link type differs from its canonical object, keeping the object type")
		attrs = r.prepare(obj.Type, append(models.AttributeSet(nil), attrs...))
	}

	held, err := r.store.Attributes.List(ctx, obj.ID)
	if err != nil {
		return 0, err
	}
	if missing := held.Missing(attrs); len(missing) > 0 {
		if _, err := r.store.Attributes.Append(ctx, obj.ID, missing); err != nil {
			return 0, err
		}
	}
	if link.WorkMeta != nil {
		if err := r.store.Links.UpsertWorkMeta(ctx, existing.ID, *link.WorkMeta); err != nil {
			return 0, err
		}
	}
	return obj.Type, nil
}

// candidates scores every object sharing a blocking key with attrs. Candidates whose
// data cannot be compared are logged and left out.
func (r *Resolver) candidates(ctx context.Context, objectType models.ObjectType, attrs models.AttributeSet) ([]models.CandidateScore, error) {
	keys := r.comparator.Keys(objectType, attrs, comparator.KeyScopeIdentity)
	if len(keys) == 0 {
		return nil, nil
	}

	ids, err := r.store.Attributes.FindCandidates(ctx, objectType, keys, r.config.MaxCandidates)
	if err != nil {
		return nil, err
	}

	scored := make([]models.CandidateScore, 0, len(ids))
	for _, id := range ids {
		candidateAttrs, err := r.store.Attributes.List(ctx, id)
		if err != nil {
			return nil, err
		}

		result, err := r.comparator.Score(objectType, attrs, candidateAttrs)
		if err != nil {
			if !merrors.IsComparatorError(err) {
				return nil, err
			}
			metrics.ComparatorErrorsTotal.WithLabelValues(objectType.String()).Inc()
			r.logger.WithContext(ctx).WithError(err).WithField("candidate_id", id).Warn("Excluding candidate with malformed attributes")
			continue
		}

		scored = append(scored, models.CandidateScore{
			ObjectID:   id,
			Score:      result.Score,
			Confidence: result.Confidence,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ObjectID < scored[j].ObjectID
	})
	return scored, nil
}

func (r *Resolver) survivor(matches []models.CandidateScore) models.CandidateScore {
	best := matches[0]
	for _, m := range matches[1:] {
		switch r.config.Survivor {
		case SurvivorHighestScore:
			if m.Score > best.Score || (m.Score == best.Score && m.ObjectID < best.ObjectID) {
				best = m
			}
		default:
			if m.ObjectID < best.ObjectID {
				best = m
			}
		}
	}
	return best
}

// merge folds every match into survivorID. Rows are locked in ascending id order; an
// object deleted by a concurrent merge surfaces as a conflict so the caller retries
// against fresh candidates.
func (r *Resolver) merge(ctx context.Context, objectType models.ObjectType, survivorID int64, matches []models.CandidateScore) error {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.merge")
	defer span.End()

	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ObjectID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := r.store.Objects.Lock(ctx, ids)
	if err != nil {
		return err
	}
	if len(locked) != len(ids) {
		return merrors.NewConflictError("object", missingID(ids, locked), errors.New("merge candidate no longer exists"))
	}
	for _, obj := range locked {
		if obj.Type != objectType {
			return merrors.NewInvariantViolation("merge of object %d with type %s into a %s", obj.ID, obj.Type, objectType)
		}
	}

	log := r.logger.WithContext(ctx).WithField("survivor_id", survivorID)
	for _, loserID := range ids {
		if loserID == survivorID {
			continue
		}

		links, err := r.store.Links.Reassign(ctx, loserID, survivorID)
		if err != nil {
			return err
		}
		attrs, err := r.store.Attributes.Reassign(ctx, loserID, survivorID)
		if err != nil {
			return err
		}
		if err := r.store.Relations.Reassign(ctx, loserID, survivorID); err != nil {
			return err
		}

		remaining, err := r.store.Links.CountByObject(ctx, loserID)
		if err != nil {
			return err
		}
		if remaining != 0 {
			return merrors.NewInvariantViolation("merge of %d into %d would orphan %d links", loserID, survivorID, remaining)
		}

		if err := r.store.Objects.Delete(ctx, loserID); err != nil {
			return err
		}
		log.WithFields(map[string]any{
			"loser_id":   loserID,
			"links":      links,
			"attributes": attrs,
		}).Info("Merged canonical object")
	}
	return nil
}

func missingID(ids []int64, locked []models.CanonicalObject) int64 {
	present := make(map[int64]struct{}, len(locked))
	for _, obj := range locked {
		present[obj.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return id
		}
	}
	return 0
}
