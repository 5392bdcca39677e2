// Package processor runs the resolution of whole scraps.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/matcher/pkg/context"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/resolver"
	"github.com/Ramsey-B/matcher/pkg/store"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

// LinkResolver decides the identity of one raw link.
type LinkResolver interface {
	Resolve(ctx context.Context, platformID int64, link models.RawLink, opts ...resolver.Option) (*models.Decision, error)
}

// Observer is notified of every decision of a scrap run. Implementations must return
// quickly and must not fail the run; slow work belongs on their own goroutines.
type Observer interface {
	Observe(ctx context.Context, scrap models.Scrap, decision models.Decision)
}

type Config struct {
	WorkerID string
	// ClaimTimeout is how long a processing claim is honoured before another worker may
	// take the scrap over.
	ClaimTimeout time.Duration
	// StoreTimeout bounds each bookkeeping store call made outside the resolver.
	StoreTimeout time.Duration
}

type Processor struct {
	store     *store.Store
	resolver  LinkResolver
	validate  *validator.Validate
	observers []Observer
	config    Config
	logger    ectologger.Logger
}

func NewProcessor(st *store.Store, res LinkResolver, config Config, logger ectologger.Logger, observers ...Observer) *Processor {
	if config.WorkerID == "" {
		config.WorkerID = uuid.NewString()
	}
	return &Processor{
		store:     st,
		resolver:  res,
		validate:  NewValidator(),
		observers: observers,
		config:    config,
		logger:    logger,
	}
}

// NewValidator returns a validator that understands raw links.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("object_type", func(fl validator.FieldLevel) bool {
		return models.ObjectType(fl.Field().Int()).Valid()
	})
	return v
}

// RunMatch processes the given scrap, or the most recently created one when scrapID is
// nil. A missing scrap is reported as a NotFoundError.
func (p *Processor) RunMatch(ctx context.Context, scrapID *int64) (*models.Scrap, *models.ProcessingResult, error) {
	var id int64
	if scrapID != nil {
		id = *scrapID
	} else {
		latest, err := p.store.Scraps.Latest(ctx)
		if err != nil {
			return nil, nil, err
		}
		id = latest.ID
	}

	result, err := p.Process(ctx, id)
	if err != nil {
		return nil, result, err
	}

	scrap, err := p.store.Scraps.Get(ctx, id)
	if err != nil {
		return nil, result, err
	}
	return scrap, result, nil
}

// Process claims a scrap and resolves its raw links in declared order. Links that match
// several objects are deferred to a second pass so that the first pass can contribute
// evidence. Relations between links are applied once every link is resolved. Any
// resolution failure stops the run and leaves the scrap FAILED with the failing link
// recorded; re-running is safe.
func (p *Processor) Process(ctx context.Context, scrapID int64) (*models.ProcessingResult, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Process")
	defer span.End()
	tracing.SetInt64(span, "scrap_id", scrapID)

	ctx = appctx.SetScrapID(ctx, scrapID)
	ctx = appctx.SetWorkerID(ctx, p.config.WorkerID)
	log := p.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx))

	scrap, err := p.store.Scraps.Claim(ctx, scrapID, p.config.WorkerID, p.config.ClaimTimeout)
	if err != nil {
		log.WithError(err).Warn("Failed to claim scrap")
		return nil, err
	}
	ctx = appctx.SetPlatformID(ctx, scrap.PlatformID)
	log.Info("Claimed scrap")

	run := &run{
		processor: p,
		scrap:     *scrap,
		started:   time.Now(),
		resolved:  map[string]bool{},
		log:       log,
	}
	result, err := run.execute(ctx)
	if err != nil {
		tracing.RecordError(span, err)
	}
	return result, err
}

type run struct {
	processor *Processor
	scrap     models.Scrap
	started   time.Time
	result    models.ProcessingResult
	resolved  map[string]bool
	log       ectologger.Logger
}

func (r *run) execute(ctx context.Context) (*models.ProcessingResult, error) {
	p := r.processor

	links, err := p.store.Scraps.ListRawLinks(ctx, r.scrap.ID)
	if err != nil {
		return r.fail(ctx, nil, err)
	}

	valid := make([]models.RawLink, 0, len(links))
	for _, link := range links {
		if err := p.validate.Struct(link); err != nil {
			r.result.Skipped++
			r.log.WithError(err).WithFields(map[string]any{
				"position":    link.Position,
				"external_id": link.ExternalID,
			}).Warn("Skipping invalid raw link")
			continue
		}
		valid = append(valid, link)
	}

	var deferred []models.RawLink
	passCtx := appctx.SetPass(ctx, 1)
	for _, link := range valid {
		decision, err := p.resolver.Resolve(passCtx, r.scrap.PlatformID, link, resolver.WithDeferAmbiguous())
		if err != nil {
			return r.fail(ctx, &link, err)
		}
		if decision.Kind == models.DecisionDeferred {
			deferred = append(deferred, link)
			continue
		}
		if err := r.record(passCtx, link, decision); err != nil {
			return r.fail(ctx, &link, err)
		}
	}

	passCtx = appctx.SetPass(ctx, 2)
	for _, link := range deferred {
		decision, err := p.resolver.Resolve(passCtx, r.scrap.PlatformID, link)
		if err != nil {
			return r.fail(ctx, &link, err)
		}
		if err := r.record(passCtx, link, decision); err != nil {
			return r.fail(ctx, &link, err)
		}
	}

	for _, link := range valid {
		if len(link.Relations) == 0 && link.Gender == nil {
			continue
		}
		if err := r.applyRelations(ctx, link); err != nil {
			return r.fail(ctx, &link, err)
		}
	}

	if err := r.finish(ctx, models.ScrapStatusDone); err != nil {
		return &r.result, err
	}
	r.log.WithFields(map[string]any{
		"created":  r.result.Created,
		"attached": r.result.Attached,
		"merged":   r.result.Merged,
		"skipped":  r.result.Skipped,
		"deferred": len(deferred),
	}).Info("Scrap processed")
	return &r.result, nil
}

func (r *run) record(ctx context.Context, link models.RawLink, decision *models.Decision) error {
	switch decision.Kind {
	case models.DecisionCreate:
		r.result.Created++
	case models.DecisionAttach:
		r.result.Attached++
	case models.DecisionMerge:
		r.result.Merged += len(decision.Losers)
	}
	r.resolved[link.ExternalID] = true

	err := r.withTimeout(ctx, func(ctx context.Context) error {
		return r.processor.store.Scraps.AttachLink(ctx, r.scrap.ID, decision.LinkID)
	})
	if err != nil {
		return err
	}

	for _, o := range r.processor.observers {
		o.Observe(ctx, r.scrap, *decision)
	}
	return nil
}

// fail records the failing link and moves the scrap to FAILED. The original error is
// returned; a failure to record it is only logged.
func (r *run) fail(ctx context.Context, link *models.RawLink, cause error) (*models.ProcessingResult, error) {
	failure := &models.ProcessingFailure{
		Kind:    merrors.Kind(cause),
		Message: cause.Error(),
	}
	if link != nil {
		failure.Position = link.Position
		failure.ExternalID = link.ExternalID
	}
	r.result.Failure = failure

	log := r.log.WithError(cause).WithFields(map[string]any{
		"kind":        failure.Kind,
		"position":    failure.Position,
		"external_id": failure.ExternalID,
	})
	if merrors.IsInvariantViolation(cause) {
		log.Error("Invariant violated while processing scrap")
	} else {
		log.Error("Scrap processing failed")
	}

	// The run context may be the one that timed out.
	if err := r.finish(context.WithoutCancel(ctx), models.ScrapStatusFailed); err != nil {
		r.log.WithError(err).Error("Failed to record scrap failure")
	}
	return &r.result, cause
}

func (r *run) finish(ctx context.Context, status models.ScrapStatus) error {
	err := r.withTimeout(ctx, func(ctx context.Context) error {
		return r.processor.store.Scraps.Finish(ctx, r.scrap.ID, r.processor.config.WorkerID, status, r.result)
	})
	if err != nil {
		return err
	}
	metrics.RecordScrap(string(status), time.Since(r.started))
	return nil
}

func (r *run) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.processor.config.StoreTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.processor.config.StoreTimeout)
	defer cancel()
	return fn(ctx)
}
