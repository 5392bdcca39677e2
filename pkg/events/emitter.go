// Package events publishes canonical object lifecycle events.
package events

import (
	"context"
	"strconv"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/matcher/pkg/context"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

// Publisher writes one keyed message.
type Publisher interface {
	Publish(ctx context.Context, key string, value any, headers map[string]string) error
}

// Emitter turns resolver decisions into events. It is a scrap processor observer: a
// failed emission is logged and never fails the scrap.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) Observe(ctx context.Context, scrap models.Scrap, decision models.Decision) {
	if _, err := e.Emit(ctx, scrap, decision); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"object_id": decision.ObjectID,
			"decision":  string(decision.Kind),
		}).Error("Failed to emit object event")
	}
}

// Emit publishes the event of one decision, keyed by object id so that the events of
// one object stay ordered. It returns nil without publishing for deferred decisions.
func (e *Emitter) Emit(ctx context.Context, scrap models.Scrap, decision models.Decision) (*ObjectEvent, error) {
	eventType, ok := EventTypeFor(decision.Kind)
	if !ok {
		return nil, nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Emit")
	defer span.End()

	event := &ObjectEvent{
		BaseEvent:  NewBaseEvent(eventType),
		ScrapID:    scrap.ID,
		PlatformID: scrap.PlatformID,
		ObjectID:   decision.ObjectID,
		ObjectType: decision.ObjectType.String(),
		LinkID:     decision.LinkID,
		ExternalID: decision.ExternalID,
		Losers:     decision.Losers,
		Exact:      decision.Exact,
		Score:      decision.Score,
		Confidence: decision.Confidence,
	}
	event.WorkerID = appctx.GetWorkerID(ctx)
	event.JobID = appctx.GetJobID(ctx)

	headers := map[string]string{
		"event_type":     string(eventType),
		"object_type":    event.ObjectType,
		"schema_version": SchemaVersion,
	}
	if err := e.publisher.Publish(ctx, strconv.FormatInt(decision.ObjectID, 10), event, headers); err != nil {
		tracing.RecordError(span, err)
		return event, err
	}
	return event, nil
}
