package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

// Writer runs statements in one write transaction.
type Writer interface {
	Write(ctx context.Context, statements []Statement) error
}

// DefaultWriteTimeout bounds one observed write when no timeout is configured.
const DefaultWriteTimeout = 5 * time.Second

// Projector mirrors resolver decisions and typed edges into the graph. The graph is a
// read model: projection failures are logged and never fail a scrap.
type Projector struct {
	writer  Writer
	timeout time.Duration
	logger  ectologger.Logger
	now     func() time.Time
}

func NewProjector(writer Writer, timeout time.Duration, logger ectologger.Logger) *Projector {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Projector{writer: writer, timeout: timeout, logger: logger, now: time.Now}
}

// bounded caps one observation at the write timeout. A slow graph costs a scrap at
// most one timeout per observation.
func (p *Projector) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Projector) Observe(ctx context.Context, _ models.Scrap, decision models.Decision) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.ProjectDecision(ctx, decision); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"object_id": decision.ObjectID,
			"decision":  string(decision.Kind),
		}).Warn("Failed to project decision into graph")
	}
}

func (p *Projector) ObserveEdge(ctx context.Context, _ models.Scrap, edge models.Edge) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.ProjectEdge(ctx, edge); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"from_id":  edge.FromID,
			"to_id":    edge.ToID,
			"relation": string(edge.Kind),
		}).Warn("Failed to project edge into graph")
	}
}

// ProjectDecision upserts the surviving node and its link. For a merge, the relationships
// of each loser are moved onto the survivor before the loser node is deleted.
func (p *Projector) ProjectDecision(ctx context.Context, decision models.Decision) error {
	if decision.Kind == models.DecisionDeferred {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectDecision")
	defer span.End()

	label, err := Label(decision.ObjectType)
	if err != nil {
		return err
	}

	statements := []Statement{upsertObject(label, decision.ObjectID, p.now())}
	if decision.ExternalID != "" {
		statements = append(statements, upsertLink(label, decision.ObjectID, decision.PlatformID, decision.ExternalID))
	}
	for _, loser := range decision.Losers {
		statements = append(statements, moveRelations(label, decision.ObjectID, loser)...)
		statements = append(statements, deleteObject(label, loser))
	}

	return p.write(ctx, span, statements)
}

func (p *Projector) ProjectEdge(ctx context.Context, edge models.Edge) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectEdge")
	defer span.End()

	statements, err := edgeStatements(edge)
	if err != nil {
		return err
	}
	return p.write(ctx, span, statements)
}

func (p *Projector) write(ctx context.Context, span trace.Span, statements []Statement) error {
	if err := p.writer.Write(ctx, statements); err != nil {
		metrics.GraphProjectionsTotal.WithLabelValues("error").Inc()
		tracing.RecordError(span, err)
		return err
	}
	metrics.GraphProjectionsTotal.WithLabelValues("ok").Inc()
	return nil
}
