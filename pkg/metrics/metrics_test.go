package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(ResolverDecisionsTotal.WithLabelValues("movie", "create"))
	RecordDecision("movie", "create")
	assert.Equal(t, before+1, testutil.ToFloat64(ResolverDecisionsTotal.WithLabelValues("movie", "create")))
}

func TestRecordScrap(t *testing.T) {
	before := testutil.ToFloat64(ScrapProcessedTotal.WithLabelValues("done"))
	RecordScrap("done", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(ScrapProcessedTotal.WithLabelValues("done")))
}
