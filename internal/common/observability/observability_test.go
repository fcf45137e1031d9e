package observability

import (
	"context"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finhub-workers/internal/common/logger"
)

func TestObservability_RecordsThroughRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	obs := New("finhub-test", reg, logger.NewTestLogger(t))
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordDispatch(ctx, "Supplier_Invoice", "success")
	obs.RecordJobProcessed(ctx, "submit-transaction", "completed")
	obs.RecordJobDuration(ctx, "submit-transaction", 120*time.Millisecond, "completed")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "transactions.dispatched_total")
	assert.Contains(t, names, "jobs.processed_total")
}

func TestObservability_TracerProducesSpans(t *testing.T) {
	obs := New("finhub-test", promclient.NewRegistry(), nil)
	defer obs.Shutdown()

	_, span := obs.Tracer().Start(context.Background(), "observability.test")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	obs := &Observability{logger: logger.NewNoOpLogger()}

	obs.RecordDispatch(context.Background(), "Ad_Hoc_Payment", "failure")
	obs.RecordJobProcessed(context.Background(), "x", "failed")
	assert.NotNil(t, obs.Tracer())
	obs.Shutdown()
}
