package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oemdata/catalog-scraper/internal/progress"
)

func runBatch(runID uuid.UUID) []progress.Event {
	now := time.Now().UTC()
	return []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageProductStart, ProductID: "M1"},
		{RunID: runID, TS: now, Stage: progress.StageProductStart, ProductID: "M2"},
		{RunID: runID, TS: now, Stage: progress.StageAssetDone, ProductID: "M1", Asset: "manual"},
		{RunID: runID, TS: now, Stage: progress.StageAssetDone, ProductID: "M1", Asset: "cad"},
		{RunID: runID, TS: now, Stage: progress.StageProductDone, ProductID: "M1", Missing: 2, Dur: 3 * time.Second},
		{RunID: runID, TS: now, Stage: progress.StageProductError, ProductID: "M2", Note: "session init"},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: 5 * time.Second},
	}
}

func TestStoreSinkTotals(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink()
	require.NoError(t, sink.Consume(context.Background(), runBatch(uuid.New())))

	started, completed, failed, missing := sink.Totals()
	require.Equal(t, 2, started)
	require.Equal(t, 1, completed)
	require.Equal(t, 1, failed)
	require.Equal(t, 2, missing)
	require.Equal(t, 1, sink.AssetCount("manual"))
	require.Equal(t, 1, sink.AssetCount("cad"))
	require.Zero(t, sink.AssetCount("image"))
}

func TestPrometheusSinkCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), runBatch(uuid.New())))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.productsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.productsCompleted.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.productsCompleted.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.assetsAcquired.WithLabelValues("cad")))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.missingFields))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
