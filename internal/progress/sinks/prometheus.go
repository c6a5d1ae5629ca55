package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oemdata/catalog-scraper/internal/progress"
)

// PrometheusSink exports scraper progress metrics. It owns the collectors
// for products started/completed and per-kind asset counters.
type PrometheusSink struct {
	productsStarted   prometheus.Counter
	productsCompleted *prometheus.CounterVec
	productDuration   *prometheus.HistogramVec
	assetsAcquired    *prometheus.CounterVec
	missingFields     prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		productsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_products_started_total",
			Help: "Total products that entered the pipeline.",
		}),
		productsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_products_completed_total",
			Help: "Total products completed partitioned by result.",
		}, []string{"result"}),
		productDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_product_duration_seconds",
			Help:    "Wall time per processed product.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
		assetsAcquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_assets_acquired_total",
			Help: "Assets successfully acquired partitioned by kind.",
		}, []string{"kind"}),
		missingFields: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_missing_fields_total",
			Help: "Empty fields reported across persisted documents.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.productsStarted,
		s.productsCompleted,
		s.productDuration,
		s.assetsAcquired,
		s.missingFields,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageProductStart:
			s.productsStarted.Inc()
		case progress.StageProductDone:
			s.productsCompleted.WithLabelValues("ok").Inc()
			s.productDuration.WithLabelValues("ok").Observe(evt.Dur.Seconds())
			s.missingFields.Add(float64(evt.Missing))
		case progress.StageProductError:
			s.productsCompleted.WithLabelValues("error").Inc()
			s.productDuration.WithLabelValues("error").Observe(evt.Dur.Seconds())
		case progress.StageAssetDone:
			s.assetsAcquired.WithLabelValues(evt.Asset).Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
