package sinks

import (
	"context"
	"sync"

	"github.com/oemdata/catalog-scraper/internal/progress"
)

// StoreSink accumulates events in memory so the CLI can report a run
// summary after the pipeline drains.
type StoreSink struct {
	mu        sync.Mutex
	started   int
	completed int
	failed    int
	missing   int
	assets    map[string]int
}

// NewStoreSink constructs an empty StoreSink.
func NewStoreSink() *StoreSink {
	return &StoreSink{assets: make(map[string]int)}
}

// Consume folds the batch into the running counters.
func (s *StoreSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageProductStart:
			s.started++
		case progress.StageProductDone:
			s.completed++
			s.missing += evt.Missing
		case progress.StageProductError:
			s.failed++
		case progress.StageAssetDone:
			s.assets[evt.Asset]++
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

// Totals reports accumulated counts: products started, completed, failed,
// and empty fields across all persisted documents.
func (s *StoreSink) Totals() (started, completed, failed, missing int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.completed, s.failed, s.missing
}

// AssetCount reports how many assets of the given kind were acquired.
func (s *StoreSink) AssetCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets[kind]
}
