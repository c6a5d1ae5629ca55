package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
	"github.com/oemdata/catalog-scraper/internal/progress"
)

type nopDriver struct{}

func (nopDriver) Navigate(context.Context, string) error            { return nil }
func (nopDriver) WaitReady(context.Context, string) error           { return nil }
func (nopDriver) WaitVisible(context.Context, string) error         { return nil }
func (nopDriver) Click(context.Context, string) error               { return nil }
func (nopDriver) ScrollIntoView(context.Context, string) error      { return nil }
func (nopDriver) Evaluate(context.Context, string) error            { return nil }
func (nopDriver) OuterHTML(context.Context, string) (string, error) { return "", nil }
func (nopDriver) AttributeValue(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

type fakeSession struct {
	dir    string
	closed bool
}

func (s *fakeSession) Driver() catalog.Driver { return nopDriver{} }
func (s *fakeSession) DownloadDir() string    { return s.dir }
func (s *fakeSession) Close()                 { s.closed = true }

// fakeFactory records every download dir it was asked to bind and can fail
// for chosen product arenas.
type fakeFactory struct {
	mu       sync.Mutex
	dirs     []string
	sessions []*fakeSession
	failFor  string
}

func (f *fakeFactory) Open(_ context.Context, downloadDir string) (catalog.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && strings.Contains(downloadDir, f.failFor) {
		return nil, fmt.Errorf("%w: chrome did not start", catalog.ErrSessionInit)
	}
	s := &fakeSession{dir: downloadDir}
	f.dirs = append(f.dirs, downloadDir)
	f.sessions = append(f.sessions, s)
	return s, nil
}

type fakeExtractor struct {
	specs   catalog.Specs
	specErr error
	bom     []catalog.BomEntry
	bomErr  error
}

func (e *fakeExtractor) Specs(context.Context, catalog.Driver, string) (catalog.Specs, error) {
	return e.specs, e.specErr
}

func (e *fakeExtractor) BOM(context.Context, catalog.Driver, string) ([]catalog.BomEntry, error) {
	return e.bom, e.bomErr
}

type fakeAcquirer struct {
	assets catalog.AssetSet
}

func (a *fakeAcquirer) Acquire(context.Context, catalog.Driver, string) catalog.AssetSet {
	return a.assets
}

type fakePersister struct {
	mu      sync.Mutex
	written []catalog.ProductDetail
	err     error
}

func (p *fakePersister) Finalize(_ context.Context, detail catalog.ProductDetail) (catalog.PersistResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return catalog.PersistResult{}, p.err
	}
	p.written = append(p.written, detail)
	return catalog.PersistResult{Path: detail.ProductID + ".json"}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

func summaries(ids ...string) []catalog.ProductSummary {
	out := make([]catalog.ProductSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.ProductSummary{ProductID: id, Name: "AC Motor"})
	}
	return out
}

func TestRunProcessesEveryProduct(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	persister := &fakePersister{}
	emitter := &recordingEmitter{}
	o := New(
		factory,
		&fakeExtractor{bom: []catalog.BomEntry{{PartNumber: "PN-1", Quantity: 1}}},
		&fakeAcquirer{assets: catalog.AssetSet{Manual: "assets/x/manual.pdf"}},
		persister,
		emitter,
		Config{Workers: 2, OutputRoot: t.TempDir()},
		zap.NewNop(),
	)

	summary := o.Run(context.Background(), summaries("M1001", "M1002", "M1003"))

	require.Equal(t, 3, summary.Processed)
	require.Zero(t, summary.Failed)
	require.Len(t, summary.Outcomes, 3)
	require.Len(t, persister.written, 3)

	stages := emitter.stages()
	require.Equal(t, progress.StageRunStart, stages[0])
	require.Equal(t, progress.StageRunDone, stages[len(stages)-1])
}

func TestRunWorkersGetDisjointDownloadDirs(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	o := New(
		factory,
		&fakeExtractor{},
		&fakeAcquirer{},
		&fakePersister{},
		nil,
		Config{Workers: 3, OutputRoot: t.TempDir()},
		zap.NewNop(),
	)

	o.Run(context.Background(), summaries("M1", "M2", "M3", "M4", "M5"))

	seen := map[string]bool{}
	for _, dir := range factory.dirs {
		require.False(t, seen[dir], "dir %s bound twice", dir)
		seen[dir] = true
	}
	require.Len(t, seen, 5)
	for _, s := range factory.sessions {
		require.True(t, s.closed, "session for %s not closed", s.dir)
	}
}

func TestRunSessionInitFailureDoesNotKillPool(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{failFor: "M-BAD"}
	persister := &fakePersister{}
	o := New(
		factory,
		&fakeExtractor{},
		&fakeAcquirer{},
		persister,
		nil,
		Config{Workers: 2, OutputRoot: t.TempDir()},
		zap.NewNop(),
	)

	summary := o.Run(context.Background(), summaries("M1", "M-BAD", "M2"))

	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, persister.written, 2)

	var failed *catalog.ProductOutcome
	for i := range summary.Outcomes {
		if summary.Outcomes[i].Failed() {
			failed = &summary.Outcomes[i]
		}
	}
	require.NotNil(t, failed)
	require.Equal(t, "M-BAD", failed.ProductID)
	require.ErrorIs(t, failed.Err, catalog.ErrSessionInit)
}

func TestRunExtractionFailureDegradesToMissingData(t *testing.T) {
	t.Parallel()

	persister := &fakePersister{}
	o := New(
		&fakeFactory{},
		&fakeExtractor{specErr: catalog.ErrExtractionTimeout, bomErr: catalog.ErrExtraction},
		&fakeAcquirer{},
		persister,
		nil,
		Config{Workers: 1, OutputRoot: t.TempDir()},
		zap.NewNop(),
	)

	summary := o.Run(context.Background(), summaries("M1001"))

	require.Equal(t, 1, summary.Processed)
	require.Zero(t, summary.Failed)
	require.Len(t, persister.written, 1)
	require.Empty(t, persister.written[0].BOM)
}

func TestRunSpecsMergeFillsOnlyEmptyFields(t *testing.T) {
	t.Parallel()

	persister := &fakePersister{}
	o := New(
		&fakeFactory{},
		&fakeExtractor{specs: catalog.Specs{HP: "99", Frame: "215T"}},
		&fakeAcquirer{},
		persister,
		nil,
		Config{Workers: 1, OutputRoot: t.TempDir()},
		zap.NewNop(),
	)

	product := catalog.ProductSummary{
		ProductID: "M1001",
		Specs:     catalog.Specs{HP: "10", Voltage: "230"},
	}
	o.Run(context.Background(), []catalog.ProductSummary{product})

	require.Len(t, persister.written, 1)
	require.Equal(t, catalog.Specs{HP: "10", Voltage: "230", Frame: "215T"}, persister.written[0].Specs)
}

func TestRunPersistFailureAbandonsProduct(t *testing.T) {
	t.Parallel()

	o := New(
		&fakeFactory{},
		&fakeExtractor{},
		&fakeAcquirer{},
		&fakePersister{err: fmt.Errorf("disk full")},
		nil,
		Config{Workers: 1, OutputRoot: t.TempDir()},
		zap.NewNop(),
	)

	summary := o.Run(context.Background(), summaries("M1001"))
	require.Equal(t, 1, summary.Failed)
	require.Zero(t, summary.Processed)
}

func TestMergeSpecs(t *testing.T) {
	t.Parallel()

	listing := catalog.Specs{HP: "10", Voltage: " "}
	extracted := catalog.Specs{HP: "20", Voltage: "460", RPM: "1800"}
	got := mergeSpecs(listing, extracted)
	require.Equal(t, "10", got.HP)
	require.Equal(t, "460", got.Voltage)
	require.Equal(t, "1800", got.RPM)
	require.Empty(t, got.Frame)
}
