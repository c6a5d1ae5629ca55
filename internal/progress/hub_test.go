package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func testEvent(stage Stage) Event {
	return Event{
		RunID:     uuid.New(),
		TS:        time.Now().UTC(),
		Stage:     stage,
		ProductID: "M1001",
		Asset:     "manual",
	}
}

func TestHubDeliversEventsToSinks(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 5 * time.Millisecond}, sink)

	hub.Emit(testEvent(StageProductStart))
	hub.Emit(testEvent(StageProductDone))
	hub.Emit(testEvent(StageAssetDone))

	require.NoError(t, hub.Close(context.Background()))

	got := sink.snapshot()
	require.Len(t, got, 3)
	require.True(t, sink.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageProductStart}) // no run id
	hub.Emit(Event{RunID: uuid.New(), TS: time.Now(), Stage: "BOGUS"})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.snapshot())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(testEvent(StageProductStart))
	require.Empty(t, sink.snapshot())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	base := testEvent(StageProductDone)
	require.NoError(t, base.Validate())

	missingProduct := testEvent(StageProductError)
	missingProduct.ProductID = ""
	require.Error(t, missingProduct.Validate())

	assetWithoutKind := testEvent(StageAssetDone)
	assetWithoutKind.Asset = ""
	require.Error(t, assetWithoutKind.Validate())

	runLevel := Event{RunID: uuid.New(), TS: time.Now().UTC(), Stage: StageRunStart}
	require.NoError(t, runLevel.Validate())
}
