package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listingBody = `{
  "results": {
    "matches": [
      {
        "code": "M1001",
        "description": "General purpose motor",
        "categories": [{"text": "AC Motors"}],
        "attributes": [
          {"name": "output_at_frequency", "values": [{"value": "10hp"}]},
          {"name": "voltage_at_frequency", "values": [{"value": "230V"}, {"value": "460V"}]},
          {"name": "synchronous_speed_at_freq", "values": [{"value": "1800rpm"}]},
          {"name": "frame", "values": [{"value": "215T"}]}
        ]
      },
      {
        "code": "G2002",
        "description": null,
        "categories": [{"text": "Generators"}],
        "attributes": [
          {"name": "output_at_frequency", "values": [{"value": "5hp"}]}
        ]
      },
      {
        "code": "M1001",
        "categories": [{"text": "AC Motors"}],
        "attributes": []
      },
      {
        "code": "",
        "categories": [],
        "attributes": []
      }
    ]
  }
}`

func newTestLister(t *testing.T) *Lister {
	t.Helper()
	return NewLister(ListerConfig{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
	}, nil, zap.NewNop())
}

func TestListerNormalizesEntries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "10", r.URL.Query().Get("pageSize"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingBody))
	}))
	defer srv.Close()

	lister := newTestLister(t)
	summaries, err := lister.List(context.Background(), srv.URL+"/api/products?pageSize=10")
	require.NoError(t, err)

	// The duplicate and the entry without a code are skipped.
	require.Len(t, summaries, 2)

	first := summaries[0]
	require.Equal(t, "M1001", first.ProductID)
	require.Equal(t, "AC Motor", first.Name)
	require.NotNil(t, first.Description)
	require.Equal(t, "General purpose motor", *first.Description)
	require.Equal(t, Specs{HP: "10", Voltage: "230/460", RPM: "1800", Frame: "215T"}, first.Specs)

	second := summaries[1]
	require.Equal(t, "G2002", second.ProductID)
	require.Equal(t, "Generators Motor", second.Name)
	require.Nil(t, second.Description)
	require.Equal(t, "5", second.Specs.HP)
	require.Empty(t, second.Specs.Voltage)
}

func TestListerUniqueNonEmptyIDs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingBody))
	}))
	defer srv.Close()

	lister := newTestLister(t)
	summaries, err := lister.List(context.Background(), srv.URL)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range summaries {
		require.NotEmpty(t, s.ProductID)
		require.False(t, seen[s.ProductID], "duplicate id %s", s.ProductID)
		seen[s.ProductID] = true
	}
}

func TestListerBadStatusIsListingError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	lister := newTestLister(t)
	_, err := lister.List(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrListing)
}

func TestListerMalformedBodyIsListingError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	lister := newTestLister(t)
	_, err := lister.List(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrListing)
}

func TestDeriveName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		category string
		want     string
	}{
		{"AC Motors", "AC Motor"},
		{"Generators", "Generators Motor"},
		{"Three Phase Motors", "Three Phase Motor"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, deriveName(tc.category), "category %q", tc.category)
	}
}
