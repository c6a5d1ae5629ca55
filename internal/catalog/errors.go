package catalog

import "errors"

// Failure taxonomy for the pipeline. Callers classify with errors.Is; the
// propagation rules are: ErrListing aborts the run, ErrSessionInit abandons
// one product, everything else degrades to absent data at its own boundary.
var (
	// ErrListing indicates the listing API returned a bad status or a body
	// without the expected structure.
	ErrListing = errors.New("listing unavailable")

	// ErrSessionInit indicates a browser session could not be opened.
	ErrSessionInit = errors.New("session init failed")

	// ErrExtractionTimeout indicates a DOM readiness condition never held
	// within its bounded wait.
	ErrExtractionTimeout = errors.New("extraction timed out")

	// ErrExtraction covers non-timeout extraction failures.
	ErrExtraction = errors.New("extraction failed")

	// ErrAssetUnavailable indicates a single asset could not be fetched.
	ErrAssetUnavailable = errors.New("asset unavailable")

	// ErrDownloadTimeout indicates the browser-triggered CAD download never
	// settled within the polling budget.
	ErrDownloadTimeout = errors.New("download timed out")
)
