package catalog

import "context"

// Driver is the capability surface extraction and acquisition code needs
// from a rendering session. Selectors starting with "//" are XPath, anything
// else is a CSS query. Bounded waits are expressed through ctx deadlines so
// a fake driver can be substituted in tests.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	ScrollIntoView(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expr string) error
	OuterHTML(ctx context.Context, selector string) (string, error)
	AttributeValue(ctx context.Context, selector, attr string) (string, bool, error)
}

// Session is one isolated browser context bound to one download directory.
// Its lifetime is exactly one product's processing.
type Session interface {
	Driver() Driver
	DownloadDir() string
	Close()
}

// SessionFactory opens sessions scoped to a worker's exclusive download
// directory. Open failures carry ErrSessionInit.
type SessionFactory interface {
	Open(ctx context.Context, downloadDir string) (Session, error)
}

// Extractor reads specifications and the parts table from rendered product
// views. Failures degrade to missing data, never abort a product.
type Extractor interface {
	Specs(ctx context.Context, drv Driver, productID string) (Specs, error)
	BOM(ctx context.Context, drv Driver, productID string) ([]BomEntry, error)
}

// Acquirer downloads the manual, image, and CAD drawing for one product.
// Per-asset failures leave the corresponding AssetSet field empty.
type Acquirer interface {
	Acquire(ctx context.Context, drv Driver, productID string) AssetSet
}

// Persister merges, validates, and writes the final document.
type Persister interface {
	Finalize(ctx context.Context, detail ProductDetail) (PersistResult, error)
}
