// Package catalog defines the product records shared across the
// acquisition pipeline and the contracts between its stages.
package catalog

import "time"

// Specs holds the four headline ratings extracted for a product. Values are
// kept as the vendor presents them, minus unit suffixes.
type Specs struct {
	HP      string `json:"hp"`
	Voltage string `json:"voltage"`
	RPM     string `json:"rpm"`
	Frame   string `json:"frame"`
}

// ProductSummary is one normalized listing entry. It is immutable once
// produced by the lister and doubles as the orchestrator's work item.
type ProductSummary struct {
	ProductID   string  `json:"product_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Specs       Specs   `json:"specs"`
}

// BomEntry is a single parts-table row. Quantity is the integer part of the
// vendor's decimal quantity string.
type BomEntry struct {
	PartNumber  string `json:"part_number"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// AssetSet records where each downloaded artifact landed, relative to the
// output root. An empty field means the asset is unavailable, never that a
// path is dangling.
type AssetSet struct {
	Manual string `json:"manual"`
	CAD    string `json:"cad"`
	Image  string `json:"image"`
}

// ProductDetail is the final per-product record persisted as one JSON
// document per product id.
type ProductDetail struct {
	ProductSummary
	BOM    []BomEntry `json:"bom"`
	Assets AssetSet   `json:"assets"`
}

// PersistResult reports where a document was written and which fields were
// empty at write time. A non-empty Missing list is advisory, not an error.
type PersistResult struct {
	Path    string
	Missing []string
}

// ProductOutcome summarizes one product's trip through the pipeline.
type ProductOutcome struct {
	ProductID string
	Path      string
	Missing   []string
	Err       error
	Duration  time.Duration
}

// Failed reports whether the product produced no document at all.
func (o ProductOutcome) Failed() bool {
	return o.Err != nil
}
