// Package persist merges, validates, and writes final product documents.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
)

// Persister writes one JSON document per product under the output root.
// Completeness is advisory: a document is written even when fields are
// missing, and re-running for the same product id overwrites the prior one.
type Persister struct {
	root   string
	logger *zap.Logger
}

// New returns a persister rooted at dir.
func New(root string, logger *zap.Logger) (*Persister, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{root: root, logger: logger}, nil
}

// Finalize writes the document and reports which fields were empty. A
// non-empty Missing list is a warning for the caller to log, never an error.
func (p *Persister) Finalize(ctx context.Context, detail catalog.ProductDetail) (catalog.PersistResult, error) {
	if err := ctx.Err(); err != nil {
		return catalog.PersistResult{}, fmt.Errorf("context canceled: %w", err)
	}

	missing := missingFields(detail)
	target := filepath.Join(p.root, detail.ProductID+".json")

	payload, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return catalog.PersistResult{}, fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return catalog.PersistResult{}, fmt.Errorf("write document %s: %w", target, err)
	}

	return catalog.PersistResult{Path: target, Missing: missing}, nil
}

// missingFields walks every top-level and nested field of the document and
// collects the names of the empty ones.
func missingFields(detail catalog.ProductDetail) []string {
	var missing []string
	add := func(name string, empty bool) {
		if empty {
			missing = append(missing, name)
		}
	}

	add("product_id", detail.ProductID == "")
	add("name", detail.Name == "")
	add("description", detail.Description == nil || *detail.Description == "")
	add("hp", detail.Specs.HP == "")
	add("voltage", detail.Specs.Voltage == "")
	add("rpm", detail.Specs.RPM == "")
	add("frame", detail.Specs.Frame == "")
	add("bom", len(detail.BOM) == 0)
	add("manual", detail.Assets.Manual == "")
	add("cad", detail.Assets.CAD == "")
	add("image", detail.Assets.Image == "")
	return missing
}
