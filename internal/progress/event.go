// Package progress defines the event structures emitted by the scrape
// workers and the hub that fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageProductStart Stage = "PRODUCT_START"
	StageProductDone  Stage = "PRODUCT_DONE"
	StageProductError Stage = "PRODUCT_ERROR"
	StageAssetDone    Stage = "ASSET_DONE"
)

// Event captures a single milestone of scraper progress.
type Event struct {
	// RunID identifies one invocation of the pipeline.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// ProductID scopes product and asset events.
	ProductID string
	// Asset names the artifact for ASSET_DONE events (manual, image, cad).
	Asset string
	// Missing counts empty fields reported for a completed product.
	Missing int
	// Dur captures execution latency for completed products and runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageProductStart, StageProductDone, StageProductError:
		if e.ProductID == "" {
			return errors.New("product stage requires product id")
		}
	case StageAssetDone:
		if e.ProductID == "" || e.Asset == "" {
			return errors.New("asset done requires product id and asset")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
