package wind

import (
	"context"
	"errors"
)

var (
	// ErrNotAvailable is returned when no dataset is cached for the
	// resolved cycle. It maps to a not-found response at the API layer.
	ErrNotAvailable = errors.New("no dataset available for cycle")

	// ErrNotPublished is the fetch collaborator's signal that the upstream
	// has not published the requested cycle yet. The cycle stays absent
	// and is naturally retried on a later refresh.
	ErrNotPublished = errors.New("cycle not yet published upstream")
)

// GribSource abstracts the upstream raw-data download (e.g. the NOMADS
// GRIB filter). Fetch returns the raw bytes of one cycle's data, or
// ErrNotPublished while the cycle does not exist upstream.
type GribSource interface {
	Name() string
	Fetch(ctx context.Context, c Cycle) ([]byte, error)
}

// Converter turns a raw upstream file into the queryable artifact. It is a
// black box around an external tool: given the raw input path it must
// produce the artifact at outPath or fail.
type Converter interface {
	Convert(ctx context.Context, gribPath, outPath string) error
}

// Store is the contract the on-disk dataset cache must satisfy. Write must
// publish atomically: a reader may never observe a partially written
// artifact. EvictExcept deletes every persisted record whose cycle is not
// in keep and reports how many it removed.
type Store interface {
	Exists(c Cycle) bool
	Read(c Cycle) ([]byte, error)
	Write(c Cycle, artifact []byte) error
	ListCycles() ([]Cycle, error)
	EvictExcept(keep []Cycle) (int, error)
}
