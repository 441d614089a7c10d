package wind

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/4000degrees/airmq-wind-server/internal/metrics"
)

// Service runs the fetch-convert pipeline and answers queries from the
// cached JSON artifacts.
type Service struct {
	store        Store
	source       GribSource
	converter    Converter
	workDir      string
	publishDelay time.Duration
	metrics      *metrics.Collector

	flight singleflight.Group
}

// NewService creates a new Service. workDir holds transient files while a
// cycle moves through the pipeline; it is separate from the store's own
// directory so eviction never touches half-built artifacts.
func NewService(store Store, source GribSource, converter Converter, workDir string, publishDelay time.Duration, m *metrics.Collector) *Service {
	return &Service{
		store:        store,
		source:       source,
		converter:    converter,
		workDir:      workDir,
		publishDelay: publishDelay,
		metrics:      m,
	}
}

// EnsureCycle makes the artifact for c available in the store, fetching and
// converting it if needed. Calling it for a cached cycle returns immediately.
// Concurrent calls for the same cycle share a single pipeline run and all
// receive its outcome.
func (s *Service) EnsureCycle(ctx context.Context, c Cycle) error {
	if s.store.Exists(c) {
		return nil
	}

	_, err, _ := s.flight.Do(c.Stamp(), func() (interface{}, error) {
		return nil, s.runPipeline(ctx, c)
	})
	return err
}

func (s *Service) runPipeline(ctx context.Context, c Cycle) error {
	// A caller may have joined after an earlier run already published.
	if s.store.Exists(c) {
		return nil
	}

	attempt := uuid.NewString()
	start := time.Now()
	log.Printf("pipeline %s: cycle %s: fetching from %s", attempt, c.Stamp(), s.source.Name())

	raw, err := s.source.Fetch(ctx, c)
	if err != nil {
		if errors.Is(err, ErrNotPublished) {
			log.Printf("INFO: pipeline %s: cycle %s not published upstream yet", attempt, c.Stamp())
			return err
		}
		s.metrics.RecordFetchFailure()
		log.Printf("ERROR: pipeline %s: cycle %s fetch failed: %v", attempt, c.Stamp(), err)
		return fmt.Errorf("fetch cycle %s: %w", c.Stamp(), err)
	}

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	rawPath := filepath.Join(s.workDir, c.Stamp()+".grib2")
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		return fmt.Errorf("write raw cycle %s: %w", c.Stamp(), err)
	}
	// Raw GRIB data never outlives the attempt, converted or not.
	defer os.Remove(rawPath)

	outPath := filepath.Join(s.workDir, c.Stamp()+".json")
	defer os.Remove(outPath)

	if err := s.converter.Convert(ctx, rawPath, outPath); err != nil {
		s.metrics.RecordConvertFailure()
		log.Printf("ERROR: pipeline %s: cycle %s conversion failed: %v", attempt, c.Stamp(), err)
		return fmt.Errorf("convert cycle %s: %w", c.Stamp(), err)
	}

	artifact, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("read converted cycle %s: %w", c.Stamp(), err)
	}

	if err := s.store.Write(c, artifact); err != nil {
		return fmt.Errorf("store cycle %s: %w", c.Stamp(), err)
	}

	elapsed := time.Since(start)
	s.metrics.RecordPublish(elapsed.Seconds())
	log.Printf("pipeline %s: cycle %s published (%d bytes in %s)", attempt, c.Stamp(), len(artifact), elapsed.Round(time.Millisecond))
	return nil
}

// QueryNearest returns the artifact for the cycle that serves the given
// instant. It never triggers a fetch; a cycle missing from the store is
// reported via ErrNotAvailable.
func (s *Service) QueryNearest(at time.Time) (ResolvedCycle, []byte, error) {
	rc := Resolve(at, s.publishDelay)
	artifact, err := s.store.Read(rc.Cycle)
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			s.metrics.RecordQuery(false)
		}
		return rc, nil, err
	}
	s.metrics.RecordQuery(true)
	return rc, artifact, nil
}

// QueryTimestamp reports which cycle would serve the given instant without
// reading the artifact body.
func (s *Service) QueryTimestamp(at time.Time) (ResolvedCycle, error) {
	rc := Resolve(at, s.publishDelay)
	if !s.store.Exists(rc.Cycle) {
		s.metrics.RecordQuery(false)
		return rc, fmt.Errorf("cycle %s: %w", rc.Cycle.Stamp(), ErrNotAvailable)
	}
	s.metrics.RecordQuery(true)
	return rc, nil
}

// Latest returns the newest cached cycle and its artifact.
func (s *Service) Latest() (Cycle, []byte, error) {
	cycles, err := s.store.ListCycles()
	if err != nil {
		return Cycle{}, nil, fmt.Errorf("list cycles: %w", err)
	}
	if len(cycles) == 0 {
		return Cycle{}, nil, ErrNotAvailable
	}

	newest := cycles[0]
	for _, c := range cycles[1:] {
		if newest.Before(c) {
			newest = c
		}
	}

	artifact, err := s.store.Read(newest)
	if err != nil {
		return Cycle{}, nil, err
	}
	return newest, artifact, nil
}
