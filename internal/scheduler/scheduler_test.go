package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4000degrees/airmq-wind-server/internal/metrics"
	"github.com/4000degrees/airmq-wind-server/internal/wind"
)

const testPublishDelay = 3*time.Hour + 40*time.Minute

type fakeStore struct {
	mu       sync.Mutex
	cycles   map[string]wind.Cycle
	lastKeep []string
}

func newFakeStore(stamps ...string) *fakeStore {
	f := &fakeStore{cycles: make(map[string]wind.Cycle)}
	for _, s := range stamps {
		c, err := wind.ParseStamp(s)
		if err != nil {
			panic(err)
		}
		f.cycles[s] = c
	}
	return f
}

func (f *fakeStore) put(c wind.Cycle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles[c.Stamp()] = c
}

func (f *fakeStore) Exists(c wind.Cycle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cycles[c.Stamp()]
	return ok
}

func (f *fakeStore) Read(c wind.Cycle) ([]byte, error) {
	if !f.Exists(c) {
		return nil, wind.ErrNotAvailable
	}
	return []byte("{}"), nil
}

func (f *fakeStore) Write(c wind.Cycle, artifact []byte) error {
	f.put(c)
	return nil
}

func (f *fakeStore) ListCycles() ([]wind.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wind.Cycle, 0, len(f.cycles))
	for _, c := range f.cycles {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) EvictExcept(keep []wind.Cycle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keepSet := make(map[string]bool, len(keep))
	f.lastKeep = f.lastKeep[:0]
	for _, c := range keep {
		keepSet[c.Stamp()] = true
		f.lastKeep = append(f.lastKeep, c.Stamp())
	}

	removed := 0
	for stamp := range f.cycles {
		if !keepSet[stamp] {
			delete(f.cycles, stamp)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) stamps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.cycles))
	for s := range f.cycles {
		out = append(out, s)
	}
	return out
}

type fakeEnsurer struct {
	mu      sync.Mutex
	ensured []string
	err     error
	store   *fakeStore
}

func (f *fakeEnsurer) EnsureCycle(ctx context.Context, c wind.Cycle) error {
	f.mu.Lock()
	f.ensured = append(f.ensured, c.Stamp())
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if f.store != nil {
		f.store.put(c)
	}
	return nil
}

func (f *fakeEnsurer) stamps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}

func newTestScheduler(ens Ensurer, st wind.Store, retention int) *Scheduler {
	return New(ens, st, metrics.NewCollector(), Config{
		Interval:     10 * time.Minute,
		Retention:    retention,
		PublishDelay: testPublishDelay,
	})
}

func TestRefreshEnsuresMissingCycles(t *testing.T) {
	st := newFakeStore()
	ens := &fakeEnsurer{store: st}
	s := newTestScheduler(ens, st, 5)

	before := wind.RecentCycles(time.Now().UTC(), 5, testPublishDelay)
	s.refresh()
	after := wind.RecentCycles(time.Now().UTC(), 5, testPublishDelay)

	ensured := ens.stamps()
	require.Len(t, ensured, 5)

	// The window can shift by one slot while the test runs, so accept
	// members of either reading.
	valid := make(map[string]bool)
	for _, c := range append(before, after...) {
		valid[c.Stamp()] = true
	}
	for _, stamp := range ensured {
		assert.True(t, valid[stamp], "unexpected cycle %s", stamp)
	}

	assert.ElementsMatch(t, ensured, st.stamps())
}

func TestRefreshSkipsCachedCycles(t *testing.T) {
	window := wind.RecentCycles(time.Now().UTC(), 5, testPublishDelay)
	st := newFakeStore(window[0].Stamp(), window[1].Stamp())
	ens := &fakeEnsurer{store: st}
	s := newTestScheduler(ens, st, 5)

	s.refresh()

	ensured := ens.stamps()
	assert.Len(t, ensured, 3)
	assert.NotContains(t, ensured, window[0].Stamp())
	assert.NotContains(t, ensured, window[1].Stamp())
}

func TestRefreshContinuesPastFailures(t *testing.T) {
	st := newFakeStore()
	ens := &fakeEnsurer{err: errors.New("upstream down")}
	s := newTestScheduler(ens, st, 5)

	s.refresh()

	assert.Len(t, ens.stamps(), 5, "every missing cycle gets an attempt")
	assert.Empty(t, st.stamps())
}

func TestRefreshEvictsOutsideWindow(t *testing.T) {
	st := newFakeStore("2020010100", "2020010106")
	ens := &fakeEnsurer{store: st}
	s := newTestScheduler(ens, st, 5)

	s.refresh()

	left := st.stamps()
	assert.Len(t, left, 5)
	assert.NotContains(t, left, "2020010100")
	assert.NotContains(t, left, "2020010106")
	assert.Len(t, st.lastKeep, 5)
}

func TestStartRunsImmediately(t *testing.T) {
	st := newFakeStore()
	ens := &fakeEnsurer{store: st}
	s := newTestScheduler(ens, st, 1)

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(ens.stamps()) >= 1
	}, 2*time.Second, 10*time.Millisecond, "startup refresh should run without waiting for the first tick")
}
