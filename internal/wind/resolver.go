package wind

import "time"

// Resolve maps an arbitrary instant to the most recent cycle whose data is
// expected to already exist upstream. Upstream publishes each cycle with a
// lag (publishDelay, roughly 3h40m for GFS), so the cycle containing the
// instant may not be fetchable yet; in that case resolution steps back one
// slot at a time until the publish instant is not in the future.
//
// An instant exactly at a publish boundary resolves to that boundary's
// cycle: the comparison is strictly "publish instant after query instant".
func Resolve(at time.Time, publishDelay time.Duration) ResolvedCycle {
	bucket := CycleAt(at).Time()
	for bucket.Add(publishDelay).After(at) {
		bucket = bucket.Add(-CycleInterval)
	}
	return ResolvedCycle{
		Cycle:     Cycle{t: bucket},
		PublishAt: bucket.Add(publishDelay),
	}
}

// RecentCycles returns the n most recently published cycles at the given
// instant, newest first. It applies Resolve to at, at-6h, at-12h and so on,
// which yields n distinct consecutive cycles.
func RecentCycles(at time.Time, n int, publishDelay time.Duration) []Cycle {
	cycles := make([]Cycle, 0, n)
	for k := 0; k < n; k++ {
		resolved := Resolve(at.Add(-time.Duration(k)*CycleInterval), publishDelay)
		cycles = append(cycles, resolved.Cycle)
	}
	return cycles
}
