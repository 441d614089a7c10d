package wind

import (
	"fmt"
	"time"
)

// stampLayout is the canonical YYYYMMDDHH form of a cycle timestamp.
const stampLayout = "2006010215"

// CycleInterval is the spacing between upstream publication cycles.
// GFS publishes four runs per day, at 00, 06, 12 and 18 UTC.
const CycleInterval = 6 * time.Hour

// Cycle identifies one six-hour upstream publication slot.
// The zero value is not a valid cycle; construct via CycleAt or ParseStamp.
type Cycle struct {
	t time.Time // UTC, truncated to a cycle hour in {0,6,12,18}
}

// CycleAt returns the cycle whose slot contains the given instant.
func CycleAt(at time.Time) Cycle {
	u := at.UTC()
	hour := u.Hour() - u.Hour()%6
	return Cycle{t: time.Date(u.Year(), u.Month(), u.Day(), hour, 0, 0, 0, time.UTC)}
}

// ParseStamp parses a canonical YYYYMMDDHH cycle timestamp.
func ParseStamp(s string) (Cycle, error) {
	t, err := time.ParseInLocation(stampLayout, s, time.UTC)
	if err != nil {
		return Cycle{}, fmt.Errorf("invalid cycle timestamp %q: %w", s, err)
	}
	if t.Hour()%6 != 0 {
		return Cycle{}, fmt.Errorf("invalid cycle timestamp %q: hour must be a multiple of 6", s)
	}
	return Cycle{t: t}, nil
}

// Stamp returns the canonical YYYYMMDDHH form, used for artifact names
// and API payloads.
func (c Cycle) Stamp() string {
	return c.t.Format(stampLayout)
}

// Time returns the cycle's nominal start instant in UTC.
func (c Cycle) Time() time.Time {
	return c.t
}

// Before reports whether c is chronologically earlier than other.
func (c Cycle) Before(other Cycle) bool {
	return c.t.Before(other.t)
}

// Equal reports whether two cycles name the same publication slot.
func (c Cycle) Equal(other Cycle) bool {
	return c.t.Equal(other.t)
}

// ResolvedCycle is the outcome of resolving a query instant: the cycle to
// serve and the wall-clock instant at which its data is expected to be
// fetchable upstream.
type ResolvedCycle struct {
	Cycle     Cycle
	PublishAt time.Time
}
