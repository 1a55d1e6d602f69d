package segment

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Granularity buckets cursor rows by time.
type Granularity string

const (
	GranularityAll    Granularity = "all"
	GranularityNone   Granularity = "none"
	GranularitySecond Granularity = "second"
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

var granularityDurations = map[Granularity]time.Duration{
	GranularityNone:   time.Millisecond,
	GranularitySecond: time.Second,
	GranularityMinute: time.Minute,
	GranularityHour:   time.Hour,
	GranularityDay:    24 * time.Hour,
}

// ParseGranularity parses a granularity name; the empty string means all.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if g == "" {
		return GranularityAll, nil
	}
	if g == GranularityAll {
		return g, nil
	}
	if _, ok := granularityDurations[g]; !ok {
		return "", errors.Newf("unknown granularity %q", s)
	}
	return g, nil
}

// BucketStart returns the start of the bucket containing t. For GranularityAll
// every timestamp belongs to the bucket starting at the interval start.
func (g Granularity) BucketStart(t time.Time, interval Interval) time.Time {
	d, ok := granularityDurations[g]
	if !ok {
		return interval.Start
	}
	start := t.UTC().Truncate(d)
	if start.Before(interval.Start) {
		return interval.Start
	}
	return start
}
