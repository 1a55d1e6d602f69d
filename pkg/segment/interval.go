package segment

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cast"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Eternity covers every representable timestamp.
func Eternity() Interval {
	return Interval{
		Start: time.UnixMilli(math.MinInt64 / 2).UTC(),
		End:   time.UnixMilli(math.MaxInt64 / 2).UTC(),
	}
}

// NewInterval creates an interval; end must not be before start.
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, errors.Newf("interval end %s is before start %s", end, start)
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Overlap returns the intersection of two intervals, and false when they are disjoint.
func (i Interval) Overlap(other Interval) (Interval, bool) {
	start, end := i.Start, i.End
	if other.Start.After(start) {
		start = other.Start
	}
	if other.End.Before(end) {
		end = other.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// IsZero reports whether the interval is unset.
func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

func (i Interval) String() string {
	return fmt.Sprintf("%s/%s", i.Start.Format(time.RFC3339Nano), i.End.Format(time.RFC3339Nano))
}

// TimeOf converts a __time value into a timestamp. Integers are epoch
// milliseconds; strings use any layout understood by cast.
func TimeOf(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.UnixMilli(0).UTC(), nil
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	}
	ts, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid %T time value", v)
	}
	return ts.UTC(), nil
}
