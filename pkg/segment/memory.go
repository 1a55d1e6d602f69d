package segment

import (
	"slices"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// MemoryAdapter is a storage adapter over rows held in memory, ordered by __time.
type MemoryAdapter struct {
	rows       []domain.Row
	times      []time.Time
	dimensions []string
	metrics    []string
	interval   Interval
}

// NewMemoryAdapter creates an in-memory segment. When dimensions is nil it is
// derived from the row keys (sorted, excluding __time and metrics).
func NewMemoryAdapter(rows []domain.Row, dimensions, metrics []string) (*MemoryAdapter, error) {
	type timedRow struct {
		row domain.Row
		ts  time.Time
	}
	timed := make([]timedRow, len(rows))
	for i, row := range rows {
		ts, err := TimeOf(row[domain.TimeColumn])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		timed[i] = timedRow{row: row, ts: ts}
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].ts.Before(timed[j].ts) })

	a := &MemoryAdapter{
		rows:    make([]domain.Row, len(timed)),
		times:   make([]time.Time, len(timed)),
		metrics: slices.Clone(metrics),
	}
	for i, tr := range timed {
		a.rows[i] = tr.row
		a.times[i] = tr.ts
	}

	if dimensions == nil {
		seen := make(map[string]bool)
		for _, row := range rows {
			for k := range row {
				if k != domain.TimeColumn && !slices.Contains(metrics, k) && !seen[k] {
					seen[k] = true
					dimensions = append(dimensions, k)
				}
			}
		}
		slices.Sort(dimensions)
	}
	a.dimensions = slices.Clone(dimensions)

	if len(a.times) > 0 {
		a.interval = Interval{Start: a.times[0], End: a.times[len(a.times)-1].Add(time.Millisecond)}
	}
	return a, nil
}

func (a *MemoryAdapter) Interval() Interval { return a.interval }

func (a *MemoryAdapter) AvailableDimensions() []string { return slices.Clone(a.dimensions) }

func (a *MemoryAdapter) AvailableMetrics() []string { return slices.Clone(a.metrics) }

func (a *MemoryAdapter) hasColumn(column string) bool {
	return column == domain.TimeColumn || slices.Contains(a.dimensions, column) || slices.Contains(a.metrics, column)
}

func (a *MemoryAdapter) ColumnCapabilities(column string) *domain.ColumnCapabilities {
	if column == domain.TimeColumn {
		return &domain.ColumnCapabilities{Type: domain.ValueTypeLong}
	}
	if !a.hasColumn(column) {
		return nil
	}
	caps := &domain.ColumnCapabilities{Type: domain.ValueTypeString}
	isDim := slices.Contains(a.dimensions, column)
	for _, row := range a.rows {
		if v := row[column]; v != nil {
			caps.Type = domain.InferValueType(v)
			break
		}
	}
	if isDim && caps.Type == domain.ValueTypeString {
		caps.DictionaryEncoded = true
		caps.HasBitmapIndexes = true
	}
	return caps
}

func (a *MemoryAdapter) DimensionCardinality(column string) int {
	if !a.hasColumn(column) {
		return domain.CardinalityUnknown
	}
	distinct := make(map[string]bool)
	for _, row := range a.rows {
		distinct[utils.ToString(row[column])] = true
	}
	return len(distinct)
}

func (a *MemoryAdapter) MinValue(column string) interface{} {
	return a.extreme(column, -1)
}

func (a *MemoryAdapter) MaxValue(column string) interface{} {
	return a.extreme(column, 1)
}

func (a *MemoryAdapter) extreme(column string, sign int) interface{} {
	if column == domain.TimeColumn {
		if len(a.times) == 0 {
			return nil
		}
		if sign < 0 {
			return a.times[0]
		}
		return a.times[len(a.times)-1]
	}
	var best interface{}
	for _, row := range a.rows {
		v := row[column]
		if v == nil {
			continue
		}
		if best == nil || utils.CompareValuesForSort(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

func (a *MemoryAdapter) NumRows() (int, error) { return len(a.rows), nil }

func (a *MemoryAdapter) Metadata() (*Metadata, error) {
	return &Metadata{
		Rows:     len(a.rows),
		Interval: a.interval.String(),
		Properties: map[string]interface{}{
			"dimensions": a.AvailableDimensions(),
			"metrics":    a.AvailableMetrics(),
		},
	}, nil
}

func (a *MemoryAdapter) Capabilities() Capabilities {
	return Capabilities{DimensionValuesSorted: true}
}

// MakeCursors returns one cursor per non-empty granularity bucket that
// overlaps spec.Interval. Virtual columns are visible to the filter.
func (a *MemoryAdapter) MakeCursors(spec CursorSpec) CursorSequence {
	return func(yield func(Cursor) bool) {
		interval := spec.Interval
		if interval.IsZero() {
			interval = Eternity()
		}
		actual, ok := interval.Overlap(a.interval)
		if !ok {
			return
		}

		lo := sort.Search(len(a.times), func(i int) bool { return !a.times[i].Before(actual.Start) })
		hi := sort.Search(len(a.times), func(i int) bool { return !a.times[i].Before(actual.End) })

		type bucket struct {
			start time.Time
			rows  []domain.Row
		}
		var buckets []bucket
		for i := lo; i < hi; i++ {
			start := spec.Granularity.BucketStart(a.times[i], actual)
			if n := len(buckets); n > 0 && buckets[n-1].start.Equal(start) {
				buckets[n-1].rows = append(buckets[n-1].rows, a.rows[i])
				continue
			}
			buckets = append(buckets, bucket{start: start, rows: []domain.Row{a.rows[i]}})
		}

		if spec.Descending {
			slices.Reverse(buckets)
		}
		for _, b := range buckets {
			rows := b.rows
			if spec.Descending {
				rows = slices.Clone(rows)
				slices.Reverse(rows)
			}
			c := newRowCursor(b.start, rows, spec.VirtualColumns, spec.Filter)
			if !yield(c) {
				return
			}
		}
	}
}

// rowCursor iterates a slice of rows, skipping rows rejected by the filter.
type rowCursor struct {
	start   time.Time
	rows    []domain.Row
	vcs     VirtualColumns
	filter  filter.Filter
	current domain.ColumnSelector
	pos     int
}

func newRowCursor(start time.Time, rows []domain.Row, vcs VirtualColumns, f filter.Filter) *rowCursor {
	c := &rowCursor{start: start, rows: rows, vcs: vcs, filter: f}
	c.Reset()
	return c
}

func (c *rowCursor) Time() time.Time { return c.start }

func (c *rowCursor) Get(column string) interface{} {
	if c.current == nil {
		return nil
	}
	return c.current.Get(column)
}

func (c *rowCursor) IsDone() bool { return c.pos >= len(c.rows) }

func (c *rowCursor) Advance() {
	c.pos++
	c.seek()
}

func (c *rowCursor) Reset() {
	c.pos = 0
	c.seek()
}

func (c *rowCursor) seek() {
	for ; c.pos < len(c.rows); c.pos++ {
		c.current = WithVirtualColumns(c.rows[c.pos], c.vcs)
		if c.filter == nil || c.filter.Matches(c.current) {
			return
		}
	}
	c.current = nil
}
