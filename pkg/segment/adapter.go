package segment

import (
	"iter"
	"time"

	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
)

// Cursor is a single-threaded pull iterator over rows of one time bucket.
// Get reads a column of the current row.
type Cursor interface {
	domain.ColumnSelector
	// Time is the start of the cursor's time bucket.
	Time() time.Time
	Advance()
	IsDone() bool
	// Reset rewinds the cursor to its first row.
	Reset()
}

// CursorSequence lazily yields cursors, one per time bucket.
type CursorSequence = iter.Seq[Cursor]

// CursorSpec describes a cursor request against a storage adapter.
type CursorSpec struct {
	Filter         filter.Filter
	Interval       Interval
	VirtualColumns VirtualColumns
	Granularity    Granularity
	Descending     bool
}

// Capabilities describes optional properties of a storage adapter.
type Capabilities struct {
	DimensionValuesSorted bool
}

// Metadata describes the provenance of a segment.
type Metadata struct {
	Rows       int                    `json:"rows"`
	Interval   string                 `json:"interval"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// StorageAdapter is the read interface of a segment.
type StorageAdapter interface {
	Interval() Interval
	AvailableDimensions() []string
	AvailableMetrics() []string
	// ColumnCapabilities returns nil for unknown columns.
	ColumnCapabilities(column string) *domain.ColumnCapabilities
	DimensionCardinality(column string) int
	MinValue(column string) interface{}
	MaxValue(column string) interface{}
	NumRows() (int, error)
	Metadata() (*Metadata, error)
	Capabilities() Capabilities
	MakeCursors(spec CursorSpec) CursorSequence
}

// ReadRows drains a cursor, projecting the given columns of every row.
func ReadRows(c Cursor, columns []string) []domain.Row {
	var rows []domain.Row
	for ; !c.IsDone(); c.Advance() {
		row := make(domain.Row, len(columns))
		for _, col := range columns {
			row[col] = c.Get(col)
		}
		rows = append(rows, row)
	}
	return rows
}

// ReadAll drains every cursor of a sequence.
func ReadAll(seq CursorSequence, columns []string) []domain.Row {
	var rows []domain.Row
	for c := range seq {
		rows = append(rows, ReadRows(c, columns)...)
	}
	return rows
}
