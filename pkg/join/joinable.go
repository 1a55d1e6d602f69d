package join

import (
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
)

// Joinable is the right-hand side of a join clause. Column names are unprefixed.
type Joinable interface {
	AvailableColumns() []string
	// Cardinality returns domain.CardinalityUnknown when not known.
	Cardinality(column string) int
	// ColumnCapabilities returns nil for unknown columns.
	ColumnCapabilities(column string) *domain.ColumnCapabilities
	// MakeJoinMatcher returns a matcher probing on the given key columns.
	MakeJoinMatcher(keyColumns []string) (JoinMatcher, error)
	// CorrelatedColumnValues returns the distinct values of retrievalColumn in
	// rows where searchColumn equals searchValue. It returns false when the
	// values cannot be determined: searchColumn is not a key column and
	// allowNonKeyColumnSearch is false, or there are more than maxSize values.
	CorrelatedColumnValues(searchColumn, searchValue, retrievalColumn string, maxSize int64, allowNonKeyColumnSearch bool) ([]string, bool)
}

// JoinMatcher iterates right-hand rows matching a probe. It is not safe for
// concurrent use; each join cursor owns its matcher.
type JoinMatcher interface {
	// Match positions the matcher on the first row whose key columns equal keys.
	// A nil key never matches.
	Match(keys []interface{})
	// MatchAll positions the matcher on the first of all rows.
	MatchAll()
	HasMatch() bool
	NextMatch()
	// Get reads an unprefixed column of the current match.
	Get(column string) interface{}
}

// JoinableFactory builds joinables from data source names.
type JoinableFactory interface {
	Build(dataSource string, condition *Condition) (Joinable, bool)
}

// MapJoinableFactory resolves data sources from a fixed set of joinables.
type MapJoinableFactory map[string]Joinable

// Build implements JoinableFactory.
func (f MapJoinableFactory) Build(dataSource string, _ *Condition) (Joinable, bool) {
	j, ok := f[dataSource]
	return j, ok
}
