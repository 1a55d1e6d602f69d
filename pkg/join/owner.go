package join

import (
	"github.com/google/btree"
)

type prefixEntry struct {
	prefix string
	index  int
}

// OwnerIndex resolves which clause owns a column. Prefixes are kept in a
// sorted tree; when two clauses share a prefix the later one wins.
type OwnerIndex struct {
	tree    *btree.BTreeG[prefixEntry]
	clauses []*JoinableClause
}

// NewOwnerIndex builds an index over clauses in registration order.
func NewOwnerIndex(clauses []*JoinableClause) *OwnerIndex {
	tree := btree.NewG(8, func(a, b prefixEntry) bool { return a.prefix < b.prefix })
	for i, c := range clauses {
		tree.ReplaceOrInsert(prefixEntry{prefix: c.Prefix, index: i})
	}
	return &OwnerIndex{tree: tree, clauses: clauses}
}

// Owner returns the clause owning column, or nil if the column belongs to the
// base table. Among several matching prefixes the last-registered clause wins.
func (idx *OwnerIndex) Owner(column string) *JoinableClause {
	if column == "" {
		return nil
	}
	best := -1
	idx.tree.DescendLessOrEqual(prefixEntry{prefix: column}, func(e prefixEntry) bool {
		if e.prefix == "" || e.prefix[0] < column[0] {
			return false
		}
		if IsPrefixedBy(column, e.prefix) && e.index > best {
			best = e.index
		}
		return true
	})
	if best < 0 {
		return nil
	}
	return idx.clauses[best]
}

// IsBaseColumn reports whether no clause claims column.
func (idx *OwnerIndex) IsBaseColumn(column string) bool {
	return idx.Owner(column) == nil
}

// AreSomeColumnsFromJoin reports whether any column is owned by a clause.
func (idx *OwnerIndex) AreSomeColumnsFromJoin(columns []string) bool {
	for _, col := range columns {
		if !idx.IsBaseColumn(col) {
			return true
		}
	}
	return false
}
