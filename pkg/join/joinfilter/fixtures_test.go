package joinfilter

import (
	"testing"
	"time"

	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/join/table"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// rightRows: k is the join key, y a filterable attribute.
func rightRows() []domain.Row {
	return []domain.Row{
		{"k": "1", "y": "A"},
		{"k": "2", "y": "A"},
		{"k": "3", "y": "B"},
		{"k": "1", "y": "C"},
	}
}

func baseRows() []domain.Row {
	return []domain.Row{
		{"__time": epoch, "x": "1", "page": "p1"},
		{"__time": epoch.Add(time.Second), "x": "2", "page": "p2"},
		{"__time": epoch.Add(2 * time.Second), "x": "3", "page": "p3"},
		{"__time": epoch.Add(3 * time.Second), "x": "4", "page": "p4"},
		{"__time": epoch.Add(4 * time.Second), "x": nil, "page": "p5"},
	}
}

func newTable(t *testing.T, rows []domain.Row, keys ...string) *table.IndexedTable {
	t.Helper()
	tbl, err := table.New(rows, nil, keys)
	require.NoError(t, err)
	return tbl
}

func newClause(t *testing.T, prefix, condition string, joinType domain.JoinType, j join.Joinable) *join.JoinableClause {
	t.Helper()
	cond, err := join.ParseCondition(condition, prefix)
	require.NoError(t, err)
	c, err := join.NewJoinableClause(prefix, joinType, cond, j)
	require.NoError(t, err)
	return c
}

// singleClause joins base x to j.k with y indexed as well.
func singleClause(t *testing.T) []*join.JoinableClause {
	return []*join.JoinableClause{
		newClause(t, "j.", "x == j.k", domain.JoinTypeInner, newTable(t, rightRows(), "k", "y")),
	}
}

func filterString(f filter.Filter) string {
	if f == nil {
		return ""
	}
	return f.String()
}

// runJoin executes base filter, joins and the join filter the way the
// storage adapter does and returns the selected columns.
func runJoin(t *testing.T, clauses []*join.JoinableClause, split *FilterSplit, applyJoinFilter bool, columns []string) []domain.Row {
	t.Helper()
	base, err := segment.NewMemoryAdapter(baseRows(), nil, nil)
	require.NoError(t, err)

	var out []domain.Row
	for c := range base.MakeCursors(segment.CursorSpec{Filter: split.BaseFilter, VirtualColumns: split.PushDownVirtualColumns}) {
		cursor := c
		for _, clause := range clauses {
			cursor, err = join.MakeJoinCursor(cursor, clause, nil)
			require.NoError(t, err)
		}
		var jf filter.Filter
		if applyJoinFilter {
			jf = split.JoinFilter
		}
		out = append(out, segment.ReadRows(join.WrapPostJoin(cursor, nil, jf), columns)...)
	}
	return out
}

func mustExpr(t *testing.T, text string) expr.Expr {
	t.Helper()
	e, err := expr.Parse(text)
	require.NoError(t, err)
	return e
}

func vcOf(t *testing.T, name, expression string) segment.VirtualColumn {
	t.Helper()
	vc, err := segment.ParseExpressionVirtualColumn(name, expression, domain.ValueTypeString)
	require.NoError(t, err)
	return vc
}
