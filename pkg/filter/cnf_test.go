package filter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testColumns = []string{"a", "b", "c"}
	testValues  = []interface{}{"1", "2", nil}
)

func randomFilter(r *rand.Rand, depth int) Filter {
	if depth <= 0 || r.Intn(4) == 0 {
		col := testColumns[r.Intn(len(testColumns))]
		switch r.Intn(3) {
		case 0:
			return Selector(col, testValues[r.Intn(len(testValues))])
		case 1:
			return In(col, []string{"1", "2"}[:1+r.Intn(2)])
		default:
			return Opaque(expr.MustParse(fmt.Sprintf("%s > 1", col)))
		}
	}

	switch r.Intn(3) {
	case 0:
		return Not(randomFilter(r, depth-1))
	case 1:
		n := 2 + r.Intn(2)
		children := make([]Filter, n)
		for i := range children {
			children[i] = randomFilter(r, depth-1)
		}
		return &AndFilter{Filters: children}
	default:
		n := 2 + r.Intn(2)
		children := make([]Filter, n)
		for i := range children {
			children[i] = randomFilter(r, depth-1)
		}
		return &OrFilter{Filters: children}
	}
}

// allRows enumerates every assignment of testValues to testColumns.
func allRows() []domain.Row {
	var rows []domain.Row
	for _, a := range testValues {
		for _, b := range testValues {
			for _, c := range testValues {
				rows = append(rows, domain.Row{"a": a, "b": b, "c": c})
			}
		}
	}
	return rows
}

func isLiteral(f Filter) bool {
	switch t := f.(type) {
	case *AndFilter, *OrFilter:
		return false
	case *NotFilter:
		return isLiteral(t.Filter)
	}
	return true
}

func isCNF(f Filter) bool {
	for _, clause := range Clauses(f) {
		if or, ok := clause.(*OrFilter); ok {
			for _, l := range or.Filters {
				if !isLiteral(l) {
					return false
				}
			}
		} else if !isLiteral(clause) {
			return false
		}
	}
	return true
}

func TestToCNF_Soundness(t *testing.T) {
	rows := allRows()
	properties := gopter.NewProperties(nil)

	properties.Property("normalized filter matches the same rows", prop.ForAll(
		func(seed int64) bool {
			f := randomFilter(rand.New(rand.NewSource(seed)), 4)
			normalized := ToCNF(f)
			for _, row := range rows {
				if normalized.Matches(row) != f.Matches(row) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("normalized filter is an AND of ORs", prop.ForAll(
		func(seed int64) bool {
			f := randomFilter(rand.New(rand.NewSource(seed)), 3)
			return isCNF(ToCNF(f))
		},
		gen.Int64(),
	))

	properties.Property("normalization is deterministic", prop.ForAll(
		func(seed int64) bool {
			f := randomFilter(rand.New(rand.NewSource(seed)), 4)
			return ToCNF(f).String() == ToCNF(f).String()
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestToCNF_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single selector", "a = 1", "a = 1"},
		{"flat and", "a = 1 AND (b = 2 AND c = 3)", "(a = 1) AND (b = 2) AND (c = 3)"},
		{"distribute", "a = 1 OR (b = 2 AND c = 3)", "((a = 1) OR (b = 2)) AND ((a = 1) OR (c = 3))"},
		{"de morgan", "NOT (a = 1 OR b = 2)", "(NOT (a = 1)) AND (NOT (b = 2))"},
		{"double negation", "NOT (NOT (a = 1))", "a = 1"},
		{"duplicate clauses", "a = 1 AND a = 1", "a = 1"},
		{"opaque atom", "NOT (a > 1 AND b = 2)", "(NOT ((a > 1))) OR (NOT (b = 2))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCNF(MustParse(tt.in)).String())
		})
	}
}

func TestToCNFWithLimit_FallsBack(t *testing.T) {
	// (a1 AND b1) OR (a2 AND b2) OR (a3 AND b3) distributes into 8 clauses.
	f := MustParse("(a = 1 AND b = 1) OR (a = 2 AND b = 2) OR (a = 3 AND b = 3)")

	assert.Len(t, Clauses(ToCNFWithLimit(f, 8)), 8)
	assert.Same(t, f, ToCNFWithLimit(f, 7))

	for _, row := range allRows() {
		assert.Equal(t, f.Matches(row), ToCNFWithLimit(f, 7).Matches(row))
	}
}

func TestToCNF_Nil(t *testing.T) {
	assert.Nil(t, ToCNF(nil))
	empty := &OrFilter{}
	require.Same(t, empty, ToCNF(empty))
	assert.False(t, ToCNF(empty).Matches(domain.Row{}))
}
