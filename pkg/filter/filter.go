package filter

import (
	"slices"
	"strings"

	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// Filter is an immutable row predicate.
//
// Filters use two-valued logic: a NULL (or missing) column fails Selector and
// In unless the Selector value itself is NULL, and passes their negation.
type Filter interface {
	// Matches evaluates the filter against a row.
	Matches(row domain.ColumnSelector) bool
	// RequiredColumns returns the sorted set of columns the filter reads.
	RequiredColumns() []string
	// String renders the filter; Parse(f.String()) yields an equivalent filter.
	String() string
}

// SelectorFilter matches rows where Column equals Value. A nil Value matches NULL.
type SelectorFilter struct {
	Column string
	Value  interface{}
}

// InFilter matches rows where Column is one of Values.
type InFilter struct {
	Column string
	Values []string
}

// AndFilter matches rows matched by every child.
type AndFilter struct {
	Filters []Filter
}

// OrFilter matches rows matched by at least one child.
type OrFilter struct {
	Filters []Filter
}

// NotFilter inverts its child.
type NotFilter struct {
	Filter Filter
}

// OpaqueFilter wraps a predicate expression that is not decomposed further.
type OpaqueFilter struct {
	Expr expr.Expr
}

// Selector creates a SelectorFilter.
func Selector(column string, value interface{}) *SelectorFilter {
	return &SelectorFilter{Column: column, Value: value}
}

// In creates an InFilter over the de-duplicated, sorted values.
func In(column string, values []string) *InFilter {
	vals := slices.Clone(values)
	slices.Sort(vals)
	return &InFilter{Column: column, Values: slices.Compact(vals)}
}

// Not creates a NotFilter.
func Not(f Filter) *NotFilter {
	return &NotFilter{Filter: f}
}

// Opaque creates an OpaqueFilter.
func Opaque(e expr.Expr) *OpaqueFilter {
	return &OpaqueFilter{Expr: e}
}

// And combines filters with AND. Nil entries are skipped; it returns nil when
// nothing is left and the single filter when only one is left.
func And(filters ...Filter) Filter {
	kept := compactNil(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &AndFilter{Filters: kept}
}

// Or combines filters with OR, with the same collapsing rules as And.
func Or(filters ...Filter) Filter {
	kept := compactNil(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &OrFilter{Filters: kept}
}

func compactNil(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// MatchesNull reports whether a row with every column NULL satisfies f.
func MatchesNull(f Filter) bool {
	return f.Matches(domain.NullRow)
}

// Clauses returns the top-level conjuncts of f.
func Clauses(f Filter) []Filter {
	if f == nil {
		return nil
	}
	if and, ok := f.(*AndFilter); ok {
		return and.Filters
	}
	return []Filter{f}
}

func (f *SelectorFilter) Matches(row domain.ColumnSelector) bool {
	return utils.ValuesEqual(row.Get(f.Column), f.Value)
}

func (f *SelectorFilter) RequiredColumns() []string { return []string{f.Column} }

func (f *SelectorFilter) String() string {
	if f.Value == nil {
		return expr.Ident(f.Column).String() + " IS NULL"
	}
	return expr.Ident(f.Column).String() + " = " + expr.Lit(f.Value).String()
}

func (f *InFilter) Matches(row domain.ColumnSelector) bool {
	v := row.Get(f.Column)
	if v == nil {
		return false
	}
	_, found := slices.BinarySearch(f.Values, utils.ToString(v))
	return found
}

func (f *InFilter) RequiredColumns() []string { return []string{f.Column} }

func (f *InFilter) String() string {
	vals := make([]string, len(f.Values))
	for i, v := range f.Values {
		vals[i] = expr.Lit(v).String()
	}
	return expr.Ident(f.Column).String() + " IN (" + strings.Join(vals, ", ") + ")"
}

func (f *AndFilter) Matches(row domain.ColumnSelector) bool {
	for _, c := range f.Filters {
		if !c.Matches(row) {
			return false
		}
	}
	return true
}

func (f *AndFilter) RequiredColumns() []string { return requiredColumns(f.Filters) }

func (f *AndFilter) String() string { return join(f.Filters, " AND ") }

func (f *OrFilter) Matches(row domain.ColumnSelector) bool {
	for _, c := range f.Filters {
		if c.Matches(row) {
			return true
		}
	}
	return false
}

func (f *OrFilter) RequiredColumns() []string { return requiredColumns(f.Filters) }

func (f *OrFilter) String() string { return join(f.Filters, " OR ") }

func (f *NotFilter) Matches(row domain.ColumnSelector) bool { return !f.Filter.Matches(row) }

func (f *NotFilter) RequiredColumns() []string { return f.Filter.RequiredColumns() }

func (f *NotFilter) String() string { return "NOT (" + f.Filter.String() + ")" }

func (f *OpaqueFilter) Matches(row domain.ColumnSelector) bool {
	return utils.ToBool(f.Expr.Eval(row))
}

func (f *OpaqueFilter) RequiredColumns() []string { return f.Expr.RequiredBindings() }

func (f *OpaqueFilter) String() string { return f.Expr.String() }

func requiredColumns(filters []Filter) []string {
	var cols []string
	for _, f := range filters {
		cols = append(cols, f.RequiredColumns()...)
	}
	slices.Sort(cols)
	return slices.Compact(cols)
}

func join(filters []Filter, sep string) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = "(" + f.String() + ")"
	}
	return strings.Join(parts, sep)
}
