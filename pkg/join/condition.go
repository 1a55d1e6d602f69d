package join

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// Equality ties a left-hand expression to one right-hand column. RightColumn
// is stored without the clause prefix.
type Equality struct {
	Left        expr.Expr
	RightColumn string
}

func (e Equality) String() string {
	return e.Left.String() + " == " + e.RightColumn
}

// Condition is an analyzed join condition: the equi-conditions usable for
// hash lookups and correlation, plus a non-equi residue evaluated on the
// combined row.
type Condition struct {
	Original          string
	RightPrefix       string
	Equalities        []Equality
	NonEquiConditions []expr.Expr
	AlwaysFalse       bool
}

// NewEquiCondition builds a condition directly from equalities.
func NewEquiCondition(rightPrefix string, equalities ...Equality) *Condition {
	parts := make([]string, len(equalities))
	for i, eq := range equalities {
		parts[i] = eq.Left.String() + " == " + expr.Ident(rightPrefix+eq.RightColumn).String()
	}
	return &Condition{
		Original:    strings.Join(parts, " && "),
		RightPrefix: rightPrefix,
		Equalities:  equalities,
	}
}

// ParseCondition analyzes a join condition expression such as
// `x == j.k && j.v > 3`. Top-level conjuncts of the form
// `<left expr> == <prefixed identifier>` become equalities; constant conjuncts
// are folded; everything else is non-equi residue.
func ParseCondition(expression, rightPrefix string) (*Condition, error) {
	e, err := expr.Parse(expression)
	if err != nil {
		return nil, errors.Wrapf(err, "join condition")
	}

	cond := &Condition{Original: expression, RightPrefix: rightPrefix}
	for _, conjunct := range conjuncts(e) {
		if len(conjunct.RequiredBindings()) == 0 {
			if !utils.ToBool(conjunct.Eval(domain.NullRow)) {
				cond.AlwaysFalse = true
			}
			continue
		}
		if eq, ok := asEquality(conjunct, rightPrefix); ok {
			cond.Equalities = append(cond.Equalities, eq)
			continue
		}
		cond.NonEquiConditions = append(cond.NonEquiConditions, conjunct)
	}
	return cond, nil
}

func conjuncts(e expr.Expr) []expr.Expr {
	call, ok := e.(*expr.Call)
	if !ok || call.Op != expr.OpAnd {
		return []expr.Expr{e}
	}
	var out []expr.Expr
	for _, arg := range call.Args {
		out = append(out, conjuncts(arg)...)
	}
	return out
}

func asEquality(e expr.Expr, rightPrefix string) (Equality, bool) {
	call, ok := e.(*expr.Call)
	if !ok || call.Op != expr.OpEq {
		return Equality{}, false
	}
	for _, sides := range [][2]expr.Expr{{call.Args[0], call.Args[1]}, {call.Args[1], call.Args[0]}} {
		left, right := sides[0], sides[1]
		col, ok := right.BindingIfIdentifier()
		if !ok || !IsPrefixedBy(col, rightPrefix) {
			continue
		}
		if slices.ContainsFunc(left.RequiredBindings(), func(b string) bool { return IsPrefixedBy(b, rightPrefix) }) {
			continue
		}
		return Equality{Left: left, RightColumn: col[len(rightPrefix):]}, true
	}
	return Equality{}, false
}

// IsAlwaysTrue reports whether every left row matches every right row.
func (c *Condition) IsAlwaysTrue() bool {
	return !c.AlwaysFalse && len(c.Equalities) == 0 && len(c.NonEquiConditions) == 0
}

// CanHashJoin reports whether the condition is purely equi-conditions.
func (c *Condition) CanHashJoin() bool {
	return len(c.NonEquiConditions) == 0
}

// RightEquiColumns returns the unprefixed right-hand key columns in order.
func (c *Condition) RightEquiColumns() []string {
	cols := make([]string, len(c.Equalities))
	for i, eq := range c.Equalities {
		cols[i] = eq.RightColumn
	}
	return cols
}

// RequiredColumns returns every column the condition reads, right-hand
// columns with their prefix.
func (c *Condition) RequiredColumns() []string {
	var cols []string
	for _, eq := range c.Equalities {
		cols = append(cols, eq.Left.RequiredBindings()...)
		cols = append(cols, c.RightPrefix+eq.RightColumn)
	}
	for _, e := range c.NonEquiConditions {
		cols = append(cols, e.RequiredBindings()...)
	}
	slices.Sort(cols)
	return slices.Compact(cols)
}

func (c *Condition) String() string {
	return c.Original
}
