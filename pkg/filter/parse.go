package filter

import (
	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// Parse parses filter text such as `j.y = 'A' OR x IN (1, 2)`.
func Parse(text string) (Filter, error) {
	e, err := expr.Parse(text)
	if err != nil {
		return nil, err
	}
	return FromExpr(e), nil
}

// MustParse is Parse for statically known filters.
func MustParse(text string) Filter {
	return FromExpr(expr.MustParse(text))
}

// FromExpr converts a boolean expression into a filter tree. Equality and IN
// against literals become Selector and In leaves; anything else is opaque.
func FromExpr(e expr.Expr) Filter {
	call, ok := e.(*expr.Call)
	if !ok {
		return Opaque(e)
	}

	switch call.Op {
	case expr.OpAnd:
		return &AndFilter{Filters: fromExprs(call.Args)}
	case expr.OpOr:
		return &OrFilter{Filters: fromExprs(call.Args)}
	case expr.OpNot:
		return Not(FromExpr(call.Args[0]))
	case expr.OpEq, expr.OpNe:
		if col, val, ok := columnAndLiteral(call.Args[0], call.Args[1]); ok && val != nil {
			if call.Op == expr.OpNe {
				return Not(Selector(col, val))
			}
			return Selector(col, val)
		}
	case expr.OpIsNull, expr.OpIsNotNull:
		if col, ok := call.Args[0].BindingIfIdentifier(); ok {
			if call.Op == expr.OpIsNotNull {
				return Not(Selector(col, nil))
			}
			return Selector(col, nil)
		}
	case expr.OpIn, expr.OpNotIn:
		if col, ok := call.Args[0].BindingIfIdentifier(); ok {
			if values, ok := literalStrings(call.Args[1:]); ok {
				if call.Op == expr.OpNotIn {
					return Not(In(col, values))
				}
				return In(col, values)
			}
		}
	}
	return Opaque(e)
}

func fromExprs(args []expr.Expr) []Filter {
	out := make([]Filter, len(args))
	for i, a := range args {
		out[i] = FromExpr(a)
	}
	return out
}

func columnAndLiteral(a, b expr.Expr) (string, interface{}, bool) {
	if col, ok := a.BindingIfIdentifier(); ok {
		if lit, ok := b.(*expr.Literal); ok {
			return col, lit.Value, true
		}
	}
	if col, ok := b.BindingIfIdentifier(); ok {
		if lit, ok := a.(*expr.Literal); ok {
			return col, lit.Value, true
		}
	}
	return "", nil, false
}

func literalStrings(args []expr.Expr) ([]string, bool) {
	values := make([]string, 0, len(args))
	for _, a := range args {
		lit, ok := a.(*expr.Literal)
		if !ok || lit.Value == nil {
			return nil, false
		}
		values = append(values, utils.ToString(lit.Value))
	}
	return values, true
}
