package expr

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// parser.Parser is not safe for concurrent use.
var parserPool = sync.Pool{
	New: func() interface{} { return parser.New() },
}

// Parse parses a SQL-style scalar expression such as `x == j.k && j.v > 3`.
// `==` is accepted as a synonym of `=`; qualified names like `j.k` become the
// single binding "j.k".
func Parse(text string) (Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty expression")
	}

	p := parserPool.Get().(*parser.Parser)
	defer parserPool.Put(p)

	stmt, err := p.ParseOneStmt("SELECT "+normalizeEquals(text), "", "")
	if err != nil {
		return nil, errors.Wrapf(err, "parse expression %q", text)
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok || sel.Fields == nil || len(sel.Fields.Fields) != 1 || sel.Fields.Fields[0].Expr == nil {
		return nil, errors.Newf("expected a single scalar expression: %q", text)
	}
	if sel.From != nil || sel.Where != nil {
		return nil, errors.Newf("unexpected clause in expression: %q", text)
	}
	return convert(sel.Fields.Fields[0].Expr)
}

// normalizeEquals rewrites `==` to `=` outside quoted sections.
func normalizeEquals(text string) string {
	var sb strings.Builder
	var quote rune
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '=' && i+1 < len(runes) && runes[i+1] == '=':
			i++
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var binaryOpcodes = map[opcode.Op]string{
	opcode.EQ:       OpEq,
	opcode.NE:       OpNe,
	opcode.LT:       OpLt,
	opcode.LE:       OpLe,
	opcode.GT:       OpGt,
	opcode.GE:       OpGe,
	opcode.LogicAnd: OpAnd,
	opcode.LogicOr:  OpOr,
	opcode.Plus:     OpAdd,
	opcode.Minus:    OpSub,
	opcode.Mul:      OpMul,
	opcode.Div:      OpDiv,
	opcode.Mod:      OpMod,
}

func convert(node ast.ExprNode) (Expr, error) {
	switch n := node.(type) {
	case *ast.ParenthesesExpr:
		return convert(n.Expr)

	case *ast.ColumnNameExpr:
		parts := make([]string, 0, 3)
		for _, part := range []string{n.Name.Schema.String(), n.Name.Table.String(), n.Name.Name.String()} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		return Ident(strings.Join(parts, ".")), nil

	case ast.ValueExpr:
		return Lit(convertValue(n.GetValue())), nil

	case *ast.BinaryOperationExpr:
		op, ok := binaryOpcodes[n.Op]
		if !ok {
			return nil, errors.Newf("unsupported operator %s", n.Op.String())
		}
		l, err := convert(n.L)
		if err != nil {
			return nil, err
		}
		r, err := convert(n.R)
		if err != nil {
			return nil, err
		}
		return NewCall(op, l, r), nil

	case *ast.UnaryOperationExpr:
		v, err := convert(n.V)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case opcode.Not, opcode.Not2:
			return NewCall(OpNot, v), nil
		case opcode.Minus:
			if lit, ok := v.(*Literal); ok {
				if f, ok := negate(lit.Value); ok {
					return Lit(f), nil
				}
			}
			return NewCall(OpNeg, v), nil
		case opcode.Plus:
			return v, nil
		}
		return nil, errors.Newf("unsupported unary operator %s", n.Op.String())

	case *ast.IsNullExpr:
		v, err := convert(n.Expr)
		if err != nil {
			return nil, err
		}
		if n.Not {
			return NewCall(OpIsNotNull, v), nil
		}
		return NewCall(OpIsNull, v), nil

	case *ast.PatternInExpr:
		if n.Sel != nil {
			return nil, errors.New("IN subquery is not supported")
		}
		args := make([]Expr, 0, len(n.List)+1)
		v, err := convert(n.Expr)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		for _, item := range n.List {
			a, err := convert(item)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if n.Not {
			return NewCall(OpNotIn, args...), nil
		}
		return NewCall(OpIn, args...), nil

	case *ast.PatternLikeOrIlikeExpr:
		v, err := convert(n.Expr)
		if err != nil {
			return nil, err
		}
		pattern, err := convert(n.Pattern)
		if err != nil {
			return nil, err
		}
		if n.Not {
			return NewCall(OpNotLike, v, pattern), nil
		}
		return NewCall(OpLike, v, pattern), nil

	case *ast.FuncCallExpr:
		name := strings.ToLower(n.FnName.L)
		if !IsFunction(name) {
			return nil, errors.Newf("unsupported function %s", n.FnName.O)
		}
		args := make([]Expr, 0, len(n.Args))
		for _, arg := range n.Args {
			a, err := convert(arg)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return NewCall(name, args...), nil
	}

	return nil, errors.Newf("unsupported expression type %T", node)
}

// convertValue maps parser datum values onto plain Go values.
func convertValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil, string, int64, float64, bool:
		return v
	case []byte:
		return string(v)
	case float32:
		return float64(v)
	case int:
		return int64(v)
	case uint64:
		if v <= uint64(math.MaxInt64) {
			return int64(v)
		}
		return float64(v)
	case interface{ String() string }:
		// decimals
		s := v.String()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	return val
}

func negate(v interface{}) (interface{}, bool) {
	switch n := v.(type) {
	case int64:
		return -n, true
	case float64:
		return -n, true
	}
	return nil, false
}
