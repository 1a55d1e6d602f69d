package expr

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// Expr is an immutable expression over named row bindings.
type Expr interface {
	// BindingIfIdentifier returns the column name when the expression is a bare identifier.
	BindingIfIdentifier() (string, bool)
	// RequiredBindings returns the sorted, de-duplicated set of columns the expression reads.
	RequiredBindings() []string
	// Eval evaluates the expression against a row. NULL is represented by nil.
	Eval(row domain.ColumnSelector) interface{}
	// String renders the expression so that Parse(e.String()) yields an equivalent expression.
	String() string
}

// Identifier references a column.
type Identifier struct {
	Name string
}

// Literal is a constant value.
type Literal struct {
	Value interface{}
}

// Call applies an operator or function to its arguments.
type Call struct {
	Op   string
	Args []Expr
}

// Operator names used by Call.
const (
	OpEq        = "="
	OpNe        = "!="
	OpLt        = "<"
	OpLe        = "<="
	OpGt        = ">"
	OpGe        = ">="
	OpAnd       = "AND"
	OpOr        = "OR"
	OpNot       = "NOT"
	OpAdd       = "+"
	OpSub       = "-"
	OpMul       = "*"
	OpDiv       = "/"
	OpMod       = "%"
	OpNeg       = "NEG"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
	OpIn        = "IN"
	OpNotIn     = "NOT IN"
	OpLike      = "LIKE"
	OpNotLike   = "NOT LIKE"
)

var binaryOps = map[string]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpAnd: true, OpOr: true, OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true,
	OpLike: true, OpNotLike: true,
}

// functions maps supported function names to their evaluators.
var functions = map[string]func(args []interface{}) interface{}{
	"concat": func(args []interface{}) interface{} {
		var sb strings.Builder
		for _, a := range args {
			if a == nil {
				return nil
			}
			sb.WriteString(utils.ToString(a))
		}
		return sb.String()
	},
	"lower": unaryString(strings.ToLower),
	"upper": unaryString(strings.ToUpper),
	"trim":  unaryString(strings.TrimSpace),
	"length": func(args []interface{}) interface{} {
		if len(args) != 1 || args[0] == nil {
			return nil
		}
		return int64(len([]rune(utils.ToString(args[0]))))
	},
	"coalesce": func(args []interface{}) interface{} {
		for _, a := range args {
			if a != nil {
				return a
			}
		}
		return nil
	},
	"abs": func(args []interface{}) interface{} {
		if len(args) != 1 || args[0] == nil {
			return nil
		}
		f, err := utils.ToFloat64(args[0])
		if err != nil {
			return nil
		}
		if f < 0 {
			f = -f
		}
		return numeric(f)
	},
}

func unaryString(fn func(string) string) func([]interface{}) interface{} {
	return func(args []interface{}) interface{} {
		if len(args) != 1 || args[0] == nil {
			return nil
		}
		return fn(utils.ToString(args[0]))
	}
}

// IsFunction reports whether name is a supported function.
func IsFunction(name string) bool {
	_, ok := functions[strings.ToLower(name)]
	return ok
}

// Ident is shorthand for an identifier expression.
func Ident(name string) *Identifier {
	return &Identifier{Name: name}
}

// Lit is shorthand for a literal expression.
func Lit(v interface{}) *Literal {
	return &Literal{Value: v}
}

// NewCall builds an operator or function call.
func NewCall(op string, args ...Expr) *Call {
	return &Call{Op: op, Args: args}
}

func (e *Identifier) BindingIfIdentifier() (string, bool) { return e.Name, true }

func (e *Identifier) RequiredBindings() []string { return []string{e.Name} }

func (e *Identifier) Eval(row domain.ColumnSelector) interface{} { return row.Get(e.Name) }

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

func (e *Identifier) String() string {
	if plainIdentifier.MatchString(e.Name) {
		return e.Name
	}
	return "`" + strings.ReplaceAll(e.Name, "`", "``") + "`"
}

func (e *Literal) BindingIfIdentifier() (string, bool) { return "", false }

func (e *Literal) RequiredBindings() []string { return nil }

func (e *Literal) Eval(domain.ColumnSelector) interface{} { return e.Value }

func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return utils.ToString(v)
	}
}

func (e *Call) BindingIfIdentifier() (string, bool) { return "", false }

func (e *Call) RequiredBindings() []string {
	var out []string
	for _, arg := range e.Args {
		out = append(out, arg.RequiredBindings()...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	switch {
	case e.Op == OpNot:
		return "(NOT " + args[0] + ")"
	case e.Op == OpNeg:
		return "(-" + args[0] + ")"
	case e.Op == OpIsNull || e.Op == OpIsNotNull:
		return "(" + args[0] + " " + e.Op + ")"
	case e.Op == OpIn || e.Op == OpNotIn:
		return "(" + args[0] + " " + e.Op + " (" + strings.Join(args[1:], ", ") + "))"
	case binaryOps[e.Op] && len(args) == 2:
		return "(" + args[0] + " " + e.Op + " " + args[1] + ")"
	default:
		return strings.ToLower(e.Op) + "(" + strings.Join(args, ", ") + ")"
	}
}

func (e *Call) Eval(row domain.ColumnSelector) interface{} {
	switch e.Op {
	case OpAnd:
		for _, a := range e.Args {
			if !utils.ToBool(a.Eval(row)) {
				return false
			}
		}
		return true
	case OpOr:
		for _, a := range e.Args {
			if utils.ToBool(a.Eval(row)) {
				return true
			}
		}
		return false
	case OpNot:
		return !utils.ToBool(e.Args[0].Eval(row))
	case OpIsNull:
		return e.Args[0].Eval(row) == nil
	case OpIsNotNull:
		return e.Args[0].Eval(row) != nil
	case OpIn, OpNotIn:
		v := e.Args[0].Eval(row)
		if v == nil {
			return false
		}
		list := make([]interface{}, len(e.Args)-1)
		for i, a := range e.Args[1:] {
			list[i] = a.Eval(row)
		}
		ok, err := utils.CompareValues(v, list, e.Op)
		return err == nil && ok
	case OpNeg:
		v := e.Args[0].Eval(row)
		f, err := utils.ToFloat64(v)
		if err != nil {
			return nil
		}
		return numeric(-f)
	}

	vals := make([]interface{}, len(e.Args))
	for i, a := range e.Args {
		vals[i] = a.Eval(row)
	}

	switch e.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpNotLike:
		if vals[0] == nil || vals[1] == nil {
			return false
		}
		ok, err := utils.CompareValues(vals[0], vals[1], e.Op)
		return err == nil && ok
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return arithmetic(e.Op, vals[0], vals[1])
	}

	if fn, ok := functions[strings.ToLower(e.Op)]; ok {
		return fn(vals)
	}
	return nil
}

func arithmetic(op string, a, b interface{}) interface{} {
	x, errA := utils.ToFloat64(a)
	y, errB := utils.ToFloat64(b)
	if errA != nil || errB != nil {
		return nil
	}
	switch op {
	case OpAdd:
		return numeric(x + y)
	case OpSub:
		return numeric(x - y)
	case OpMul:
		return numeric(x * y)
	case OpDiv:
		if y == 0 {
			return nil
		}
		return numeric(x / y)
	case OpMod:
		if y == 0 {
			return nil
		}
		return numeric(float64(int64(x) % int64(y)))
	}
	return nil
}

// numeric keeps integral results as int64 so they render without a decimal point.
func numeric(f float64) interface{} {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

// Equal reports whether two expressions have the same canonical form.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// MustParse is Parse for statically known expressions.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("parse %q: %v", text, err))
	}
	return e
}
