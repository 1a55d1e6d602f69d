package segment

import (
	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
)

// VirtualColumn computes a column from other columns of the same row.
type VirtualColumn interface {
	OutputName() string
	RequiredColumns() []string
	Eval(row domain.ColumnSelector) interface{}
	Capabilities() domain.ColumnCapabilities
	// String is the canonical form. Two virtual columns with the same string
	// must compute the same values.
	String() string
}

// ExpressionVirtualColumn evaluates an expression per row.
type ExpressionVirtualColumn struct {
	Name       string
	Expression expr.Expr
	OutputType domain.ValueType
}

// NewExpressionVirtualColumn creates an expression virtual column.
func NewExpressionVirtualColumn(name string, e expr.Expr, outputType domain.ValueType) *ExpressionVirtualColumn {
	return &ExpressionVirtualColumn{Name: name, Expression: e, OutputType: outputType}
}

// ParseExpressionVirtualColumn parses the expression text of a virtual column.
func ParseExpressionVirtualColumn(name, expression string, outputType domain.ValueType) (*ExpressionVirtualColumn, error) {
	e, err := expr.Parse(expression)
	if err != nil {
		return nil, err
	}
	if outputType == "" {
		outputType = domain.ValueTypeString
	}
	return NewExpressionVirtualColumn(name, e, outputType), nil
}

func (v *ExpressionVirtualColumn) OutputName() string { return v.Name }

func (v *ExpressionVirtualColumn) RequiredColumns() []string { return v.Expression.RequiredBindings() }

func (v *ExpressionVirtualColumn) Eval(row domain.ColumnSelector) interface{} {
	return v.Expression.Eval(row)
}

func (v *ExpressionVirtualColumn) Capabilities() domain.ColumnCapabilities {
	return domain.ColumnCapabilities{Type: v.OutputType}
}

func (v *ExpressionVirtualColumn) String() string {
	return v.Name + ":" + string(v.OutputType) + "=" + v.Expression.String()
}

// VirtualColumns is an ordered list of virtual columns.
type VirtualColumns []VirtualColumn

// Find returns the virtual column with the given output name.
func (vcs VirtualColumns) Find(name string) (VirtualColumn, bool) {
	for _, vc := range vcs {
		if vc.OutputName() == name {
			return vc, true
		}
	}
	return nil, false
}

// Names returns the output names in order.
func (vcs VirtualColumns) Names() []string {
	names := make([]string, len(vcs))
	for i, vc := range vcs {
		names[i] = vc.OutputName()
	}
	return names
}

// WithVirtualColumns overlays virtual columns on top of a column selector.
// A virtual column shadows an underlying column of the same name and may read
// other virtual columns, but never itself.
func WithVirtualColumns(base domain.ColumnSelector, vcs VirtualColumns) domain.ColumnSelector {
	if len(vcs) == 0 {
		return base
	}
	return &virtualSelector{base: base, vcs: vcs}
}

type virtualSelector struct {
	base domain.ColumnSelector
	vcs  VirtualColumns
}

func (s *virtualSelector) Get(column string) interface{} {
	for i, vc := range s.vcs {
		if vc.OutputName() != column {
			continue
		}
		rest := make(VirtualColumns, 0, len(s.vcs)-1)
		rest = append(rest, s.vcs[:i]...)
		rest = append(rest, s.vcs[i+1:]...)
		return vc.Eval(WithVirtualColumns(s.base, rest))
	}
	return s.base.Get(column)
}
