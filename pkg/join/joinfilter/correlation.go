package joinfilter

import (
	"slices"
	"sort"

	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
)

// Equiconditions maps a prefixed right-hand column to every left-hand
// expression it is equated with across all clauses.
type Equiconditions map[string][]expr.Expr

// BuildEquiconditions collects the equalities of all clauses.
func BuildEquiconditions(clauses []*join.JoinableClause) Equiconditions {
	eq := make(Equiconditions)
	for _, c := range clauses {
		for _, e := range c.Condition.Equalities {
			rhs := c.Prefix + e.RightColumn
			if !slices.ContainsFunc(eq[rhs], func(x expr.Expr) bool { return expr.Equal(x, e.Left) }) {
				eq[rhs] = append(eq[rhs], e.Left)
			}
		}
	}
	return eq
}

// CorrelationAnalysis records the base-table columns and expressions proven
// equal to one right-hand join column.
type CorrelationAnalysis struct {
	JoinColumn      string
	BaseColumns     []string
	BaseExpressions []expr.Expr

	clause      *join.JoinableClause
	maxSize     int64
	allowNonKey bool
	metrics     *monitor.JoinMetrics
	values      Memo[*valueSet]
}

type valueSet struct {
	values []string
	ok     bool
}

// SupportsPushDown reports whether any base column or expression is correlated.
func (c *CorrelationAnalysis) SupportsPushDown() bool {
	return len(c.BaseColumns) > 0 || len(c.BaseExpressions) > 0
}

// CorrelatedValues returns the values of JoinColumn in right-hand rows where
// filterColumn equals filterValue. Both columns are prefixed. The result is
// memoized, including the negative outcome: a set that could not be
// determined, exceeded the size bound or was empty reports false.
func (c *CorrelationAnalysis) CorrelatedValues(filterColumn, filterValue string) ([]string, bool) {
	vs := c.values.Get(filterColumn+"\x00"+filterValue, func() *valueSet {
		c.metrics.RecordCorrelatedLookup()
		values, ok := c.clause.Joinable.CorrelatedColumnValues(
			c.clause.UnprefixColumn(filterColumn),
			filterValue,
			c.clause.UnprefixColumn(c.JoinColumn),
			c.maxSize,
			c.allowNonKey,
		)
		if !ok || len(values) == 0 {
			return &valueSet{}
		}
		return &valueSet{values: values, ok: true}
	})
	return vs.values, vs.ok
}

func (c *CorrelationAnalysis) addBaseColumn(col string) {
	if !slices.Contains(c.BaseColumns, col) {
		c.BaseColumns = append(c.BaseColumns, col)
	}
}

func (c *CorrelationAnalysis) addBaseExpression(e expr.Expr) {
	if !slices.ContainsFunc(c.BaseExpressions, func(x expr.Expr) bool { return expr.Equal(x, e) }) {
		c.BaseExpressions = append(c.BaseExpressions, e)
	}
}

// FindCorrelation computes, for each right-hand join column of the clause at
// prefix, the base-table columns and expressions it is transitively equal to.
// Columns with no correlation are omitted; false means none had any.
func FindCorrelation(clauses []*join.JoinableClause, prefix string, equiconditions Equiconditions, allowExpressions bool) (map[string]*CorrelationAnalysis, bool) {
	owners := join.NewOwnerIndex(clauses)
	for _, c := range clauses {
		if c.Prefix == prefix {
			cfg := DefaultConfig()
			cfg.EnableRewriteValueColumnFilters = allowExpressions
			return findCorrelation(owners, c, equiconditions, cfg, nil)
		}
	}
	return nil, false
}

func findCorrelation(owners *join.OwnerIndex, clause *join.JoinableClause, equiconditions Equiconditions, cfg Config, metrics *monitor.JoinMetrics) (map[string]*CorrelationAnalysis, bool) {
	result := make(map[string]*CorrelationAnalysis)
	for _, eq := range clause.Condition.Equalities {
		rhs := clause.Prefix + eq.RightColumn
		analysis, ok := result[rhs]
		if !ok {
			analysis = &CorrelationAnalysis{
				JoinColumn:  rhs,
				clause:      clause,
				maxSize:     cfg.FilterRewriteMaxSize,
				allowNonKey: cfg.EnableRewriteValueColumnFilters,
				metrics:     metrics,
			}
		}
		chase(owners, equiconditions, rhs, eq.Left, cfg.EnableRewriteValueColumnFilters, analysis)
		if analysis.SupportsPushDown() {
			sort.Strings(analysis.BaseColumns)
			sort.Slice(analysis.BaseExpressions, func(i, j int) bool {
				return analysis.BaseExpressions[i].String() < analysis.BaseExpressions[j].String()
			})
			result[rhs] = analysis
		}
	}
	if len(result) == 0 {
		return nil, false
	}
	return result, true
}

// chase walks the equality graph from start back to the base table. Bare base
// identifiers become base columns; identifiers owned by a clause are followed
// through that clause's own equalities; compound expressions are kept only
// when every binding is a base column.
func chase(owners *join.OwnerIndex, equiconditions Equiconditions, rhs string, start expr.Expr, allowExpressions bool, acc *CorrelationAnalysis) {
	visited := map[string]bool{rhs: true}
	stack := []expr.Expr{start}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if col, ok := e.BindingIfIdentifier(); ok {
			if owners.IsBaseColumn(col) {
				acc.addBaseColumn(col)
				continue
			}
			if visited[col] {
				continue
			}
			visited[col] = true
			stack = append(stack, equiconditions[col]...)
			continue
		}

		if !allowExpressions || owners.AreSomeColumnsFromJoin(e.RequiredBindings()) {
			continue
		}
		acc.addBaseExpression(e)
	}
}
