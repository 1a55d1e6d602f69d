package joinfilter

import (
	"strconv"

	"github.com/go-kit/log/level"
	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// PushDownVirtualColumnPrefix names the virtual columns created to push a
// rewritten filter through a correlated base-table expression.
const PushDownVirtualColumnPrefix = "JOIN-FILTER-PUSHDOWN-VIRTUAL-COLUMN-"

// FilterSplit is the per-cursor division of a filter across the join.
// BaseFilter is a sound pre-filter on base rows; JoinFilter must still be
// applied to joined rows. Either may be nil.
type FilterSplit struct {
	BaseFilter             filter.Filter
	JoinFilter             filter.Filter
	PushDownVirtualColumns segment.VirtualColumns
}

// Split divides the pre-analyzed filter. Base-only clauses are pushed down
// unless they match a null row. Join clauses always stay post-join; a
// selector, or an OR of selectors, is additionally pushed down as IN filters
// over correlated base columns when every part rewrites.
func (p *PreAnalysis) Split() *FilterSplit {
	if p.OriginalFilter == nil || !p.PushDownEnabled {
		return &FilterSplit{JoinFilter: p.OriginalFilter}
	}

	s := &splitter{p: p, exprColumns: make(map[string]string)}
	var left, right []filter.Filter
	for _, clause := range p.NormalizedBaseClauses {
		if filter.MatchesNull(clause) {
			right = append(right, clause)
			continue
		}
		left = append(left, clause)
	}
	for _, clause := range p.NormalizedJoinClauses {
		if pushed := s.analyze(clause); pushed != nil {
			left = append(left, pushed)
		}
		right = append(right, clause)
	}

	return &FilterSplit{
		BaseFilter:             filter.And(left...),
		JoinFilter:             filter.And(right...),
		PushDownVirtualColumns: s.vcs,
	}
}

type splitter struct {
	p           *PreAnalysis
	vcs         segment.VirtualColumns
	exprColumns map[string]string
}

// analyze returns the push-down form of a join clause, or nil.
func (s *splitter) analyze(clause filter.Filter) filter.Filter {
	var (
		pushed filter.Filter
		reason string
	)
	switch {
	case !s.p.RewriteEnabled:
		reason = monitor.ReasonDisabled
	case filter.MatchesNull(clause):
		reason = monitor.ReasonMatchesNull
	default:
		mark := len(s.vcs)
		switch x := clause.(type) {
		case *filter.SelectorFilter:
			pushed, reason = s.rewriteSelector(x)
		case *filter.OrFilter:
			pushed, reason = s.rewriteOr(x)
		default:
			reason = monitor.ReasonShape
		}
		if pushed == nil {
			s.rollback(mark)
		}
	}

	a := s.p.analyzer
	if pushed == nil {
		a.metrics.RecordAbandoned(reason)
		level.Debug(a.logger).Log("msg", "join filter clause not pushed down", "clause", clause.String(), "reason", reason)
		return nil
	}
	a.metrics.RecordRewrite()
	return pushed
}

// rewriteOr rewrites every branch or nothing.
func (s *splitter) rewriteOr(or *filter.OrFilter) (filter.Filter, string) {
	branches := make([]filter.Filter, 0, len(or.Filters))
	for _, child := range or.Filters {
		sel, ok := child.(*filter.SelectorFilter)
		if !ok {
			return nil, monitor.ReasonShape
		}
		rewritten, reason := s.rewriteSelector(sel)
		if rewritten == nil {
			return nil, reason
		}
		branches = append(branches, rewritten)
	}
	return filter.Or(branches...), ""
}

func (s *splitter) rewriteSelector(sel *filter.SelectorFilter) (filter.Filter, string) {
	correlations := s.p.CorrelationsByColumn[sel.Column]
	if len(correlations) == 0 {
		return nil, monitor.ReasonNoCorrelation
	}

	value := utils.ToString(sel.Value)
	var parts []filter.Filter
	for _, c := range correlations {
		values, ok := c.CorrelatedValues(sel.Column, value)
		if !ok {
			return nil, monitor.ReasonNoValues
		}
		for _, col := range c.BaseColumns {
			parts = append(parts, filter.In(col, values))
		}
		for _, e := range c.BaseExpressions {
			parts = append(parts, filter.In(s.virtualColumnFor(e), values))
		}
	}
	if len(parts) == 0 {
		return nil, monitor.ReasonNoCorrelation
	}
	return filter.And(parts...), ""
}

// virtualColumnFor returns the push-down virtual column computing e,
// creating it on first use within this split.
func (s *splitter) virtualColumnFor(e expr.Expr) string {
	key := e.String()
	if name, ok := s.exprColumns[key]; ok {
		return name
	}
	name := PushDownVirtualColumnPrefix + strconv.Itoa(len(s.vcs))
	s.vcs = append(s.vcs, segment.NewExpressionVirtualColumn(name, e, domain.ValueTypeString))
	s.exprColumns[key] = name
	return name
}

// rollback drops virtual columns created after mark by an abandoned rewrite.
func (s *splitter) rollback(mark int) {
	for _, vc := range s.vcs[mark:] {
		ev := vc.(*segment.ExpressionVirtualColumn)
		delete(s.exprColumns, ev.Expression.String())
	}
	s.vcs = s.vcs[:mark]
}
