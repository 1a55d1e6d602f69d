// Package joinfilter splits a query filter across a join: which clauses can
// run against the base table before the join, rewritten where possible, and
// which must be evaluated on joined rows.
package joinfilter

import (
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// Config controls push-down and rewrite of join filters.
type Config struct {
	EnableFilterPushDown bool
	EnableFilterRewrite  bool
	// EnableRewriteValueColumnFilters allows correlated-value searches on
	// non-key columns and rewrites through base-table expressions.
	EnableRewriteValueColumnFilters bool
	// FilterRewriteMaxSize bounds the size of a rewritten IN set.
	FilterRewriteMaxSize int64
	MaxCNFClauses        int
}

// DefaultConfig returns the default join filter settings.
func DefaultConfig() Config {
	return Config{
		EnableFilterPushDown:            true,
		EnableFilterRewrite:             true,
		EnableRewriteValueColumnFilters: false,
		FilterRewriteMaxSize:            10000,
		MaxCNFClauses:                   filter.DefaultMaxCNFClauses,
	}
}

// Analyzer builds and caches pre-analyses for one ordered list of clauses.
// It is safe for concurrent use; every cache computes each key at most once.
type Analyzer struct {
	clauses        []*join.JoinableClause
	owners         *join.OwnerIndex
	equiconditions Equiconditions
	config         Config
	logger         log.Logger
	metrics        *monitor.JoinMetrics

	correlations Memo[*prefixCorrelations]
	preAnalyses  Memo[*PreAnalysis]
}

type prefixCorrelations struct {
	byColumn map[string]*CorrelationAnalysis
	ok       bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer's logger.
func WithLogger(logger log.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithMetrics sets the analyzer's metrics.
func WithMetrics(m *monitor.JoinMetrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// NewAnalyzer creates an analyzer over clauses in join order.
func NewAnalyzer(clauses []*join.JoinableClause, cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		clauses:        clauses,
		owners:         join.NewOwnerIndex(clauses),
		equiconditions: BuildEquiconditions(clauses),
		config:         cfg,
		logger:         log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Owners returns the column owner index of the analyzer's clauses.
func (a *Analyzer) Owners() *join.OwnerIndex { return a.owners }

// Config returns the analyzer's settings.
func (a *Analyzer) Config() Config { return a.config }

// Correlations returns the memoized correlation analysis of the clause at
// prefix, keyed by prefixed right-hand join column.
func (a *Analyzer) Correlations(prefix string) (map[string]*CorrelationAnalysis, bool) {
	pc := a.correlations.Get(prefix, func() *prefixCorrelations {
		for _, c := range a.clauses {
			if c.Prefix == prefix {
				byColumn, ok := findCorrelation(a.owners, c, a.equiconditions, a.config, a.metrics)
				return &prefixCorrelations{byColumn: byColumn, ok: ok}
			}
		}
		return &prefixCorrelations{}
	})
	return pc.byColumn, pc.ok
}

// CorrelationComputations returns how many per-prefix correlation analyses
// were computed.
func (a *Analyzer) CorrelationComputations() int64 {
	return a.correlations.Computations()
}

// PreAnalysisComputations returns how many pre-analyses were computed.
func (a *Analyzer) PreAnalysisComputations() int64 {
	return a.preAnalyses.Computations()
}

// SplitVirtualColumns partitions virtual columns into those computable from
// the base table and those that need joined columns. A virtual column reading
// a post-join virtual column is itself post-join.
func (a *Analyzer) SplitVirtualColumns(vcs segment.VirtualColumns) (pre, post segment.VirtualColumns) {
	postNames := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, vc := range vcs {
			if postNames[vc.OutputName()] {
				continue
			}
			for _, col := range vc.RequiredColumns() {
				if postNames[col] || !a.owners.IsBaseColumn(col) {
					postNames[vc.OutputName()] = true
					changed = true
					break
				}
			}
		}
	}
	for _, vc := range vcs {
		if postNames[vc.OutputName()] {
			post = append(post, vc)
		} else {
			pre = append(pre, vc)
		}
	}
	return pre, post
}

// PreAnalyze returns the memoized pre-analysis of f under vcs.
func (a *Analyzer) PreAnalyze(f filter.Filter, vcs segment.VirtualColumns) *PreAnalysis {
	return a.preAnalyses.Get(preAnalysisKey(f, vcs), func() *PreAnalysis {
		return a.buildPreAnalysis(f, vcs)
	})
}

func preAnalysisKey(f filter.Filter, vcs segment.VirtualColumns) string {
	var sb strings.Builder
	if f != nil {
		sb.WriteString(f.String())
	}
	for _, vc := range vcs {
		sb.WriteString("\x00")
		sb.WriteString(vc.String())
	}
	return sb.String()
}

func (a *Analyzer) buildPreAnalysis(f filter.Filter, vcs segment.VirtualColumns) *PreAnalysis {
	a.metrics.RecordPreAnalysis()

	pre, post := a.SplitVirtualColumns(vcs)
	p := &PreAnalysis{
		OriginalFilter:         f,
		PreJoinVirtualColumns:  pre,
		PostJoinVirtualColumns: post,
		PushDownEnabled:        a.config.EnableFilterPushDown,
		RewriteEnabled:         a.config.EnableFilterRewrite,
		analyzer:               a,
	}
	if f == nil || !p.PushDownEnabled {
		return p
	}

	postNames := make(map[string]bool, len(post))
	for _, vc := range post {
		postNames[vc.OutputName()] = true
	}

	for _, clause := range filter.Clauses(filter.ToCNFWithLimit(f, a.config.MaxCNFClauses)) {
		if a.touchesJoin(clause, postNames) {
			p.NormalizedJoinClauses = append(p.NormalizedJoinClauses, clause)
		} else {
			p.NormalizedBaseClauses = append(p.NormalizedBaseClauses, clause)
		}
	}
	if !p.RewriteEnabled {
		return p
	}

	p.CorrelationsByColumn = make(map[string][]*CorrelationAnalysis)
	for _, clause := range p.NormalizedJoinClauses {
		for _, sel := range rewriteCandidates(clause) {
			owner := a.owners.Owner(sel.Column)
			if owner == nil || postNames[sel.Column] {
				continue
			}
			correlations, ok := p.CorrelationsByColumn[sel.Column]
			if !ok {
				correlations = a.correlationsFor(owner.Prefix)
				p.CorrelationsByColumn[sel.Column] = correlations
			}
			for _, c := range correlations {
				c.CorrelatedValues(sel.Column, utils.ToString(sel.Value))
			}
		}
	}

	level.Debug(a.logger).Log(
		"msg", "join filter pre-analysis",
		"filter", f.String(),
		"base_clauses", len(p.NormalizedBaseClauses),
		"join_clauses", len(p.NormalizedJoinClauses),
	)
	return p
}

func (a *Analyzer) correlationsFor(prefix string) []*CorrelationAnalysis {
	byColumn, ok := a.Correlations(prefix)
	if !ok {
		return nil
	}
	out := make([]*CorrelationAnalysis, 0, len(byColumn))
	for _, eq := range a.clauseAt(prefix).Condition.Equalities {
		if c, ok := byColumn[prefix+eq.RightColumn]; ok && !containsAnalysis(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func (a *Analyzer) clauseAt(prefix string) *join.JoinableClause {
	for _, c := range a.clauses {
		if c.Prefix == prefix {
			return c
		}
	}
	return nil
}

func containsAnalysis(list []*CorrelationAnalysis, c *CorrelationAnalysis) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func (a *Analyzer) touchesJoin(f filter.Filter, postNames map[string]bool) bool {
	for _, col := range f.RequiredColumns() {
		if postNames[col] || !a.owners.IsBaseColumn(col) {
			return true
		}
	}
	return false
}

// rewriteCandidates returns the non-null selectors of a clause that is a
// selector or an OR of selectors.
func rewriteCandidates(f filter.Filter) []*filter.SelectorFilter {
	switch x := f.(type) {
	case *filter.SelectorFilter:
		if x.Value != nil {
			return []*filter.SelectorFilter{x}
		}
	case *filter.OrFilter:
		var out []*filter.SelectorFilter
		for _, child := range x.Filters {
			if sel, ok := child.(*filter.SelectorFilter); ok && sel.Value != nil {
				out = append(out, sel)
			}
		}
		return out
	}
	return nil
}

// PreAnalysis is the per-query result of classifying a filter's CNF clauses
// and resolving the correlations needed to rewrite them. It is immutable once
// built and shared by every cursor of the query.
type PreAnalysis struct {
	OriginalFilter         filter.Filter
	NormalizedBaseClauses  []filter.Filter
	NormalizedJoinClauses  []filter.Filter
	CorrelationsByColumn   map[string][]*CorrelationAnalysis
	PreJoinVirtualColumns  segment.VirtualColumns
	PostJoinVirtualColumns segment.VirtualColumns
	PushDownEnabled        bool
	RewriteEnabled         bool

	analyzer *Analyzer
}

// BuildPreAnalysis analyzes f against clauses without caching across calls.
func BuildPreAnalysis(clauses []*join.JoinableClause, vcs segment.VirtualColumns, f filter.Filter, cfg Config) *PreAnalysis {
	return NewAnalyzer(clauses, cfg).PreAnalyze(f, vcs)
}
