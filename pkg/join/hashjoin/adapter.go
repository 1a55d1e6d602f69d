// Package hashjoin exposes a base segment joined with an ordered list of
// clauses as a single storage adapter.
package hashjoin

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jon-wei/druid-sub000/pkg/config"
	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/join/joinfilter"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
)

const joinSegmentName = "join segment"

// Option 配置 HashJoinStorageAdapter 的选项函数
type Option func(*options)

type options struct {
	logger   log.Logger
	metrics  *monitor.JoinMetrics
	queryID  string
	analyzer *joinfilter.Analyzer
}

func defaultOptions() options {
	return options{logger: log.NewNopLogger()}
}

// WithLogger 设置日志
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics 设置指标
func WithMetrics(m *monitor.JoinMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithQueryID 设置查询 ID，未设置时随机生成
func WithQueryID(id string) Option {
	return func(o *options) { o.queryID = id }
}

// FilterConfig converts join settings to the filter analyzer's settings.
func FilterConfig(cfg config.JoinConfig) joinfilter.Config {
	return joinfilter.Config{
		EnableFilterPushDown:            cfg.EnableFilterPushDown,
		EnableFilterRewrite:             cfg.EnableFilterRewrite,
		EnableRewriteValueColumnFilters: cfg.EnableRewriteValueColumnFilters,
		FilterRewriteMaxSize:            cfg.FilterRewriteMaxSize,
		MaxCNFClauses:                   cfg.MaxCNFClauses,
	}
}

// HashJoinStorageAdapter joins every row of a base segment with the clauses
// in order. Columns of a clause are addressed with its prefix; every other
// column belongs to the base segment.
type HashJoinStorageAdapter struct {
	base     segment.StorageAdapter
	clauses  []*join.JoinableClause
	analyzer *joinfilter.Analyzer
	logger   log.Logger
	metrics  *monitor.JoinMetrics
	queryID  string
}

// New validates the clauses and creates the adapter. Invalid prefixes, an
// unusable config or a joinable that cannot build a matcher for its
// condition fail here rather than during iteration.
func New(base segment.StorageAdapter, clauses []*join.JoinableClause, cfg config.JoinConfig, opts ...Option) (*HashJoinStorageAdapter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validate(clauses, cfg); err != nil {
		return nil, err
	}
	if o.analyzer == nil {
		o.analyzer = newAnalyzer(clauses, cfg, o)
	}
	a := newAdapter(base, clauses, o)
	logClauses(a.logger, clauses)
	return a, nil
}

// logClauses reports at debug level how each clause will be joined.
func logClauses(logger log.Logger, clauses []*join.JoinableClause) {
	for _, c := range clauses {
		level.Debug(logger).Log(
			"msg", "join clause",
			"prefix", c.Prefix,
			"join_type", c.JoinType.String(),
			"hash_join", c.Condition.CanHashJoin(),
			"cross_join", c.Condition.IsAlwaysTrue(),
			"condition", c.Condition.String(),
		)
	}
}

func validate(clauses []*join.JoinableClause, cfg config.JoinConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := join.ValidateClauses(clauses); err != nil {
		return err
	}
	for _, c := range clauses {
		if _, err := c.Joinable.MakeJoinMatcher(c.Condition.RightEquiColumns()); err != nil {
			return errors.Wrapf(err, "clause [%s]", c.Prefix)
		}
	}
	return nil
}

func newAnalyzer(clauses []*join.JoinableClause, cfg config.JoinConfig, o options) *joinfilter.Analyzer {
	return joinfilter.NewAnalyzer(clauses, FilterConfig(cfg),
		joinfilter.WithLogger(o.logger),
		joinfilter.WithMetrics(o.metrics),
	)
}

func newAdapter(base segment.StorageAdapter, clauses []*join.JoinableClause, o options) *HashJoinStorageAdapter {
	if o.queryID == "" {
		o.queryID = uuid.NewString()
	}
	return &HashJoinStorageAdapter{
		base:     base,
		clauses:  clauses,
		analyzer: o.analyzer,
		logger:   log.With(o.logger, "query_id", o.queryID),
		metrics:  o.metrics,
		queryID:  o.queryID,
	}
}

// Base returns the wrapped base segment.
func (a *HashJoinStorageAdapter) Base() segment.StorageAdapter { return a.base }

// Clauses returns the join clauses in join order.
func (a *HashJoinStorageAdapter) Clauses() []*join.JoinableClause { return slices.Clone(a.clauses) }

// QueryID returns the id attached to the adapter's log lines.
func (a *HashJoinStorageAdapter) QueryID() string { return a.queryID }

func (a *HashJoinStorageAdapter) Interval() segment.Interval { return a.base.Interval() }

// AvailableDimensions lists base dimensions followed by every clause's
// prefixed columns, without duplicates and in that order.
func (a *HashJoinStorageAdapter) AvailableDimensions() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(columns []string) {
		for _, c := range columns {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	add(a.base.AvailableDimensions())
	for _, c := range a.clauses {
		add(c.AvailableColumns())
	}
	return out
}

func (a *HashJoinStorageAdapter) AvailableMetrics() []string { return a.base.AvailableMetrics() }

// IsBaseColumn reports whether no clause claims column.
func (a *HashJoinStorageAdapter) IsBaseColumn(column string) bool {
	return a.analyzer.Owners().IsBaseColumn(column)
}

func (a *HashJoinStorageAdapter) ColumnCapabilities(column string) *domain.ColumnCapabilities {
	if owner := a.analyzer.Owners().Owner(column); owner != nil {
		return owner.Joinable.ColumnCapabilities(owner.UnprefixColumn(column))
	}
	return a.base.ColumnCapabilities(column)
}

// ColumnType returns the value type of column, or "" if it is unknown.
func (a *HashJoinStorageAdapter) ColumnType(column string) domain.ValueType {
	caps := a.ColumnCapabilities(column)
	if caps == nil {
		return ""
	}
	return caps.Type
}

func (a *HashJoinStorageAdapter) DimensionCardinality(column string) int {
	if owner := a.analyzer.Owners().Owner(column); owner != nil {
		return owner.Joinable.Cardinality(owner.UnprefixColumn(column))
	}
	return a.base.DimensionCardinality(column)
}

// MinValue 连接列没有可用的最小值
func (a *HashJoinStorageAdapter) MinValue(column string) interface{} {
	if !a.IsBaseColumn(column) {
		return nil
	}
	return a.base.MinValue(column)
}

// MaxValue 连接列没有可用的最大值
func (a *HashJoinStorageAdapter) MaxValue(column string) interface{} {
	if !a.IsBaseColumn(column) {
		return nil
	}
	return a.base.MaxValue(column)
}

func (a *HashJoinStorageAdapter) NumRows() (int, error) {
	return 0, domain.NewErrUnsupportedOperation(joinSegmentName, "number of rows")
}

func (a *HashJoinStorageAdapter) Metadata() (*segment.Metadata, error) {
	return nil, domain.NewErrUnsupportedOperation(joinSegmentName, "metadata")
}

func (a *HashJoinStorageAdapter) Capabilities() segment.Capabilities {
	return segment.Capabilities{DimensionValuesSorted: false}
}

// Split returns the filter split MakeCursors would use for spec.
func (a *HashJoinStorageAdapter) Split(spec segment.CursorSpec) (*joinfilter.PreAnalysis, *joinfilter.FilterSplit) {
	pre := a.analyzer.PreAnalyze(spec.Filter, spec.VirtualColumns)
	return pre, pre.Split()
}

// MakeCursors reads base cursors with the pushed-down part of the filter,
// joins them through every clause in order and applies the rest of the
// filter to the joined rows.
func (a *HashJoinStorageAdapter) MakeCursors(spec segment.CursorSpec) segment.CursorSequence {
	pre, split := a.Split(spec)

	level.Debug(a.logger).Log(
		"msg", "join filter split",
		"base_filter", filterString(split.BaseFilter),
		"join_filter", filterString(split.JoinFilter),
		"push_down_virtual_columns", len(split.PushDownVirtualColumns),
		"post_join_virtual_columns", len(pre.PostJoinVirtualColumns),
	)

	baseVCs := slices.Concat(pre.PreJoinVirtualColumns, split.PushDownVirtualColumns)
	baseSpec := segment.CursorSpec{
		Filter:         split.BaseFilter,
		Interval:       spec.Interval,
		VirtualColumns: baseVCs,
		Granularity:    spec.Granularity,
		Descending:     spec.Descending,
	}

	return func(yield func(segment.Cursor) bool) {
		for base := range a.base.MakeCursors(baseSpec) {
			cursor := base
			for _, clause := range a.clauses {
				next, err := join.MakeJoinCursor(cursor, clause, a.metrics)
				if err != nil {
					panic(errors.AssertionFailedf("join matcher for clause [%s]: %v", clause.Prefix, err))
				}
				cursor = next
			}
			a.metrics.RecordCursor()
			if !yield(join.WrapPostJoin(cursor, pre.PostJoinVirtualColumns, split.JoinFilter)) {
				return
			}
		}
	}
}

func filterString(f filter.Filter) string {
	if f == nil {
		return "none"
	}
	return f.String()
}
