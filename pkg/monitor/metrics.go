package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Abandonment reasons for a join filter rewrite.
const (
	ReasonNoCorrelation = "no_correlation"
	ReasonNoValues      = "no_values"
	ReasonShape         = "shape"
	ReasonMatchesNull   = "matches_null"
	ReasonDisabled      = "disabled"
)

// JoinMetrics 连接执行的 Prometheus 指标，nil 接收者不记录任何内容
type JoinMetrics struct {
	PreAnalyses       prometheus.Counter
	CorrelatedLookups prometheus.Counter
	Rewrites          prometheus.Counter
	Abandoned         *prometheus.CounterVec
	Cursors           prometheus.Counter
	JoinedRows        *prometheus.CounterVec
}

// NewJoinMetrics 创建并注册指标
func NewJoinMetrics(reg prometheus.Registerer) *JoinMetrics {
	preAnalyses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "joinexec_preanalysis_total",
		Help: "Join filter pre-analyses computed",
	})

	correlatedLookups := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "joinexec_correlated_value_lookups_total",
		Help: "Correlated value sets fetched from joinables",
	})

	rewrites := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "joinexec_filter_rewrites_total",
		Help: "Join-table filter clauses rewritten onto base-table columns",
	})

	abandoned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "joinexec_filter_rewrite_abandoned_total",
		Help: "Join-table filter clauses left post-join, by reason",
	}, []string{"reason"})

	cursors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "joinexec_cursors_total",
		Help: "Join cursors created",
	})

	joinedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "joinexec_joined_rows_total",
		Help: "Rows emitted by join stages, by join type",
	}, []string{"join_type"})

	reg.MustRegister(preAnalyses, correlatedLookups, rewrites, abandoned, cursors, joinedRows)

	return &JoinMetrics{
		PreAnalyses:       preAnalyses,
		CorrelatedLookups: correlatedLookups,
		Rewrites:          rewrites,
		Abandoned:         abandoned,
		Cursors:           cursors,
		JoinedRows:        joinedRows,
	}
}

// RecordPreAnalysis 记录一次预分析计算
func (m *JoinMetrics) RecordPreAnalysis() {
	if m == nil {
		return
	}
	m.PreAnalyses.Inc()
}

// RecordCorrelatedLookup 记录一次相关值查询
func (m *JoinMetrics) RecordCorrelatedLookup() {
	if m == nil {
		return
	}
	m.CorrelatedLookups.Inc()
}

// RecordRewrite 记录一次成功的过滤器改写
func (m *JoinMetrics) RecordRewrite() {
	if m == nil {
		return
	}
	m.Rewrites.Inc()
}

// RecordAbandoned 记录一次放弃的改写
func (m *JoinMetrics) RecordAbandoned(reason string) {
	if m == nil {
		return
	}
	m.Abandoned.WithLabelValues(reason).Inc()
}

// RecordCursor 记录一个连接游标
func (m *JoinMetrics) RecordCursor() {
	if m == nil {
		return
	}
	m.Cursors.Inc()
}

// RecordJoinedRow 记录连接阶段输出的一行
func (m *JoinMetrics) RecordJoinedRow(joinType string) {
	if m == nil {
		return
	}
	m.JoinedRows.WithLabelValues(joinType).Inc()
}
