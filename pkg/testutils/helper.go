package testutils

import (
	"testing"
	"time"

	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/join/table"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/stretchr/testify/require"
)

// Epoch 测试数据的起始时间
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// JoinTestHelper 连接测试辅助器
// 提供快速创建基表段、索引表和连接子句的能力
type JoinTestHelper struct {
	t       *testing.T
	tables  join.MapJoinableFactory
	clauses []*join.JoinableClause
}

// NewJoinTestHelper 创建连接测试辅助器
func NewJoinTestHelper(t *testing.T) *JoinTestHelper {
	return &JoinTestHelper{t: t, tables: make(join.MapJoinableFactory)}
}

// Timed 为每行按秒递增填充 __time（从 Epoch 开始）
func Timed(rows ...domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		r := row.Clone()
		r[domain.TimeColumn] = Epoch.Add(time.Duration(i) * time.Second)
		out[i] = r
	}
	return out
}

// Base 创建内存基表段，维度从行数据推断
func (h *JoinTestHelper) Base(rows []domain.Row, metrics ...string) *segment.MemoryAdapter {
	h.t.Helper()
	a, err := segment.NewMemoryAdapter(rows, nil, metrics)
	require.NoError(h.t, err, "Failed to create base segment")
	return a
}

// Table 创建索引表并以 name 注册到工厂
func (h *JoinTestHelper) Table(name string, rows []domain.Row, keys ...string) *table.IndexedTable {
	h.t.Helper()
	tbl, err := table.New(rows, nil, keys)
	require.NoError(h.t, err, "Failed to create table %s", name)
	h.tables[name] = tbl
	return tbl
}

// Factory 返回已注册表的工厂
func (h *JoinTestHelper) Factory() join.JoinableFactory {
	return h.tables
}

// Join 追加一个连接子句
func (h *JoinTestHelper) Join(prefix, dataSource string, joinType domain.JoinType, condition string) *JoinTestHelper {
	h.t.Helper()
	clauses, err := join.CreateClauses([]join.ClauseSpec{{
		Prefix:     prefix,
		DataSource: dataSource,
		JoinType:   joinType,
		Condition:  condition,
	}}, h.tables)
	require.NoError(h.t, err, "Failed to create clause %s", prefix)
	h.clauses = append(h.clauses, clauses...)
	return h
}

// Clauses 返回已追加的连接子句
func (h *JoinTestHelper) Clauses() []*join.JoinableClause {
	return h.clauses
}

// Filter 解析过滤表达式，空串返回 nil
func (h *JoinTestHelper) Filter(text string) filter.Filter {
	h.t.Helper()
	if text == "" {
		return nil
	}
	f, err := filter.Parse(text)
	require.NoError(h.t, err, "Failed to parse filter %q", text)
	return f
}

// VirtualColumn 解析字符串类型的表达式虚拟列
func (h *JoinTestHelper) VirtualColumn(name, expression string) segment.VirtualColumn {
	h.t.Helper()
	vc, err := segment.ParseExpressionVirtualColumn(name, expression, domain.ValueTypeString)
	require.NoError(h.t, err, "Failed to parse virtual column %s", name)
	return vc
}

// Example: 快速创建一个连接测试环境
/*
func TestJoinQueries(t *testing.T) {
    h := testutils.NewJoinTestHelper(t)

    base := h.Base(testutils.Timed(
        domain.Row{"countryIsoCode": "US", "page": "Peremptory"},
        domain.Row{"countryIsoCode": "AU", "page": "Didgeridoo"},
    ))
    h.Table("countries", []domain.Row{
        {"isoCode": "US", "name": "United States"},
        {"isoCode": "AU", "name": "Australia"},
    }, "isoCode")
    h.Join("c.", "countries", domain.JoinTypeLeft, "countryIsoCode == c.isoCode")

    adapter, err := hashjoin.New(base, h.Clauses(), config.DefaultJoinConfig())
    // ...
}
*/
