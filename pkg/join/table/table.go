package table

import (
	"slices"
	"sort"

	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// IndexedTable 内存表 Joinable，每个键列维护一个哈希索引
type IndexedTable struct {
	columns    []string
	keyColumns []string
	rows       []domain.Row
	indexes    map[string]map[string][]int
}

var _ join.Joinable = (*IndexedTable)(nil)

// New 创建索引表。columns 为 nil 时从行数据推断（排序）
func New(rows []domain.Row, columns, keyColumns []string) (*IndexedTable, error) {
	if columns == nil {
		seen := make(map[string]bool)
		for _, row := range rows {
			for k := range row {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
		slices.Sort(columns)
	}

	t := &IndexedTable{
		columns:    slices.Clone(columns),
		keyColumns: slices.Clone(keyColumns),
		rows:       rows,
		indexes:    make(map[string]map[string][]int, len(keyColumns)),
	}
	for _, key := range keyColumns {
		if !slices.Contains(columns, key) {
			return nil, domain.NewErrColumnNotFound(key, "indexed table")
		}
		index := make(map[string][]int)
		for i, row := range rows {
			v := row[key]
			if v == nil {
				continue
			}
			s := utils.ToString(v)
			index[s] = append(index[s], i)
		}
		t.indexes[key] = index
	}
	return t, nil
}

// NumRows 行数
func (t *IndexedTable) NumRows() int { return len(t.rows) }

// KeyColumns 键列
func (t *IndexedTable) KeyColumns() []string { return slices.Clone(t.keyColumns) }

func (t *IndexedTable) AvailableColumns() []string { return slices.Clone(t.columns) }

// Cardinality 键列返回不同值个数，其它列未知
func (t *IndexedTable) Cardinality(column string) int {
	if index, ok := t.indexes[column]; ok {
		return len(index)
	}
	return domain.CardinalityUnknown
}

func (t *IndexedTable) ColumnCapabilities(column string) *domain.ColumnCapabilities {
	if !slices.Contains(t.columns, column) {
		return nil
	}
	caps := &domain.ColumnCapabilities{Type: domain.ValueTypeString}
	for _, row := range t.rows {
		if v := row[column]; v != nil {
			caps.Type = domain.InferValueType(v)
			break
		}
	}
	_, caps.HasBitmapIndexes = t.indexes[column]
	return caps
}

// MakeJoinMatcher probes the first indexed key column and checks the rest by
// value. Without any indexed column every probe scans the table.
func (t *IndexedTable) MakeJoinMatcher(keyColumns []string) (join.JoinMatcher, error) {
	for _, col := range keyColumns {
		if !slices.Contains(t.columns, col) {
			return nil, domain.NewErrColumnNotFound(col, "indexed table")
		}
	}
	m := &matcher{table: t, keyColumns: keyColumns, probe: -1}
	for i, col := range keyColumns {
		if _, ok := t.indexes[col]; ok {
			m.probe = i
			break
		}
	}
	return m, nil
}

// CorrelatedColumnValues 返回 searchColumn = searchValue 的行中 retrievalColumn 的不同值
func (t *IndexedTable) CorrelatedColumnValues(searchColumn, searchValue, retrievalColumn string, maxSize int64, allowNonKeyColumnSearch bool) ([]string, bool) {
	if !slices.Contains(t.columns, searchColumn) || !slices.Contains(t.columns, retrievalColumn) {
		return nil, false
	}

	var candidates []int
	if index, ok := t.indexes[searchColumn]; ok {
		candidates = index[searchValue]
	} else {
		if !allowNonKeyColumnSearch {
			return nil, false
		}
		for i, row := range t.rows {
			if v := row[searchColumn]; v != nil && utils.ToString(v) == searchValue {
				candidates = append(candidates, i)
			}
		}
	}

	seen := make(map[string]bool)
	values := make([]string, 0)
	for _, i := range candidates {
		v := t.rows[i][retrievalColumn]
		if v == nil {
			continue
		}
		s := utils.ToString(v)
		if seen[s] {
			continue
		}
		if int64(len(values)) >= maxSize {
			return nil, false
		}
		seen[s] = true
		values = append(values, s)
	}
	sort.Strings(values)
	return values, true
}

type matcher struct {
	table      *IndexedTable
	keyColumns []string
	probe      int
	matches    []int
	pos        int
}

func (m *matcher) Match(keys []interface{}) {
	m.matches, m.pos = m.matches[:0], 0
	if len(keys) != len(m.keyColumns) || slices.Contains(keys, nil) {
		return
	}

	if m.probe >= 0 {
		index := m.table.indexes[m.keyColumns[m.probe]]
		for _, i := range index[utils.ToString(keys[m.probe])] {
			if m.rowMatches(i, keys) {
				m.matches = append(m.matches, i)
			}
		}
		return
	}
	for i := range m.table.rows {
		if m.rowMatches(i, keys) {
			m.matches = append(m.matches, i)
		}
	}
}

func (m *matcher) rowMatches(i int, keys []interface{}) bool {
	row := m.table.rows[i]
	for j, col := range m.keyColumns {
		v := row[col]
		if v == nil || !utils.ValuesEqual(v, keys[j]) {
			return false
		}
	}
	return true
}

func (m *matcher) MatchAll() {
	m.matches, m.pos = m.matches[:0], 0
	for i := range m.table.rows {
		m.matches = append(m.matches, i)
	}
}

func (m *matcher) HasMatch() bool { return m.pos < len(m.matches) }

func (m *matcher) NextMatch() { m.pos++ }

func (m *matcher) Get(column string) interface{} {
	if !m.HasMatch() {
		return nil
	}
	return m.table.rows[m.matches[m.pos]][column]
}
