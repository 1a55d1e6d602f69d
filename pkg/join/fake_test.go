package join

import (
	"slices"

	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/utils"
)

// fakeJoinable is a scan-only joinable used to exercise cursors without
// depending on the table package.
type fakeJoinable struct {
	columns []string
	rows    []domain.Row
}

func (f *fakeJoinable) AvailableColumns() []string { return f.columns }

func (f *fakeJoinable) Cardinality(string) int { return domain.CardinalityUnknown }

func (f *fakeJoinable) ColumnCapabilities(column string) *domain.ColumnCapabilities {
	if !slices.Contains(f.columns, column) {
		return nil
	}
	return &domain.ColumnCapabilities{Type: domain.ValueTypeString}
}

func (f *fakeJoinable) MakeJoinMatcher(keyColumns []string) (JoinMatcher, error) {
	return &fakeMatcher{rows: f.rows, keyColumns: keyColumns}, nil
}

func (f *fakeJoinable) CorrelatedColumnValues(string, string, string, int64, bool) ([]string, bool) {
	return nil, false
}

type fakeMatcher struct {
	rows       []domain.Row
	keyColumns []string
	matches    []int
	pos        int
}

func (m *fakeMatcher) Match(keys []interface{}) {
	m.matches, m.pos = m.matches[:0], 0
	if keys == nil {
		return
	}
	for i, row := range m.rows {
		ok := true
		for j, col := range m.keyColumns {
			if keys[j] == nil || !utils.ValuesEqual(row[col], keys[j]) {
				ok = false
				break
			}
		}
		if ok {
			m.matches = append(m.matches, i)
		}
	}
}

func (m *fakeMatcher) MatchAll() {
	m.matches, m.pos = m.matches[:0], 0
	for i := range m.rows {
		m.matches = append(m.matches, i)
	}
}

func (m *fakeMatcher) HasMatch() bool { return m.pos < len(m.matches) }

func (m *fakeMatcher) NextMatch() { m.pos++ }

func (m *fakeMatcher) Get(column string) interface{} {
	if !m.HasMatch() {
		return nil
	}
	return m.rows[m.matches[m.pos]][column]
}
