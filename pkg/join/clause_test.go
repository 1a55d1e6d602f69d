package join

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jon-wei/druid-sub000/pkg/expr"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		wantErr bool
	}{
		{"j.", false},
		{"", true},
		{"__time", true},
		{"__t", true},
		{"_", true},
		{"__time.", false},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			err := ValidatePrefix(tt.prefix)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var target *domain.ErrInvalidPrefix
			assert.True(t, errors.As(err, &target))
			assert.True(t, domain.IsConfigurationError(err))
		})
	}
}

func TestCheckPrefixesForDuplicatesAndShadowing(t *testing.T) {
	err := CheckPrefixesForDuplicatesAndShadowing([]string{"j.", "j.sub."})
	var conflict *domain.ErrConflictingPrefix
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "j.", conflict.Prefix)
	assert.Equal(t, "j.sub.", conflict.Shadows)

	err = CheckPrefixesForDuplicatesAndShadowing([]string{"j.sub.", "j."})
	assert.True(t, errors.As(err, &conflict))

	err = CheckPrefixesForDuplicatesAndShadowing([]string{"j.", "j."})
	var dup *domain.ErrDuplicatePrefix
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "j.", dup.Prefix)

	assert.NoError(t, CheckPrefixesForDuplicatesAndShadowing([]string{"a.", "b.", "ab."}))
	assert.NoError(t, CheckPrefixesForDuplicatesAndShadowing(nil))
}

func TestIsPrefixedBy(t *testing.T) {
	assert.True(t, IsPrefixedBy("j.k", "j."))
	assert.False(t, IsPrefixedBy("j.", "j."))
	assert.False(t, IsPrefixedBy("x", "j."))
}

func TestNewJoinableClause(t *testing.T) {
	j := &fakeJoinable{columns: []string{"k", "v"}}
	cond := NewEquiCondition("j.", Equality{Left: expr.Ident("x"), RightColumn: "k"})

	clause, err := NewJoinableClause("j.", domain.JoinTypeInner, cond, j)
	require.NoError(t, err)
	assert.Equal(t, []string{"j.k", "j.v"}, clause.AvailableColumns())
	assert.True(t, clause.IncludesColumn("j.v"))
	assert.False(t, clause.IncludesColumn("x"))
	assert.Equal(t, "v", clause.UnprefixColumn("j.v"))
	assert.Equal(t, "x", clause.UnprefixColumn("x"))

	_, err = NewJoinableClause("__time", domain.JoinTypeInner, cond, j)
	assert.Error(t, err)
	_, err = NewJoinableClause("j.", "FULL", cond, j)
	assert.Error(t, err)
	_, err = NewJoinableClause("k.", domain.JoinTypeInner, cond, j)
	assert.Error(t, err)
	_, err = NewJoinableClause("j.", domain.JoinTypeInner, cond, nil)
	assert.Error(t, err)
}

func TestValidateClauses(t *testing.T) {
	clause := func(prefix string) *JoinableClause {
		return &JoinableClause{Prefix: prefix, JoinType: domain.JoinTypeInner, Joinable: &fakeJoinable{}}
	}

	assert.NoError(t, ValidateClauses([]*JoinableClause{clause("a."), clause("b.")}))

	for _, prefix := range []string{"", "__time", "__"} {
		err := ValidateClauses([]*JoinableClause{clause("a."), clause(prefix)})
		var invalid *domain.ErrInvalidPrefix
		assert.True(t, errors.As(err, &invalid), "prefix %q", prefix)
	}

	err := ValidateClauses([]*JoinableClause{clause("a."), clause("a.")})
	var dup *domain.ErrDuplicatePrefix
	assert.True(t, errors.As(err, &dup))
}

func TestCreateClauses(t *testing.T) {
	factory := MapJoinableFactory{
		"countries": &fakeJoinable{columns: []string{"code", "name"}},
		"regions":   &fakeJoinable{columns: []string{"id"}},
	}

	clauses, err := CreateClauses([]ClauseSpec{
		{Prefix: "c.", DataSource: "countries", JoinType: domain.JoinTypeLeft, Condition: "countryCode == c.code"},
		{Prefix: "r.", DataSource: "regions", JoinType: domain.JoinTypeInner, Condition: "c.name == r.id"},
	}, factory)
	require.NoError(t, err)
	require.Len(t, clauses, 2)
	assert.Equal(t, []string{"code"}, clauses[0].Condition.RightEquiColumns())
	assert.Equal(t, "c.name", clauses[1].Condition.Equalities[0].Left.String())

	_, err = CreateClauses([]ClauseSpec{
		{Prefix: "c.", DataSource: "missing", JoinType: domain.JoinTypeInner, Condition: "x == c.code"},
	}, factory)
	var notJoinable *domain.ErrNotJoinable
	require.True(t, errors.As(err, &notJoinable))
	assert.Equal(t, "missing", notJoinable.DataSource)

	_, err = CreateClauses([]ClauseSpec{
		{Prefix: "j.", DataSource: "countries", JoinType: domain.JoinTypeInner, Condition: "x == j.code"},
		{Prefix: "j.", DataSource: "regions", JoinType: domain.JoinTypeInner, Condition: "x == j.id"},
	}, factory)
	var dup *domain.ErrDuplicatePrefix
	assert.True(t, errors.As(err, &dup))

	_, err = CreateClauses([]ClauseSpec{
		{Prefix: "j.", DataSource: "countries", JoinType: domain.JoinTypeInner, Condition: "x == "},
	}, factory)
	assert.Error(t, err)
}

// resolveOwner is the linear reference for OwnerIndex: clauses are scanned
// from last to first so that the last-registered clause wins.
func resolveOwner(column string, clauses []*JoinableClause) *JoinableClause {
	for i := len(clauses) - 1; i >= 0; i-- {
		if clauses[i].IncludesColumn(column) {
			return clauses[i]
		}
	}
	return nil
}

func TestOwnerIndex(t *testing.T) {
	a := &JoinableClause{Prefix: "a.", Joinable: &fakeJoinable{}}
	b := &JoinableClause{Prefix: "b.", Joinable: &fakeJoinable{}}
	ab := &JoinableClause{Prefix: "a.b.", Joinable: &fakeJoinable{}}
	clauses := []*JoinableClause{a, b, ab}
	idx := NewOwnerIndex(clauses)

	tests := []struct {
		column string
		want   *JoinableClause
	}{
		{"a.x", a},
		{"b.x", b},
		{"a.b.x", ab},
		{"a.", nil},
		{"x", nil},
		{"", nil},
		{"c.x", nil},
		{"a", nil},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Same(t, tt.want, idx.Owner(tt.column))
			assert.Same(t, tt.want, resolveOwner(tt.column, clauses))
			assert.Equal(t, tt.want == nil, idx.IsBaseColumn(tt.column))
		})
	}

	assert.True(t, idx.AreSomeColumnsFromJoin([]string{"x", "b.y"}))
	assert.False(t, idx.AreSomeColumnsFromJoin([]string{"x", "y"}))
}

func TestOwnerIndex_LastClauseWins(t *testing.T) {
	first := &JoinableClause{Prefix: "j.", Joinable: &fakeJoinable{}}
	second := &JoinableClause{Prefix: "j.", Joinable: &fakeJoinable{}}
	clauses := []*JoinableClause{first, second}

	assert.Same(t, second, NewOwnerIndex(clauses).Owner("j.k"))
	assert.Same(t, second, resolveOwner("j.k", clauses))
}
