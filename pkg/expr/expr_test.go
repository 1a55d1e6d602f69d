package expr

import (
	"testing"

	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Identifiers(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"x", "x"},
		{"j.k", "j.k"},
		{"a.sub.x", "a.sub.x"},
		{"`weird-name`", "weird-name"},
		{"__time", "__time"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := Parse(tt.text)
			require.NoError(t, err)
			name, ok := e.BindingIfIdentifier()
			assert.True(t, ok)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestParse_Compound(t *testing.T) {
	e, err := Parse("x == j.k && j.v > 3")
	require.NoError(t, err)

	call, ok := e.(*Call)
	require.True(t, ok)
	assert.Equal(t, OpAnd, call.Op)
	assert.Equal(t, []string{"j.k", "j.v", "x"}, e.RequiredBindings())
	_, isIdent := e.BindingIfIdentifier()
	assert.False(t, isIdent)

	left := call.Args[0].(*Call)
	assert.Equal(t, OpEq, left.Op)
}

func TestParse_Errors(t *testing.T) {
	for _, text := range []string{"", "   ", "x +", "nosuchfn(x)", "x FROM t"} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			assert.Error(t, err)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, text := range []string{
		"concat(x, '-', y)",
		"(x + 1) * 2",
		"x IN (1, 2, 'a')",
		"x IS NOT NULL",
		"NOT (x = 'it''s')",
		"lower(j.name) LIKE 'ab%'",
		"-x",
		"`weird-name` = -1.5",
	} {
		t.Run(text, func(t *testing.T) {
			e, err := Parse(text)
			require.NoError(t, err)
			again, err := Parse(e.String())
			require.NoError(t, err)
			assert.True(t, Equal(e, again), "%s vs %s", e.String(), again.String())
		})
	}
}

func TestExpr_Eval(t *testing.T) {
	row := domain.Row{"x": int64(3), "y": "b", "z": nil, "j.k": "3"}

	tests := []struct {
		text string
		want interface{}
	}{
		{"x + 1", int64(4)},
		{"x / 2", 1.5},
		{"x / 0", nil},
		{"x % 2", int64(1)},
		{"concat(y, x)", "b3"},
		{"concat(y, z)", nil},
		{"upper(y)", "B"},
		{"length(y)", int64(1)},
		{"coalesce(z, y)", "b"},
		{"abs(-x)", int64(3)},
		{"x = j.k", true},
		{"x == 3 && y = 'b'", true},
		{"x > 5 || y = 'b'", true},
		{"z = 1", false},
		{"z IS NULL", true},
		{"missing IS NULL", true},
		{"y IN ('a', 'b')", true},
		{"y NOT IN ('a', 'b')", false},
		{"z IN ('a')", false},
		{"x IN (1, 3)", true},
		{"x NOT IN (1, 2)", true},
		{"NOT (x < 2)", true},
		{"y LIKE 'b%'", true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(row))
		})
	}
}

func TestIdentifier_String(t *testing.T) {
	assert.Equal(t, "j.k", Ident("j.k").String())
	assert.Equal(t, "`JOIN-FILTER-PUSHDOWN-VIRTUAL-COLUMN-0`", Ident("JOIN-FILTER-PUSHDOWN-VIRTUAL-COLUMN-0").String())
	assert.Equal(t, "'a''b'", Lit("a'b").String())
	assert.Equal(t, "NULL", Lit(nil).String())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("x +") })
	assert.NotPanics(t, func() { MustParse("x + 1") })
}
