package lookup

import (
	"bytes"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-kit/log"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLookup(t *testing.T) *Joinable {
	t.Helper()
	j, err := Open(map[string]string{
		"us": "United States",
		"ca": "Canada",
		"uk": "United Kingdom",
		"gb": "United Kingdom",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJoinable_Metadata(t *testing.T) {
	j := openLookup(t)

	assert.Equal(t, []string{"k", "v"}, j.AvailableColumns())
	assert.Equal(t, 4, j.Cardinality("k"))
	assert.Equal(t, domain.CardinalityUnknown, j.Cardinality("v"))
	assert.True(t, j.ColumnCapabilities("k").HasBitmapIndexes)
	assert.Nil(t, j.ColumnCapabilities("x"))
}

func TestJoinable_Matcher(t *testing.T) {
	j := openLookup(t)

	m, err := j.MakeJoinMatcher([]string{"k"})
	require.NoError(t, err)

	m.Match([]interface{}{"ca"})
	require.True(t, m.HasMatch())
	assert.Equal(t, "ca", m.Get("k"))
	assert.Equal(t, "Canada", m.Get("v"))
	m.NextMatch()
	assert.False(t, m.HasMatch())

	m.Match([]interface{}{"zz"})
	assert.False(t, m.HasMatch())
	m.Match([]interface{}{nil})
	assert.False(t, m.HasMatch())

	m.MatchAll()
	var keys []interface{}
	for ; m.HasMatch(); m.NextMatch() {
		keys = append(keys, m.Get("k"))
	}
	assert.Equal(t, []interface{}{"ca", "gb", "uk", "us"}, keys)

	_, err = j.MakeJoinMatcher([]string{"v"})
	assert.Error(t, err)
}

func TestJoinable_CorrelatedColumnValues(t *testing.T) {
	j := openLookup(t)

	got, ok := j.CorrelatedColumnValues("k", "us", "v", 10, false)
	require.True(t, ok)
	assert.Equal(t, []string{"United States"}, got)

	got, ok = j.CorrelatedColumnValues("k", "zz", "v", 10, false)
	require.True(t, ok)
	assert.Empty(t, got)

	_, ok = j.CorrelatedColumnValues("v", "United Kingdom", "k", 10, false)
	assert.False(t, ok)

	got, ok = j.CorrelatedColumnValues("v", "United Kingdom", "k", 10, true)
	require.True(t, ok)
	assert.Equal(t, []string{"gb", "uk"}, got)

	_, ok = j.CorrelatedColumnValues("v", "United Kingdom", "k", 1, true)
	assert.False(t, ok)

	got, ok = j.CorrelatedColumnValues("k", "ca", "k", 10, false)
	require.True(t, ok)
	assert.Equal(t, []string{"ca"}, got)
}

func TestJoinable_ReadErrors(t *testing.T) {
	var buf bytes.Buffer
	j, err := Open(map[string]string{"us": "United States"}, WithLogger(log.NewLogfmtLogger(&buf)))
	require.NoError(t, err)

	m, err := j.MakeJoinMatcher([]string{"k"})
	require.NoError(t, err)
	m.Match([]interface{}{"zz"})
	assert.False(t, m.HasMatch())
	assert.NoError(t, j.Err(), "a missing key is a miss, not an error")

	require.NoError(t, j.Close())

	m.Match([]interface{}{"us"})
	assert.False(t, m.HasMatch())
	assert.ErrorIs(t, j.Err(), badger.ErrDBClosed)

	m.MatchAll()
	assert.False(t, m.HasMatch())

	_, ok := j.CorrelatedColumnValues("k", "us", "v", 10, false)
	assert.False(t, ok)

	assert.Contains(t, buf.String(), `msg="lookup read failed"`)
	assert.Contains(t, buf.String(), "op=match")
}
