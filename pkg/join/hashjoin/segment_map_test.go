package hashjoin

import (
	"testing"

	"github.com/jon-wei/druid-sub000/pkg/config"
	"github.com/jon-wei/druid-sub000/pkg/join"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
	"github.com/jon-wei/druid-sub000/pkg/resource/domain"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/jon-wei/druid-sub000/pkg/testutils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentMapFn(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := monitor.NewJoinMetrics(reg)
	h := newHelper(t)

	specs := []join.ClauseSpec{{
		Prefix:     "c.",
		DataSource: "countries",
		JoinType:   domain.JoinTypeInner,
		Condition:  "countryIsoCode == c.isoCode",
	}}
	mapFn, err := SegmentMapFn(specs, h.Factory(), config.DefaultJoinConfig(), WithMetrics(m))
	require.NoError(t, err)

	rows := wikipediaRows()
	first := mapFn(h.Base(rows[:2]))
	second := mapFn(h.Base(rows[2:]))

	spec := segment.CursorSpec{Filter: h.Filter("c.name = 'Mexico' OR c.isoCode = 'AU'")}
	assert.Equal(t, []domain.Row{{"page": "Didgeridoo"}}, read(first, spec, "page"))
	assert.Equal(t, []domain.Row{{"page": "Mariachi"}}, read(second, spec, "page"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreAnalyses))

	a, ok := first.(*HashJoinStorageAdapter)
	require.True(t, ok)
	b, ok := second.(*HashJoinStorageAdapter)
	require.True(t, ok)
	assert.NotEmpty(t, a.QueryID())
	assert.Equal(t, a.QueryID(), b.QueryID())
}

func TestSegmentMapFn_NoClauses(t *testing.T) {
	h := testutils.NewJoinTestHelper(t)
	mapFn, err := SegmentMapFn(nil, h.Factory(), config.DefaultJoinConfig())
	require.NoError(t, err)

	base := h.Base(wikipediaRows())
	assert.Same(t, base, mapFn(base))
}

func TestSegmentMapFn_Errors(t *testing.T) {
	h := newHelper(t)

	_, err := SegmentMapFn([]join.ClauseSpec{{
		Prefix:     "c.",
		DataSource: "nowhere",
		JoinType:   domain.JoinTypeInner,
		Condition:  "countryIsoCode == c.isoCode",
	}}, h.Factory(), config.DefaultJoinConfig())
	var notJoinable *domain.ErrNotJoinable
	require.ErrorAs(t, err, &notJoinable)
	assert.True(t, domain.IsConfigurationError(err))

	_, err = SegmentMapFn([]join.ClauseSpec{{
		Prefix:     "__t",
		DataSource: "countries",
		JoinType:   domain.JoinTypeInner,
		Condition:  "countryIsoCode == __t.isoCode",
	}}, h.Factory(), config.DefaultJoinConfig())
	var invalid *domain.ErrInvalidPrefix
	require.ErrorAs(t, err, &invalid)
}
