package joinfilter

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMemo_ComputesOnce(t *testing.T) {
	var memo Memo[*valueSet]
	var calls atomic.Int64
	start := make(chan struct{})

	const workers = 32
	results := make([]*valueSet, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			<-start
			results[i] = memo.Get("k", func() *valueSet {
				calls.Add(1)
				return &valueSet{values: []string{"a"}, ok: true}
			})
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, memo.Computations())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestMemo_NegativeResultIsCached(t *testing.T) {
	var memo Memo[*valueSet]
	calls := 0
	compute := func() *valueSet {
		calls++
		return &valueSet{}
	}

	first := memo.Get("missing", compute)
	second := memo.Get("missing", compute)
	assert.False(t, first.ok)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	memo.Get("other", compute)
	assert.Equal(t, 2, calls)
}
