package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverageAndDeterminism(t *testing.T) {
	for w := 0; w <= 37; w++ {
		for n := 1; n <= 8; n++ {
			s := New(w, n)
			covered := make([]bool, w)
			prevLast := 0
			for k := 0; k < n; k++ {
				r1 := s.Range(k)
				r2 := New(w, n).Range(k)
				assert.Equal(t, r1, r2, "range must be a pure function of (W, N, k)")
				assert.Equal(t, prevLast, r1.First, "ranges must be contiguous")
				prevLast = r1.Last
				for i := r1.First; i < r1.Last; i++ {
					require.False(t, covered[i], "row %d covered twice", i)
					covered[i] = true
				}
			}
			assert.Equal(t, w, prevLast, "union of ranges must equal [0, W)")
			for i, c := range covered {
				assert.True(t, c, "row %d not covered", i)
			}
		}
	}
}

func TestRemainderGoesToFirstWorkers(t *testing.T) {
	s := New(11, 4)
	assert.Equal(t, Range{0, 3}, s.Range(0))
	assert.Equal(t, Range{3, 6}, s.Range(1))
	assert.Equal(t, Range{6, 9}, s.Range(2))
	assert.Equal(t, Range{9, 11}, s.Range(3))
	assert.Equal(t, []int{3, 3, 3, 2}, s.Sizes())
}

func TestZeroWorkSize(t *testing.T) {
	s := New(0, 5)
	for k := 0; k < 5; k++ {
		assert.Equal(t, Range{0, 0}, s.Range(k))
	}
}

func TestMaxSize(t *testing.T) {
	assert.Equal(t, 3, New(11, 4).MaxSize())
	assert.Equal(t, 2, New(10, 5).MaxSize())
	assert.True(t, New(10, 5).IsEvenlyDivided())
	assert.False(t, New(11, 4).IsEvenlyDivided())
}
