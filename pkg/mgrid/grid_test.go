package mgrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingResolution(t *testing.T) {
	tcs := map[string]struct {
		radius float64
		want   float64
	}{
		"typical erosion radius": {radius: 300, want: 80},
		"typical buffer":         {radius: 100, want: 30},
		"rounds to nearest 10":   {radius: 170, want: 40},
		"floored at 20":          {radius: 40, want: 20},
		"tiny radius floored":    {radius: 1, want: 20},
		"zero floored":           {radius: 0, want: 20},
		"huge export stays sane": {radius: 4000, want: 1000},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkingResolution(tc.radius))
		})
	}
}

func TestResampleCoarsenAverages(t *testing.T) {
	g := NewGrid(4, 4, 10)
	g.Fill(100)
	g.Set(0, 0, 300) // one hot sample in the top-left 2x2 block

	coarse := g.Resample(20)
	require.Equal(t, 2, coarse.Dx())
	require.Equal(t, 2, coarse.Dy())
	assert.Equal(t, 150.0, coarse.Get(0, 0))
	assert.Equal(t, 100.0, coarse.Get(1, 1))
}

func TestResampleRefineCopiesBlocks(t *testing.T) {
	g := NewGrid(2, 2, 20)
	g.Set(0, 0, 1)
	g.Set(1, 1, 4)

	fine := g.Resample(10)
	require.Equal(t, 4, fine.Dx())
	assert.Equal(t, 1.0, fine.Get(0, 0))
	assert.Equal(t, 1.0, fine.Get(1, 1))
	assert.Equal(t, 4.0, fine.Get(2, 2))
	assert.Equal(t, 4.0, fine.Get(3, 3))
	assert.Equal(t, 0.0, fine.Get(3, 0))
}

func TestResampleSameResolutionIsClone(t *testing.T) {
	g := NewGrid(3, 3, 10)
	g.Fill(7)
	g2 := g.Resample(10)
	assert.True(t, g.Equal(g2))
	g2.Set(0, 0, 9)
	assert.Equal(t, 7.0, g.Get(0, 0)) // clone, not alias
}

func TestCircularMeanUniformIsFixedPoint(t *testing.T) {
	g := NewGrid(8, 8, 10)
	g.Fill(42)
	sm := g.CircularMean(2, 4)
	assert.True(t, g.Equal(sm))
}

func TestCircularMeanSmooths(t *testing.T) {
	g := NewGrid(9, 9, 10)
	g.Set(4, 4, 900)

	sm := g.CircularMean(2, 1)
	assert.Less(t, sm.Get(4, 4), 900.0)
	assert.Greater(t, sm.Get(4, 4), 0.0)
	assert.Greater(t, sm.Get(5, 4), 0.0) // spread to neighbours
	assert.Equal(t, 0.0, sm.Get(0, 0))   // but not that far
}

func TestMapAndClone(t *testing.T) {
	g := NewGrid(2, 2, 10)
	g.Fill(2)
	doubled := g.Map(func(v float64) float64 { return v * 2 })
	assert.Equal(t, 4.0, doubled.Get(1, 1))
	assert.Equal(t, 2.0, g.Get(1, 1))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 10000))
	assert.Equal(t, 10000.0, Clamp(20000, 0, 10000))
	assert.Equal(t, 123.0, Clamp(123, 0, 10000))
}
