package sar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hotPixelGrid() Grid {
	return NewGrid(3, 3, []float64{
		1, 1, 1,
		1, 10, 1,
		1, 1, 1,
	}, Affine{A: 1, E: 1})
}

func TestApplySpeckleFilter_WindowValidation(t *testing.T) {
	g := hotPixelGrid()
	for _, window := range []int{-3, 0, 1, 2, 4, 6} {
		_, err := ApplySpeckleFilter(g, FilterLee, window)
		require.Error(t, err, "window %d", window)
		assert.Contains(t, err.Error(), "odd and >= 3")
	}
}

func TestApplySpeckleFilter_UnknownKind(t *testing.T) {
	_, err := ApplySpeckleFilter(hotPixelGrid(), "gaussian", 3)
	require.ErrorIs(t, err, ErrUnsupportedFilter)
}

func TestLeeFilter_ShrinksHotPixelTowardMean(t *testing.T) {
	// Every 3x3 clamped window of this grid has mean 2 and variance 8;
	// with the noise model m²/4.4 the shrinkage weight is 44/49 everywhere.
	out, err := ApplySpeckleFilter(hotPixelGrid(), FilterLee, 3)
	require.NoError(t, err)

	center := 2 + 44.0/49*8  // 450/49
	flat := 2 - 44.0/49      // 54/49
	for i, v := range out.Data {
		if i == 4 {
			assert.InDelta(t, center, v, 1e-9, "center")
		} else {
			assert.InDelta(t, flat, v, 1e-9, "pixel %d", i)
		}
	}
	assert.Equal(t, FilterLee, out.Provenance.SpeckleFilter)
	assert.Equal(t, 3, out.Provenance.FilterWindow)
}

func TestLeeFilter_HomogeneousRegionKeepsValue(t *testing.T) {
	data := make([]float64, 16)
	for i := range data {
		data[i] = 5
	}
	g := NewGrid(4, 4, data, Affine{A: 1, E: 1})

	out, err := ApplySpeckleFilter(g, FilterLee, 3)
	require.NoError(t, err)
	for i, v := range out.Data {
		assert.InDelta(t, 5, v, 1e-9, "pixel %d", i)
	}
}

func TestLeeFilter_AllZerosStayZero(t *testing.T) {
	g := NewGrid(3, 3, make([]float64, 9), Affine{A: 1, E: 1})

	out, err := ApplySpeckleFilter(g, FilterLee, 3)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 9), out.Data)
}

func TestRefinedLee_AliasesLee(t *testing.T) {
	lee, err := ApplySpeckleFilter(hotPixelGrid(), FilterLee, 3)
	require.NoError(t, err)
	refined, err := ApplySpeckleFilter(hotPixelGrid(), FilterRefinedLee, 3)
	require.NoError(t, err)

	assert.Equal(t, lee.Data, refined.Data)
	assert.Equal(t, FilterRefinedLee, refined.Provenance.SpeckleFilter)
}

func TestMedianFilter(t *testing.T) {
	g := NewGrid(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, Affine{A: 1, E: 1})

	out, err := ApplySpeckleFilter(g, FilterMedian, 3)
	require.NoError(t, err)

	// Center sees 1..9; corners see their clamped neighborhoods.
	assert.Equal(t, 5.0, out.At(1, 1))
	assert.Equal(t, 2.0, out.At(0, 0))
	assert.Equal(t, 8.0, out.At(2, 2))
	assert.Equal(t, FilterMedian, out.Provenance.SpeckleFilter)
}

func TestMedianFilter_RemovesImpulse(t *testing.T) {
	out, err := ApplySpeckleFilter(hotPixelGrid(), FilterMedian, 3)
	require.NoError(t, err)

	// The lone hot pixel is an extreme of every window it appears in, so
	// the median wipes it.
	for i, v := range out.Data {
		assert.Equal(t, 1.0, v, "pixel %d", i)
	}
}

func TestApplySpeckleFilter_PreservesShapeAndInput(t *testing.T) {
	g := hotPixelGrid()
	out, err := ApplySpeckleFilter(g, FilterLee, 3)
	require.NoError(t, err)

	assert.Equal(t, g.Width, out.Width)
	assert.Equal(t, g.Height, out.Height)
	assert.Equal(t, g.XCoords, out.XCoords)
	assert.Equal(t, g.YCoords, out.YCoords)
	assert.Equal(t, g.Transform, out.Transform)
	assert.Equal(t, 10.0, g.At(1, 1), "input grid must not be mutated")
}
