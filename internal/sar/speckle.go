package sar

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Speckle filter kinds accepted by ApplySpeckleFilter.
const (
	FilterLee        = "lee"
	FilterRefinedLee = "refined_lee"
	FilterMedian     = "median"
)

// noiseCoeff is the empirical multiplicative speckle coefficient for
// Sentinel-1 GRD products: local noise variance is modeled as mean²/4.4.
const noiseCoeff = 4.4

// ApplySpeckleFilter runs the named filter over the grid with a square
// window. The window must be odd and at least 3. refined_lee is an alias
// for lee; directional refinement is not implemented. Shape, coordinates,
// and transform are unchanged.
func ApplySpeckleFilter(g Grid, kind string, window int) (Grid, error) {
	if window < 3 || window%2 == 0 {
		return Grid{}, fmt.Errorf("filter window must be odd and >= 3, got %d", window)
	}

	var filtered []float64
	switch kind {
	case FilterLee, FilterRefinedLee:
		filtered = leeFilter(g.Data, g.Width, g.Height, window)
	case FilterMedian:
		filtered = medianFilter(g.Data, g.Width, g.Height, window)
	default:
		return Grid{}, fmt.Errorf("%w: %q", ErrUnsupportedFilter, kind)
	}

	out := g.Clone()
	out.Data = filtered
	out.Provenance.SpeckleFilter = kind
	out.Provenance.FilterWindow = window
	return out, nil
}

// leeFilter is an adaptive minimum-mean-square-error filter for
// multiplicative speckle. For each pixel with local mean m and local
// variance v it computes a shrinkage weight k = v/(v+nv) against the noise
// model nv = m²/4.4 and returns m + k*(x-m): the local mean in homogeneous
// regions where k approaches 0, the original value near edges where k
// approaches 1.
func leeFilter(data []float64, width, height, window int) []float64 {
	mean := boxFilter(data, width, height, window)

	sq := make([]float64, len(data))
	for i, v := range data {
		sq[i] = v * v
	}
	sqMean := boxFilter(sq, width, height, window)

	out := make([]float64, len(data))
	for i, x := range data {
		m := mean[i]
		variance := sqMean[i] - m*m
		noise := m * m / noiseCoeff
		denom := variance + noise
		if denom == 0 {
			// Perfectly homogeneous window, keep the mean.
			out[i] = m
			continue
		}
		k := variance / denom
		out[i] = m + k*(x-m)
	}
	return out
}

// boxFilter computes the mean of each window×window neighborhood using two
// separable passes. Border windows clamp indices to the grid, so edge
// pixels are re-sampled where the window hangs over.
func boxFilter(data []float64, width, height, window int) []float64 {
	r := window / 2
	inv := 1 / float64(window)

	tmp := make([]float64, len(data))
	for y := 0; y < height; y++ {
		row := data[y*width : (y+1)*width]
		out := tmp[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			var sum float64
			for dx := -r; dx <= r; dx++ {
				sum += row[clampIndex(x+dx, width)]
			}
			out[x] = sum * inv
		}
	}

	out := make([]float64, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for dy := -r; dy <= r; dy++ {
				sum += tmp[clampIndex(y+dy, height)*width+x]
			}
			out[y*width+x] = sum * inv
		}
	}
	return out
}

// medianFilter computes the median of each window×window neighborhood.
// Border handling clamps like boxFilter. Window area is odd, so the
// empirical 0.5 quantile is the exact middle element.
func medianFilter(data []float64, width, height, window int) []float64 {
	r := window / 2
	out := make([]float64, len(data))
	neighborhood := make([]float64, 0, window*window)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			neighborhood = neighborhood[:0]
			for dy := -r; dy <= r; dy++ {
				rowOff := clampIndex(y+dy, height) * width
				for dx := -r; dx <= r; dx++ {
					neighborhood = append(neighborhood, data[rowOff+clampIndex(x+dx, width)])
				}
			}
			sort.Float64s(neighborhood)
			out[y*width+x] = stat.Quantile(0.5, stat.Empirical, neighborhood, nil)
		}
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
