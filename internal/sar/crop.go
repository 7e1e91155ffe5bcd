package sar

import (
	"github.com/couchcryptid/postfire-sar-etl/internal/georef"
)

// CropToBounds restricts the grid to (minx, miny, maxx, maxy) in its own
// coordinate units. Selection is inclusive on both edges and honors the
// axis direction: a descending y axis keeps rows from maxy down to miny,
// preserving row order. The transform's translation terms are recomputed
// for the new first pixel and Cropped is set. An empty selection yields a
// valid zero-size grid, not an error.
func CropToBounds(g Grid, minX, minY, maxX, maxY float64) Grid {
	c0, c1 := coordRange(g.XCoords, minX, maxX)
	r0, r1 := coordRange(g.YCoords, minY, maxY)

	width := c1 - c0
	height := r1 - r0

	out := g
	out.Width = width
	out.Height = height
	out.Data = make([]float64, width*height)
	for row := 0; row < height; row++ {
		src := (r0+row)*g.Width + c0
		copy(out.Data[row*width:(row+1)*width], g.Data[src:src+width])
	}
	out.XCoords = append([]float64(nil), g.XCoords[c0:c1]...)
	out.YCoords = append([]float64(nil), g.YCoords[r0:r1]...)
	if g.Nodata != nil {
		nd := *g.Nodata
		out.Nodata = &nd
	}

	if width > 0 {
		out.Transform.C = out.XCoords[0]
	}
	if height > 0 {
		out.Transform.F = out.YCoords[0]
	}
	out.Provenance.Cropped = true
	return out
}

// coordRange returns the half-open index range [lo, hi) of coordinates
// falling within [min, max]. Coordinates are monotonic in either
// direction, so the in-range run is contiguous and can be found by
// trimming both ends.
func coordRange(coords []float64, min, max float64) (int, int) {
	lo, hi := 0, len(coords)
	for lo < hi && (coords[lo] < min || coords[lo] > max) {
		lo++
	}
	for hi > lo && (coords[hi-1] < min || coords[hi-1] > max) {
		hi--
	}
	return lo, hi
}

// ClipToBoundary records a vector boundary's total bounding box in
// provenance without cropping. SAFE measurement rasters carry a
// product-local pixel frame rather than a georeferenced grid, so selecting
// pixels by geographic boundary coordinates would pick arbitrary data;
// callers that know the pixel-equivalent bounds use CropToBounds instead.
// Cropped is not set here; only CropToBounds sets it.
func ClipToBoundary(g Grid, boundaryPath string) (Grid, error) {
	b, err := georef.TotalBounds(boundaryPath)
	if err != nil {
		return Grid{}, err
	}
	out := g.Clone()
	out.Provenance.GeoJSONBounds = b.String()
	return out, nil
}
