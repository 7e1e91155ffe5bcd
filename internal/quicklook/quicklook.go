// Package quicklook renders small grayscale browse images from processed
// grids so products can be eyeballed without a GIS viewer.
package quicklook

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

// maxDimension bounds the longest edge of a rendered quicklook.
const maxDimension = 512

// Render converts a grid to an 8-bit grayscale image, stretching samples
// linearly between the 2nd and 98th percentile so a few bright scatterers
// do not wash out the scene. The result is downscaled to fit within
// maxDimension on its longest edge; grids already smaller pass through at
// full size.
func Render(g sar.Grid) image.Image {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	if g.Width == 0 || g.Height == 0 {
		return img
	}

	lo, hi := stretchRange(g.Data)
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	for i, v := range g.Data {
		switch {
		case scale == 0:
			img.Pix[i] = 128
		case v <= lo:
			img.Pix[i] = 0
		case v >= hi:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8((v - lo) * scale)
		}
	}

	if g.Width <= maxDimension && g.Height <= maxDimension {
		return img
	}
	return imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
}

// WritePNG renders the grid and saves it at path, creating parent
// directories as needed. The format follows the file extension.
func WritePNG(g sar.Grid, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create quicklook directory: %w", err)
	}
	if err := imaging.Save(Render(g), path); err != nil {
		return fmt.Errorf("save quicklook: %w", err)
	}
	return nil
}

// stretchRange returns the 2nd and 98th percentile of the samples,
// falling back to the full range when the interior percentiles collapse.
func stretchRange(data []float64) (lo, hi float64) {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	lo = stat.Quantile(0.02, stat.Empirical, sorted, nil)
	hi = stat.Quantile(0.98, stat.Empirical, sorted, nil)
	if hi <= lo {
		lo, hi = sorted[0], sorted[len(sorted)-1]
	}
	return lo, hi
}
