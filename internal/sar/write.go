package sar

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/postfire-sar-etl/internal/georef"
	"github.com/couchcryptid/postfire-sar-etl/internal/geotiff"
)

// DriverGTiff is the only raster driver the writer supports.
const DriverGTiff = "GTiff"

// WriteRaster serializes the grid to a single-band raster at path,
// creating parent directories as needed. An empty driver selects GTiff.
// The grid's CRS string is parsed to an EPSG code at write time; a CRS
// that cannot be parsed degrades to a file without a coordinate system,
// logged as a warning rather than failing the scene. Provenance tags plus
// crs and nodata are embedded as metadata items. Zero-size grids produce
// a structurally valid file.
func WriteRaster(g Grid, path, driver string, logger *slog.Logger) error {
	if driver == "" {
		driver = DriverGTiff
	}
	if driver != DriverGTiff {
		return fmt.Errorf("unsupported raster driver %q", driver)
	}

	img := &geotiff.Image{
		Width:   g.Width,
		Height:  g.Height,
		Samples: g.Data,
	}
	switch g.DType {
	case DTypeFloat32:
		img.DType = geotiff.Float32
	default:
		img.DType = geotiff.Uint16
	}
	if g.Nodata != nil {
		nd := *g.Nodata
		img.Nodata = &nd
	}

	if g.CRS != "" {
		epsg, err := georef.EPSGCode(g.CRS)
		if err != nil {
			logger.Warn("could not parse CRS, writing without one", "crs", g.CRS, "path", path)
		} else {
			img.EPSG = epsg
		}
	}

	img.PixelScale = &[3]float64{g.Transform.A, -g.Transform.E, 0}
	img.Tiepoint = &[6]float64{0, 0, 0, g.Transform.C, g.Transform.F, 0}

	tags := g.Provenance.Tags()
	if g.CRS != "" {
		tags["crs"] = g.CRS
	}
	if g.Nodata != nil {
		tags["nodata"] = strconv.FormatFloat(*g.Nodata, 'g', -1, 64)
	}
	if len(tags) > 0 {
		img.Metadata = tags
	}

	return geotiff.WriteFile(path, img)
}
