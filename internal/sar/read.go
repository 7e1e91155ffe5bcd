package sar

import (
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/geotiff"
)

// ReadGeoTIFF loads a single-band raster from disk. It is the inverse of
// WriteRaster for files this pipeline wrote, and reads any baseline
// uncompressed single-band GeoTIFF.
func ReadGeoTIFF(path string) (Grid, error) {
	img, err := geotiff.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts a decoded raster to a grid. Files without
// georeferencing tags get the identity transform; measurement rasters
// inside SAFE archives present that way, since their geolocation rides in
// separate annotation grids.
func FromImage(img *geotiff.Image) Grid {
	transform := Affine{A: 1, E: 1}
	if img.PixelScale != nil && img.Tiepoint != nil {
		sx, sy := img.PixelScale[0], img.PixelScale[1]
		ti, tj := img.Tiepoint[0], img.Tiepoint[1]
		tx, ty := img.Tiepoint[3], img.Tiepoint[4]
		transform = Affine{
			A: sx,
			C: tx - ti*sx,
			E: -sy,
			F: ty + tj*sy,
		}
	}

	g := NewGrid(img.Width, img.Height, img.Samples, transform)
	if img.EPSG != 0 {
		g.CRS = fmt.Sprintf("EPSG:%d", img.EPSG)
	}
	if img.Nodata != nil {
		nd := *img.Nodata
		g.Nodata = &nd
	}
	switch img.DType {
	case geotiff.Float32:
		g.DType = DTypeFloat32
	default:
		g.DType = DTypeUint16
	}
	g.Provenance = provenanceFromTags(img.Metadata)
	return g
}

// provenanceFromTags rebuilds typed provenance from the string metadata
// items WriteRaster embeds. Unknown items are ignored.
func provenanceFromTags(tags map[string]string) Provenance {
	p := Provenance{
		Polarization:  tags["polarization"],
		Calibration:   tags["calibration"],
		Units:         tags["units"],
		SpeckleFilter: tags["speckle_filter"],
		GeoJSONBounds: tags["geojson_bounds"],
		SourceScene:   tags["source_scene"],
		Cropped:       tags["cropped"] == "true",
	}
	if v := tags["filter_window"]; v != "" {
		p.FilterWindow, _ = strconv.Atoi(v)
	}
	if v := tags["processed_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.ProcessedAt = t
		}
	}
	return p
}
