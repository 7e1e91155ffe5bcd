// Package georef reads vector boundary files and answers small
// georeferencing questions for the rest of the pipeline.
package georef

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Bounds is a bounding box in (minx, miny, maxx, maxy) order.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// TotalBounds returns the combined bounding box of every geometry in a
// GeoJSON file. FeatureCollections, single Features, and bare geometries
// are all accepted.
func TotalBounds(path string) (Bounds, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Bounds{}, fmt.Errorf("read boundary file: %w", err)
	}

	bound, err := totalBound(raw)
	if err != nil {
		return Bounds{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return Bounds{
		MinX: bound.Min[0], MinY: bound.Min[1],
		MaxX: bound.Max[0], MaxY: bound.Max[1],
	}, nil
}

func totalBound(raw []byte) (orb.Bound, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return orb.Bound{}, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	switch peek.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return orb.Bound{}, err
		}
		if len(fc.Features) == 0 {
			return orb.Bound{}, fmt.Errorf("feature collection has no features")
		}
		bound := fc.Features[0].Geometry.Bound()
		for _, f := range fc.Features[1:] {
			bound = bound.Union(f.Geometry.Bound())
		}
		return bound, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return orb.Bound{}, err
		}
		return f.Geometry.Bound(), nil
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return orb.Bound{}, err
		}
		return g.Geometry().Bound(), nil
	}
}

// EPSGCode extracts the numeric code from an "EPSG:nnnn" CRS string.
// Matching is case-insensitive and tolerates surrounding whitespace; any
// other CRS form (WKT, proj strings, empty) is an error.
func EPSGCode(crs string) (int, error) {
	s := strings.TrimSpace(crs)
	const prefix = "epsg:"
	if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return 0, fmt.Errorf("crs %q is not an EPSG code", crs)
	}
	code, err := strconv.Atoi(strings.TrimSpace(s[len(prefix):]))
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("crs %q is not an EPSG code", crs)
	}
	return code, nil
}
