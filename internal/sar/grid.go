package sar

import (
	"strconv"
	"time"
)

// Polarization codes for Sentinel-1 dual- and single-pol products.
const (
	PolVV = "VV"
	PolVH = "VH"
	PolHH = "HH"
	PolHV = "HV"
)

// Polarizations lists every band code an extractor may be asked for.
var Polarizations = []string{PolVV, PolVH, PolHH, PolHV}

// ValidPolarization reports whether p is one of the four band codes.
func ValidPolarization(p string) bool {
	for _, known := range Polarizations {
		if p == known {
			return true
		}
	}
	return false
}

// Calibration modes. The numeric transform is identical for all three and
// the mode is recorded in provenance only. See Calibrate.
const (
	CalibrationSigma0 = "sigma0"
	CalibrationGamma0 = "gamma0"
	CalibrationBeta0  = "beta0"
)

// Units values recorded in provenance as a grid moves through the pipeline.
const (
	UnitsLinear = "linear"
	UnitsDB     = "dB"
)

// Affine maps pixel indices to map coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// B and D are rotation terms, zero for the north-up grids this pipeline
// produces. E is negative when y decreases with increasing row index.
type Affine struct {
	A, B, C, D, E, F float64
}

// Apply returns the map coordinate of pixel (col, row).
func (t Affine) Apply(col, row int) (x, y float64) {
	return t.A*float64(col) + t.B*float64(row) + t.C,
		t.D*float64(col) + t.E*float64(row) + t.F
}

// DType identifies the sample type a grid is stored with on disk.
// In memory all samples are held as float64.
type DType int

const (
	DTypeUint16 DType = iota
	DTypeFloat32
)

func (d DType) String() string {
	switch d {
	case DTypeUint16:
		return "uint16"
	case DTypeFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// Provenance records the processing history of a grid. Each pipeline stage
// fills in its own fields exactly once; later stages never overwrite fields
// set by an earlier stage.
type Provenance struct {
	Polarization  string
	Calibration   string
	Units         string
	SpeckleFilter string
	FilterWindow  int
	Cropped       bool
	GeoJSONBounds string
	SourceScene   string
	ProcessedAt   time.Time
}

// Tags serializes the set provenance fields as string key/value pairs for
// embedding in raster metadata. Unset fields are omitted.
func (p Provenance) Tags() map[string]string {
	tags := make(map[string]string)
	if p.Polarization != "" {
		tags["polarization"] = p.Polarization
	}
	if p.Calibration != "" {
		tags["calibration"] = p.Calibration
	}
	if p.Units != "" {
		tags["units"] = p.Units
	}
	if p.SpeckleFilter != "" {
		tags["speckle_filter"] = p.SpeckleFilter
	}
	if p.FilterWindow != 0 {
		tags["filter_window"] = strconv.Itoa(p.FilterWindow)
	}
	if p.Cropped {
		tags["cropped"] = "true"
	}
	if p.GeoJSONBounds != "" {
		tags["geojson_bounds"] = p.GeoJSONBounds
	}
	if p.SourceScene != "" {
		tags["source_scene"] = p.SourceScene
	}
	if !p.ProcessedAt.IsZero() {
		tags["processed_at"] = p.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return tags
}

// Grid is a single-band raster with per-axis coordinates and processing
// provenance. Samples are stored row-major: index row*Width+col.
type Grid struct {
	Width  int
	Height int
	Data   []float64

	// XCoords and YCoords give the map coordinate of each column and row,
	// derived from Transform. Their lengths always match Width and Height.
	XCoords []float64
	YCoords []float64

	Transform Affine
	CRS       string // e.g. "EPSG:32614"; empty when the source had none
	Nodata    *float64
	DType     DType

	Provenance Provenance
}

// NewGrid builds a grid over data with coordinates derived from transform.
// data must hold width*height samples.
func NewGrid(width, height int, data []float64, transform Affine) Grid {
	g := Grid{
		Width:     width,
		Height:    height,
		Data:      data,
		Transform: transform,
		XCoords:   make([]float64, width),
		YCoords:   make([]float64, height),
	}
	for col := range g.XCoords {
		g.XCoords[col], _ = transform.Apply(col, 0)
	}
	for row := range g.YCoords {
		_, g.YCoords[row] = transform.Apply(0, row)
	}
	return g
}

// At returns the sample at (col, row).
func (g Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

// Clone returns a deep copy. Stages operate on clones so a caller's grid is
// never mutated.
func (g Grid) Clone() Grid {
	out := g
	out.Data = append([]float64(nil), g.Data...)
	out.XCoords = append([]float64(nil), g.XCoords...)
	out.YCoords = append([]float64(nil), g.YCoords...)
	if g.Nodata != nil {
		nd := *g.Nodata
		out.Nodata = &nd
	}
	return out
}
