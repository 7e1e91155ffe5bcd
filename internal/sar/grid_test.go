package sar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffine_Apply(t *testing.T) {
	tr := Affine{A: 10, C: 500, E: -10, F: 1000}

	x, y := tr.Apply(0, 0)
	assert.Equal(t, 500.0, x)
	assert.Equal(t, 1000.0, y)

	x, y = tr.Apply(3, 2)
	assert.Equal(t, 530.0, x)
	assert.Equal(t, 980.0, y)
}

func TestNewGrid_DerivesCoords(t *testing.T) {
	data := make([]float64, 12)
	g := NewGrid(4, 3, data, Affine{A: 10, C: 500, E: -10, F: 1000})

	assert.Equal(t, []float64{500, 510, 520, 530}, g.XCoords)
	assert.Equal(t, []float64{1000, 990, 980}, g.YCoords)
	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 3, g.Height)
}

func TestGrid_At(t *testing.T) {
	g := NewGrid(3, 2, []float64{0, 1, 2, 3, 4, 5}, Affine{A: 1, E: 1})

	assert.Equal(t, 0.0, g.At(0, 0))
	assert.Equal(t, 2.0, g.At(2, 0))
	assert.Equal(t, 3.0, g.At(0, 1))
	assert.Equal(t, 5.0, g.At(2, 1))
}

func TestGrid_CloneIsIndependent(t *testing.T) {
	nd := -9999.0
	g := NewGrid(2, 2, []float64{1, 2, 3, 4}, Affine{A: 1, E: 1})
	g.Nodata = &nd

	c := g.Clone()
	c.Data[0] = 99
	c.XCoords[0] = 99
	c.YCoords[0] = 99
	*c.Nodata = 0

	assert.Equal(t, 1.0, g.Data[0])
	assert.Equal(t, 0.0, g.XCoords[0])
	assert.Equal(t, 0.0, g.YCoords[0])
	assert.Equal(t, -9999.0, *g.Nodata)
}

func TestValidPolarization(t *testing.T) {
	for _, p := range Polarizations {
		assert.True(t, ValidPolarization(p), p)
	}
	assert.False(t, ValidPolarization("vv"))
	assert.False(t, ValidPolarization("XX"))
	assert.False(t, ValidPolarization(""))
}

func TestProvenance_TagsOmitsUnset(t *testing.T) {
	assert.Empty(t, Provenance{}.Tags())

	p := Provenance{
		Polarization:  PolVH,
		Calibration:   CalibrationSigma0,
		Units:         UnitsDB,
		SpeckleFilter: FilterLee,
		FilterWindow:  5,
		Cropped:       true,
		GeoJSONBounds: "[1, 2, 3, 4]",
		SourceScene:   "S1A_TEST",
		ProcessedAt:   time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
	}
	tags := p.Tags()
	require.Len(t, tags, 9)
	assert.Equal(t, "VH", tags["polarization"])
	assert.Equal(t, "sigma0", tags["calibration"])
	assert.Equal(t, "dB", tags["units"])
	assert.Equal(t, "lee", tags["speckle_filter"])
	assert.Equal(t, "5", tags["filter_window"])
	assert.Equal(t, "true", tags["cropped"])
	assert.Equal(t, "[1, 2, 3, 4]", tags["geojson_bounds"])
	assert.Equal(t, "S1A_TEST", tags["source_scene"])
	assert.Equal(t, "2025-07-14T09:30:00Z", tags["processed_at"])
}

func TestDType_String(t *testing.T) {
	assert.Equal(t, "uint16", DTypeUint16.String())
	assert.Equal(t, "float32", DTypeFloat32.String())
	assert.Equal(t, "unknown", DType(7).String())
}
