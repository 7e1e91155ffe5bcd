// Package geotiff reads and writes single-band GeoTIFF rasters.
//
// Only the baseline features Sentinel-1 measurement files and this
// pipeline's outputs need are implemented: classic (non-Big) TIFF, the
// first image directory, one sample per pixel, strip organization, no
// compression. Georeferencing travels in the ModelPixelScale and
// ModelTiepoint tags plus a GeoKey directory carrying an EPSG code, and
// GDAL's metadata and nodata tags carry free-form string items.
//
// The reader accepts both byte orders; the writer always emits
// little-endian files.
package geotiff

import "errors"

var (
	// ErrCorrupt is returned when a file cannot be parsed as TIFF at all
	// or its directory references data outside the file.
	ErrCorrupt = errors.New("geotiff: corrupt file")

	// ErrUnsupported is returned for well-formed files using features
	// outside the baseline subset, such as tiling or compression.
	ErrUnsupported = errors.New("geotiff: unsupported feature")
)

// Baseline TIFF tags.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagTileWidth       = 322
	tagSampleFormat    = 339
)

// GeoTIFF tags.
const (
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
)

// GDAL extension tags.
const (
	tagGDALMetadata = 42112
	tagGDALNodata   = 42113
)

// TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeDouble   = 12
)

// GeoKey IDs used for CRS round-tripping.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedCS    = 3072
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
	rasterPixelIsArea   = 1
)

// SampleFormat values from the TIFF specification.
const (
	sampleFormatUint  = 1
	sampleFormatFloat = 3
)

const headerSize = 8

// DType identifies the pixel storage type of an image.
type DType int

const (
	Uint8 DType = iota
	Uint16
	Float32
)

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

// Image is a single-band raster. Samples hold the band row-major as
// float64 regardless of the storage type; len(Samples) == Width*Height.
type Image struct {
	Width   int
	Height  int
	DType   DType
	Samples []float64

	// PixelScale and Tiepoint are the raw georeferencing tag values when
	// present. PixelScale is (sx, sy, sz) with sy positive for north-up
	// rasters; Tiepoint ties raster point (i, j, k) to model point
	// (x, y, z).
	PixelScale *[3]float64
	Tiepoint   *[6]float64

	// EPSG is the coordinate system code from the GeoKey directory, zero
	// when the file carries none.
	EPSG int

	Nodata   *float64
	Metadata map[string]string
}

func typeSize(typ uint16) int {
	switch typ {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational, typeDouble:
		return 8
	default:
		return 0
	}
}
