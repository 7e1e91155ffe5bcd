// Package sar holds the core raster model and the pure transforms of the
// Sentinel-1 preprocessing pipeline.
//
// # Grid model
//
// A Grid is one polarization band: row-major float64 samples, per-axis
// coordinate vectors derived from a six-coefficient affine transform, an
// opaque CRS string, an optional nodata sentinel, and structured
// Provenance. The coordinate vectors and the transform always agree:
//
//	x = A*col + C
//	y = E*row + F
//
// with E negative for north-up products, so YCoords descends with row
// index. Every transform returns a fresh grid; no function in this
// package mutates its input.
//
// # Processing ladder
//
// A band moves through a fixed ladder on its way to disk:
//
//	extract    raw digital numbers, DType uint16
//	calibrate  DN² / 1e6 in float32 arithmetic, units "linear"
//	to_db      10·log10, non-positive samples floored at 1e-10, units "dB"
//	filter     lee, refined_lee, or median speckle suppression
//	crop/clip  coordinate-space subsetting or boundary annotation
//	write      single-band GeoTIFF with provenance tags
//
// The calibration is the standard power-law approximation, not a
// LUT-interpolated backscatter; its float32 arithmetic is part of the
// contract so outputs are reproducible bit for bit.
//
// # Provenance
//
// Each stage records what it did in Provenance exactly once. The writer
// serializes the set fields as string metadata items under their
// historical names:
//
//	polarization    band code (VV, VH, HH, HV)
//	calibration     sigma0, gamma0, or beta0
//	units           linear or dB
//	speckle_filter  filter kind
//	filter_window   window size
//	cropped         "true" after CropToBounds
//	geojson_bounds  boundary box recorded by ClipToBoundary
//	source_scene    scene identifier from the archive name
//	processed_at    RFC 3339 completion stamp
//
// ClipToBoundary is annotation only: measurement rasters carry no
// georeferenced grid, so boundary coordinates cannot select pixels.
// CropToBounds is the real subsetter and the only setter of "cropped".
package sar
