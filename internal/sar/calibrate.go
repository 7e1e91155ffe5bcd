package sar

import (
	"fmt"
	"math"
)

// dbFloor replaces non-positive samples before the log transform so the dB
// result stays finite. 1e-10 linear corresponds to -100 dB.
const dbFloor = 1e-10

// Calibrate converts raw digital numbers to backscatter power with a fixed
// power law: square the DN in 32-bit float arithmetic and divide by 1e6.
// True radiometric calibration interpolates per-product annotation look-up
// tables; here the three modes share the power law and differ only in the
// calibration recorded in provenance. An empty calibration defaults to
// sigma0. The intermediate math stays in float32 so results are
// reproducible against reference products sample for sample.
func Calibrate(g Grid, calibration string) (Grid, error) {
	if calibration == "" {
		calibration = CalibrationSigma0
	}
	switch calibration {
	case CalibrationSigma0, CalibrationGamma0, CalibrationBeta0:
	default:
		return Grid{}, fmt.Errorf("%w: %q", ErrUnsupportedCalibration, calibration)
	}

	out := g.Clone()
	for i, v := range g.Data {
		dn := float32(v)
		out.Data[i] = float64(dn * dn / 1e6)
	}
	out.DType = DTypeFloat32
	out.Provenance.Calibration = calibration
	out.Provenance.Units = UnitsLinear
	return out, nil
}

// ToDB converts linear backscatter to decibels: 10*log10(v), with
// non-positive samples floored at 1e-10 (-100 dB) first. Positive samples
// pass through the log unmodified, however small. The input must be linear;
// there is no guard against converting a grid twice.
func ToDB(g Grid) Grid {
	out := g.Clone()
	for i, v := range g.Data {
		if v <= 0 {
			v = dbFloor
		}
		out.Data[i] = 10 * math.Log10(v)
	}
	out.Provenance.Units = UnitsDB
	return out
}
