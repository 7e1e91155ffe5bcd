package sar

import "errors"

var (
	// ErrBandNotFound is returned when an archive holds no measurement file
	// for the requested polarization.
	ErrBandNotFound = errors.New("sar: polarization band not found")

	// ErrUnsupportedCalibration is returned for calibration modes other
	// than sigma0, gamma0, and beta0.
	ErrUnsupportedCalibration = errors.New("sar: unsupported calibration")

	// ErrUnsupportedFilter is returned for speckle filter kinds other than
	// lee, refined_lee, and median.
	ErrUnsupportedFilter = errors.New("sar: unsupported speckle filter")
)
