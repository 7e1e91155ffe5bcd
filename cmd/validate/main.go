// Command validate runs integrity checks over a directory of processed
// products: every raster must decode, carry complete provenance, be sanely
// georeferenced, and hold plausible backscatter values. It is meant for
// spot-checking a batch after reprocessing or a pipeline change.
//
// Usage:
//
//	go run ./cmd/validate -dir data/processed
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/couchcryptid/postfire-sar-etl/internal/georef"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

// Plausible dB window for calibrated GRD backscatter. The low end covers
// the -100 dB floor zero-DN pixels are clamped to; the high end covers
// saturated returns at the top of the 16-bit DN range.
const (
	minPlausibleDB = -100.5
	maxPlausibleDB = 40.0
)

// outOfRangeTolerance is the fraction of samples allowed outside the
// plausible window before a raster is flagged.
const outOfRangeTolerance = 0.01

const productSuffix = "_processed.tif"

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// product is one decoded raster under validation.
type product struct {
	path string
	base string
	grid sar.Grid
}

func main() {
	dir := flag.String("dir", "data/processed", "directory containing processed rasters")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== SAR Product Integrity Validation ===")
	fmt.Println()

	paths, err := filepath.Glob(filepath.Join(dir, "*"+productSuffix))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list products: %v\n", err)
		return 1
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no %s files under %s\n", productSuffix, dir)
		return 1
	}

	decode := &phase{name: "Phase 1: Raster Decode (GeoTIFF)"}
	products := loadProducts(decode, paths)
	quicklooks := findQuicklooks(products)

	phases := []*phase{
		decode,
		validateProvenance(products),
		validateGeoreferencing(products),
		validateSamplePlausibility(products),
		validateQuicklooks(quicklooks),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Products: %d rasters, %d quicklooks\n", len(paths), len(quicklooks))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Raster Decode ──
// Every product must decode and report a self-consistent shape.

func loadProducts(p *phase, paths []string) []product {
	var products []product
	for _, path := range paths {
		base := filepath.Base(path)
		grid, err := sar.ReadGeoTIFF(path)
		if err != nil {
			p.errorf("%s: %v", base, err)
			continue
		}
		if grid.Width <= 0 || grid.Height <= 0 {
			p.errorf("%s: degenerate size %dx%d", base, grid.Width, grid.Height)
			continue
		}
		if len(grid.Data) != grid.Width*grid.Height {
			p.errorf("%s: %d samples for %dx%d raster", base, len(grid.Data), grid.Width, grid.Height)
			continue
		}
		if len(grid.XCoords) != grid.Width || len(grid.YCoords) != grid.Height {
			p.errorf("%s: coordinate axes %dx%d do not match raster %dx%d",
				base, len(grid.XCoords), len(grid.YCoords), grid.Width, grid.Height)
		}
		if grid.DType != sar.DTypeFloat32 {
			p.errorf("%s: stored as %s, expected float32", base, grid.DType)
		}
		products = append(products, product{path: path, base: base, grid: grid})
	}
	return products
}

// ── Phase 2: Provenance ──
// Metadata tags must be complete and agree with the filename convention
// <scene>_<pol>_processed.tif.

func validateProvenance(products []product) *phase {
	p := &phase{name: "Phase 2: Provenance (metadata tags)"}

	for _, prod := range products {
		prov := prod.grid.Provenance

		if prov.Polarization == "" {
			p.errorf("%s: polarization tag missing", prod.base)
		} else if !sar.ValidPolarization(prov.Polarization) {
			p.errorf("%s: unknown polarization %q", prod.base, prov.Polarization)
		}

		switch prov.Calibration {
		case sar.CalibrationSigma0, sar.CalibrationGamma0, sar.CalibrationBeta0:
		case "":
			p.errorf("%s: calibration tag missing", prod.base)
		default:
			p.errorf("%s: unknown calibration %q", prod.base, prov.Calibration)
		}

		if prov.Units != sar.UnitsDB {
			p.errorf("%s: units %q, expected %q", prod.base, prov.Units, sar.UnitsDB)
		}
		if prov.SpeckleFilter != "" && (prov.FilterWindow < 3 || prov.FilterWindow%2 == 0) {
			p.errorf("%s: filter %q with window %d", prod.base, prov.SpeckleFilter, prov.FilterWindow)
		}
		if prov.ProcessedAt.IsZero() {
			p.errorf("%s: processed_at tag missing", prod.base)
		}

		scene, pol, ok := splitProductName(prod.base)
		if !ok {
			p.errorf("%s: name does not match <scene>_<pol>%s", prod.base, productSuffix)
			continue
		}
		if prov.Polarization != "" && pol != prov.Polarization {
			p.errorf("%s: filename band %s but polarization tag %s", prod.base, pol, prov.Polarization)
		}
		if prov.SourceScene != "" && scene != prov.SourceScene {
			p.errorf("%s: filename scene %q but source_scene tag %q", prod.base, scene, prov.SourceScene)
		}
	}
	return p
}

// splitProductName recovers scene and polarization from an output filename.
func splitProductName(base string) (scene, pol string, ok bool) {
	stem := strings.TrimSuffix(base, productSuffix)
	i := strings.LastIndex(stem, "_")
	if i <= 0 || i == len(stem)-1 {
		return "", "", false
	}
	return stem[:i], strings.ToUpper(stem[i+1:]), true
}

// ── Phase 3: Georeferencing ──
// Transforms must be north-up with non-zero pixel sizes, coordinates
// monotonic, and any CRS an EPSG code.

func validateGeoreferencing(products []product) *phase {
	p := &phase{name: "Phase 3: Georeferencing (transform, CRS)"}

	for _, prod := range products {
		tr := prod.grid.Transform
		if tr.A == 0 || tr.E == 0 {
			p.errorf("%s: zero pixel size in transform %+v", prod.base, tr)
		}
		if tr.B != 0 || tr.D != 0 {
			p.errorf("%s: rotated transform %+v, expected north-up", prod.base, tr)
		}
		if prod.grid.CRS != "" {
			if _, err := georef.EPSGCode(prod.grid.CRS); err != nil {
				p.errorf("%s: crs %q: %v", prod.base, prod.grid.CRS, err)
			}
		}
		if !monotonic(prod.grid.XCoords, tr.A > 0) {
			p.errorf("%s: x coordinates not monotonic", prod.base)
		}
		if !monotonic(prod.grid.YCoords, tr.E > 0) {
			p.errorf("%s: y coordinates not monotonic", prod.base)
		}
	}
	return p
}

func monotonic(coords []float64, increasing bool) bool {
	for i := 1; i < len(coords); i++ {
		if increasing && coords[i] <= coords[i-1] {
			return false
		}
		if !increasing && coords[i] >= coords[i-1] {
			return false
		}
	}
	return true
}

// ── Phase 4: Sample Plausibility ──
// Finite values only, and nearly all samples inside the plausible dB window.

func validateSamplePlausibility(products []product) *phase {
	p := &phase{name: "Phase 4: Sample Plausibility (dB range)"}

	for _, prod := range products {
		var nonFinite, outOfRange, counted int
		for _, v := range prod.grid.Data {
			if prod.grid.Nodata != nil && v == *prod.grid.Nodata {
				continue
			}
			counted++
			if math.IsNaN(v) || math.IsInf(v, 0) {
				nonFinite++
				continue
			}
			if v < minPlausibleDB || v > maxPlausibleDB {
				outOfRange++
			}
		}

		if nonFinite > 0 {
			p.errorf("%s: %d non-finite samples", prod.base, nonFinite)
		}
		if counted == 0 {
			continue
		}
		if frac := float64(outOfRange) / float64(counted); frac > outOfRangeTolerance {
			p.errorf("%s: %.1f%% of samples outside [%g, %g] dB",
				prod.base, frac*100, minPlausibleDB, maxPlausibleDB)
		}
	}
	return p
}

// ── Phase 5: Browse Images ──
// Quicklooks are optional, but when present must decode and respect the
// 512-pixel cap.

// quicklook pairs a browse image with the product it belongs to.
type quicklook struct {
	path string
	base string
}

func findQuicklooks(products []product) []quicklook {
	var qls []quicklook
	for _, prod := range products {
		path := strings.TrimSuffix(prod.path, ".tif") + ".png"
		if _, err := os.Stat(path); err != nil {
			continue
		}
		qls = append(qls, quicklook{path: path, base: filepath.Base(path)})
	}
	return qls
}

func validateQuicklooks(qls []quicklook) *phase {
	p := &phase{name: "Phase 5: Browse Images (quicklooks)"}

	for _, ql := range qls {
		img, err := imaging.Open(ql.path)
		if err != nil {
			p.errorf("%s: %v", ql.base, err)
			continue
		}
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			p.errorf("%s: empty image", ql.base)
		}
		if b.Dx() > 512 || b.Dy() > 512 {
			p.errorf("%s: %dx%d exceeds the 512-pixel cap", ql.base, b.Dx(), b.Dy())
		}
	}
	return p
}
