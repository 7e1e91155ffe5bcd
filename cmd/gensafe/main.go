// Command gensafe writes a synthetic Sentinel-1 SAFE archive with
// deterministic measurement rasters. The archives are small stand-ins for
// real scenes in local runs and demos, so the watcher and the preprocess
// command can be exercised without a Copernicus account.
//
// Usage:
//
//	go run ./cmd/gensafe \
//	  -out data/scenes/S1A_IW_GRDH_1SDV_20250712T052100_MOCK.zip \
//	  -width 64 -height 64 -pols VV,VH -seed 42
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/postfire-sar-etl/internal/geotiff"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

const defaultScene = "S1A_IW_GRDH_1SDV_20250712T052100_049821_05F3C2_MOCK"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the .zip archive")
	width := flag.Int("width", 64, "raster width in pixels")
	height := flag.Int("height", 64, "raster height in pixels")
	pols := flag.String("pols", "VV,VH", "comma-separated polarization bands to include")
	seed := flag.Int64("seed", 42, "random seed for the measurement data")
	scene := flag.String("scene", defaultScene, "scene name used inside the archive")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	var bands []string
	for _, p := range strings.Split(*pols, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !sar.ValidPolarization(p) {
			return fmt.Errorf("unknown polarization %q", p)
		}
		bands = append(bands, p)
	}
	if len(bands) == 0 {
		return fmt.Errorf("no polarization bands requested")
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	manifest, err := zw.Create(*scene + ".SAFE/manifest.safe")
	if err != nil {
		return err
	}
	fmt.Fprintf(manifest, "<xfdu:XFDU><!-- synthetic archive for %s --></xfdu:XFDU>\n", *scene)

	rng := rand.New(rand.NewSource(*seed))
	for _, pol := range bands {
		name := measurementName(*scene, pol)
		data, err := renderBand(rng, *width, *height)
		if err != nil {
			return fmt.Errorf("render %s band: %w", pol, err)
		}
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		log.Printf("%s: %dx%d, %d bytes", name, *width, *height, len(data))
	}

	if err := zw.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("wrote archive: %s", *out)
	return nil
}

// measurementName mimics the real product layout: measurement rasters live
// under measurement/ and carry the lowercased polarization in the name.
func measurementName(scene, pol string) string {
	return fmt.Sprintf("%s.SAFE/measurement/s1a-iw-grd-%s-%s-001.tiff",
		scene, strings.ToLower(pol), strings.ToLower(scene))
}

// renderBand encodes a raster of plausible GRD digital numbers. Real
// measurement rasters carry no georeferencing tags, so neither do these.
func renderBand(rng *rand.Rand, width, height int) ([]byte, error) {
	samples := make([]float64, width*height)
	for i := range samples {
		// DN values roughly matching land backscatter after a burn: a dim
		// base with occasional bright returns.
		dn := 200 + rng.Intn(1800)
		if rng.Intn(50) == 0 {
			dn += 5000
		}
		samples[i] = float64(dn)
	}
	img := geotiff.Image{
		Width:   width,
		Height:  height,
		DType:   geotiff.Uint16,
		Samples: samples,
	}
	return geotiff.Encode(&img)
}
