// Command preprocess runs the processing ladder over a single Sentinel-1
// SAFE archive and writes the result as a GeoTIFF. It is the one-shot
// counterpart to the watcher service, useful for reprocessing a scene or
// trying out filter settings.
//
// Usage:
//
//	go run ./cmd/preprocess \
//	  -archive data/scenes/S1A_IW_GRDH_1SDV_20250712T052100.zip \
//	  -polarization VV \
//	  -filter lee -window 5 \
//	  -boundary data/fire_boundary.geojson \
//	  -out data/processed
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
	"github.com/couchcryptid/postfire-sar-etl/internal/pipeline"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	archive := flag.String("archive", "", "path to a Sentinel-1 SAFE .zip archive")
	polarization := flag.String("polarization", sar.PolVV, "polarization band to extract (VV, VH, HH, HV)")
	calibration := flag.String("calibration", sar.CalibrationSigma0, "radiometric calibration (sigma0, gamma0, beta0)")
	filter := flag.String("filter", "none", "speckle filter (lee, refined_lee, median, none)")
	window := flag.Int("window", 5, "speckle filter window size, odd and >= 3")
	bounds := flag.String("bounds", "", "crop bounds as minx,miny,maxx,maxy in grid coordinates")
	boundary := flag.String("boundary", "", "GeoJSON boundary file to record against the output")
	out := flag.String("out", "data/processed", "output directory")
	quicklook := flag.Bool("quicklook", false, "also render a PNG browse image")
	flag.Parse()

	if *archive == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -archive")
	}

	_ = godotenv.Load()

	cfg := &config.Config{
		OutputDir:    *out,
		Calibration:  *calibration,
		BoundaryPath: *boundary,
		Quicklook:    *quicklook,
		LogLevel:     "info",
		LogFormat:    "text",
	}
	if *filter != "" && *filter != "none" {
		cfg.SpeckleFilter = *filter
		cfg.FilterWindow = *window
	}
	if *bounds != "" {
		cb, err := parseBounds(*bounds)
		if err != nil {
			return err
		}
		cfg.CropBounds = cb
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	processor := pipeline.NewSceneProcessor(cfg, nil, logger, metrics)
	rec, err := processor.Process(context.Background(), pipeline.ProcessRequest{
		Archive:      *archive,
		Polarization: strings.ToUpper(*polarization),
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')
	_, err = os.Stdout.Write(data)
	return err
}

func parseBounds(raw string) (*config.Bounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("-bounds must be minx,miny,maxx,maxy")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("-bounds must be minx,miny,maxx,maxy: %w", err)
		}
		vals[i] = v
	}
	return &config.Bounds{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}
