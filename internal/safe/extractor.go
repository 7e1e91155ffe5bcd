// Package safe extracts measurement bands from Sentinel-1 SAFE zip
// archives.
package safe

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/postfire-sar-etl/internal/geotiff"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

// Extractor loads polarization bands from one SAFE archive. The archive
// is opened per extraction, not held open between calls.
type Extractor struct {
	path   string
	logger *slog.Logger
}

// NewExtractor verifies the archive exists and returns an extractor for
// it. Missing files surface the underlying not-found error.
func NewExtractor(path string, logger *slog.Logger) (*Extractor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("SAFE archive: %w", err)
	}
	return &Extractor{path: path, logger: logger}, nil
}

// Extract decodes the measurement raster for one polarization into a
// grid. Matching entries live under measurement/, carry the lowercase
// polarization token in their name, and end in .tiff. With several
// matches the lexically first wins and the rest are logged, since that
// indicates an unexpected archive layout. The raster is decoded fully in
// memory; nothing is unpacked to disk.
func (e *Extractor) Extract(polarization string) (sar.Grid, error) {
	if !sar.ValidPolarization(polarization) {
		return sar.Grid{}, fmt.Errorf("invalid polarization %q", polarization)
	}

	zr, err := zip.OpenReader(e.path)
	if err != nil {
		return sar.Grid{}, fmt.Errorf("open SAFE archive: %w", err)
	}
	defer zr.Close()

	matches := measurementEntries(zr.File, polarization)
	if len(matches) == 0 {
		return sar.Grid{}, fmt.Errorf("%w: no %s measurement in %s", sar.ErrBandNotFound, polarization, filepath.Base(e.path))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	if len(matches) > 1 {
		e.logger.Warn("multiple measurement files match, using first",
			"polarization", polarization, "matches", len(matches), "chosen", matches[0].Name)
	}

	img, err := decodeEntry(matches[0])
	if err != nil {
		return sar.Grid{}, fmt.Errorf("decode %s: %w", matches[0].Name, err)
	}

	g := sar.FromImage(img)
	g.Provenance.Polarization = polarization
	g.Provenance.SourceScene = SceneName(e.path)
	e.logger.Info("extracted band",
		"polarization", polarization, "entry", matches[0].Name,
		"width", g.Width, "height", g.Height)
	return g, nil
}

// SceneName derives the scene identifier from an archive path by
// stripping the directory and the .zip / .SAFE suffixes.
func SceneName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".zip")
	name = strings.TrimSuffix(name, ".SAFE")
	return name
}

// measurementEntries filters archive entries down to measurement rasters
// for the requested polarization. The polarization token is matched
// case-insensitively; the layout markers are matched as SAFE writes them.
func measurementEntries(files []*zip.File, polarization string) []*zip.File {
	token := "-" + strings.ToLower(polarization) + "-"
	var matches []*zip.File
	for _, f := range files {
		if strings.Contains(f.Name, "measurement/") &&
			strings.Contains(strings.ToLower(f.Name), token) &&
			strings.HasSuffix(f.Name, ".tiff") {
			matches = append(matches, f)
		}
	}
	return matches
}

func decodeEntry(f *zip.File) (*geotiff.Image, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return geotiff.Decode(raw)
}
