package sar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ProductRecord is the message published downstream after a scene's band
// has been processed and written.
type ProductRecord struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id,omitempty"`
	Scene         string    `json:"scene"`
	Polarization  string    `json:"polarization"`
	Path          string    `json:"path"`
	QuicklookPath string    `json:"quicklook_path,omitempty"`
	Units         string    `json:"units,omitempty"`
	Calibration   string    `json:"calibration,omitempty"`
	SpeckleFilter string    `json:"speckle_filter,omitempty"`
	FilterWindow  int       `json:"filter_window,omitempty"`
	Cropped       bool      `json:"cropped,omitempty"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// NewProductRecord derives the published record for a written grid.
func NewProductRecord(g Grid, outputPath, quicklookPath string) ProductRecord {
	p := g.Provenance
	return ProductRecord{
		ID:            generateID(p.SourceScene, p.Polarization, outputPath),
		Scene:         p.SourceScene,
		Polarization:  p.Polarization,
		Path:          outputPath,
		QuicklookPath: quicklookPath,
		Units:         p.Units,
		Calibration:   p.Calibration,
		SpeckleFilter: p.SpeckleFilter,
		FilterWindow:  p.FilterWindow,
		Cropped:       p.Cropped,
		Width:         g.Width,
		Height:        g.Height,
		ProcessedAt:   clock.Now().UTC(),
	}
}

// generateID produces a deterministic identifier from the fields that make
// a product unique. Reprocessing the same scene and band to the same path
// yields the same ID, so downstream consumers can dedupe replays.
func generateID(scene, polarization, path string) string {
	input := fmt.Sprintf("%s|%s|%s", scene, polarization, path)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if polarization == "" {
		return short
	}
	return strings.ToLower(polarization) + "-" + short
}
