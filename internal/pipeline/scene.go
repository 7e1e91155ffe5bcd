package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
	"github.com/couchcryptid/postfire-sar-etl/internal/quicklook"
	"github.com/couchcryptid/postfire-sar-etl/internal/safe"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

// ProductPublisher delivers records for written products. A nil publisher
// disables publishing.
type ProductPublisher interface {
	Publish(ctx context.Context, rec sar.ProductRecord) error
}

// ProcessRequest identifies one band of one archive to preprocess.
type ProcessRequest struct {
	Archive      string
	Polarization string
	RunID        string
}

// SceneProcessor runs the preprocessing chain for single scene bands:
// extract, calibrate, convert to dB, filter, crop or clip, write, publish.
// It holds no per-scene state, so callers may process scenes concurrently.
type SceneProcessor struct {
	cfg       *config.Config
	publisher ProductPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewSceneProcessor wires a processor from config. publisher may be nil.
func NewSceneProcessor(cfg *config.Config, publisher ProductPublisher, logger *slog.Logger, metrics *observability.Metrics) *SceneProcessor {
	return &SceneProcessor{cfg: cfg, publisher: publisher, logger: logger, metrics: metrics}
}

// OutputPath returns where the processed band of a scene is written.
func (p *SceneProcessor) OutputPath(scene, polarization string) string {
	name := fmt.Sprintf("%s_%s_processed.tif", scene, strings.ToLower(polarization))
	return filepath.Join(p.cfg.OutputDir, name)
}

// Process preprocesses one polarization band of a SAFE archive, writes
// the raster (and quicklook when enabled), and publishes the product
// record. The returned record describes the written product.
func (p *SceneProcessor) Process(ctx context.Context, req ProcessRequest) (sar.ProductRecord, error) {
	start := time.Now()
	logger := p.logger
	if req.RunID != "" {
		logger = logger.With("run_id", req.RunID)
	}

	extractor, err := safe.NewExtractor(req.Archive, logger)
	if err != nil {
		return sar.ProductRecord{}, err
	}

	g, err := extractor.Extract(req.Polarization)
	if err != nil {
		return sar.ProductRecord{}, err
	}
	p.metrics.BandsExtracted.Inc()

	g, err = p.buildChain(logger).Apply(ctx, g)
	if err != nil {
		p.metrics.TransformErrors.Inc()
		return sar.ProductRecord{}, err
	}
	if g.Width == 0 || g.Height == 0 {
		logger.Warn("crop window left an empty grid",
			"scene", g.Provenance.SourceScene, "polarization", req.Polarization)
	}

	g.Provenance.ProcessedAt = sar.Now().UTC()

	outPath := p.OutputPath(g.Provenance.SourceScene, req.Polarization)
	if err := sar.WriteRaster(g, outPath, sar.DriverGTiff, logger); err != nil {
		p.metrics.TransformErrors.Inc()
		return sar.ProductRecord{}, fmt.Errorf("write raster: %w", err)
	}

	qlPath := ""
	if p.cfg.Quicklook {
		qlPath = strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".png"
		if err := quicklook.WritePNG(g, qlPath); err != nil {
			// The raster is already on disk; a missing browse image is
			// not worth failing the scene for.
			logger.Warn("quicklook render failed", "path", qlPath, "error", err)
			qlPath = ""
		}
	}

	rec := sar.NewProductRecord(g, outPath, qlPath)
	rec.RunID = req.RunID

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, rec); err != nil {
			return rec, fmt.Errorf("publish product: %w", err)
		}
		p.metrics.ProductsPublished.Inc()
	}

	elapsed := time.Since(start)
	p.metrics.ScenesProcessed.Inc()
	p.metrics.SceneProcessingDuration.Observe(elapsed.Seconds())
	logger.Info("scene band processed",
		"scene", rec.Scene, "polarization", rec.Polarization,
		"path", outPath, "width", rec.Width, "height", rec.Height,
		"duration", elapsed)
	return rec, nil
}

// buildChain assembles the stage list from config. Calibration and dB
// conversion always run; filtering, cropping, and boundary annotation are
// optional.
func (p *SceneProcessor) buildChain(logger *slog.Logger) *Chain {
	stages := []Stage{
		CalibrateStage{Calibration: p.cfg.Calibration},
		ToDBStage{},
	}
	if p.cfg.SpeckleFilter != "" {
		stages = append(stages, SpeckleStage{Kind: p.cfg.SpeckleFilter, Window: p.cfg.FilterWindow})
	}
	if b := p.cfg.CropBounds; b != nil {
		stages = append(stages, CropStage{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY})
	}
	if p.cfg.BoundaryPath != "" {
		stages = append(stages, ClipStage{BoundaryPath: p.cfg.BoundaryPath, Logger: logger})
	}
	return NewChain(stages, logger, p.metrics)
}
