package cdse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
)

// searchTimeout bounds catalog search calls. Downloads get their own,
// much longer timeout from configuration.
const searchTimeout = 30 * time.Second

// Fetcher pulls new Sentinel-1 archives for the configured boundary into
// the input directory, where the directory scan picks them up.
type Fetcher struct {
	client       *Client
	downloader   *Downloader
	boundaryPath string
	lookback     time.Duration
	query        Query
	logger       *slog.Logger
}

// NewFetcher wires a catalog client and downloader from configuration.
func NewFetcher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		client: NewClient(cfg.CDSESearchURL, searchTimeout, logger),
		downloader: NewDownloader(
			cfg.CDSEUsername, cfg.CDSEPassword, cfg.CDSETokenURL,
			cfg.InputDir, cfg.CDSETimeout, logger, metrics),
		boundaryPath: cfg.BoundaryPath,
		lookback:     cfg.QueryLookback,
		query: Query{
			ProductType:    cfg.ProductType,
			SensorMode:     cfg.SensorMode,
			OrbitDirection: cfg.OrbitDirection,
		},
		logger: logger,
	}
}

// FetchScenes searches the lookback window over the boundary's bounds
// and downloads whatever is not already on disk.
func (f *Fetcher) FetchScenes(ctx context.Context) ([]string, error) {
	end := time.Now().UTC()
	q := f.query
	q.Start = end.Add(-f.lookback)
	q.End = end

	products, err := f.client.SearchByBoundary(ctx, f.boundaryPath, q)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	if len(products) == 0 {
		f.logger.Debug("no catalog products in window",
			"lookback", f.lookback.String())
		return nil, nil
	}
	return f.downloader.Download(ctx, products)
}
