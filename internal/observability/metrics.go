package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// preprocessing service.
type Metrics struct {
	ScenesProcessed   prometheus.Counter
	BandsExtracted    prometheus.Counter
	TransformErrors   prometheus.Counter
	ProductsPublished prometheus.Counter
	WatcherRunning    prometheus.Gauge

	// Processing timing.
	StageDuration           *prometheus.HistogramVec // label: stage={calibrate,to_db,speckle,crop,clip}
	SceneProcessingDuration prometheus.Histogram

	// Catalog download metrics.
	DownloadsTotal   prometheus.Counter
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram

	// GEDI granule search metrics.
	GranuleSearches *prometheus.CounterVec // labels: outcome={success,error}
	GranuleCache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScenesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "scenes_processed_total",
			Help:      "Total scene bands processed end to end.",
		}),
		BandsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "bands_extracted_total",
			Help:      "Total measurement bands extracted from SAFE archives.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "transform_errors_total",
			Help:      "Total scene bands that failed during processing.",
		}),
		ProductsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "products_published_total",
			Help:      "Total product records published to the sink topic.",
		}),
		WatcherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sar_etl",
			Name:      "watcher_running",
			Help:      "1 when the scene watcher is active, 0 when shut down.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sar_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		SceneProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sar_etl",
			Name:      "scene_processing_duration_seconds",
			Help:      "Duration of a complete extract-transform-write cycle for one band.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		DownloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "downloads_total",
			Help:      "Total product archives downloaded from the catalog.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "download_bytes_total",
			Help:      "Total bytes of product archives downloaded.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sar_etl",
			Name:      "download_duration_seconds",
			Help:      "Duration of product archive downloads.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		GranuleSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "granule_searches_total",
			Help:      "GEDI granule catalog searches by outcome.",
		}, []string{"outcome"}),
		GranuleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sar_etl",
			Name:      "granule_cache_total",
			Help:      "Granule search cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.ScenesProcessed,
		m.BandsExtracted,
		m.TransformErrors,
		m.ProductsPublished,
		m.WatcherRunning,
		m.StageDuration,
		m.SceneProcessingDuration,
		m.DownloadsTotal,
		m.DownloadBytes,
		m.DownloadDuration,
		m.GranuleSearches,
		m.GranuleCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ScenesProcessed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_etl", Name: "scenes_processed_total"}),
		BandsExtracted:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_etl", Name: "bands_extracted_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_etl", Name: "transform_errors_total"}),
		ProductsPublished:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_etl", Name: "products_published_total"}),
		WatcherRunning:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sar_etl", Name: "watcher_running"}),
		StageDuration:           prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "sar_etl", Name: "stage_duration_seconds"}, []string{"stage"}),
		SceneProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sar_etl", Name: "scene_processing_duration_seconds"}),
		DownloadsTotal:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_etl", Name: "downloads_total"}),
		DownloadBytes:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sar_etl", Name: "download_bytes_total"}),
		DownloadDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sar_etl", Name: "download_duration_seconds"}),
		GranuleSearches:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sar_etl", Name: "granule_searches_total"}, []string{"outcome"}),
		GranuleCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "sar_etl", Name: "granule_cache_total"}, []string{"result"}),
	}
}
