package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CDSE endpoint defaults, overridable for tests and mirrors.
const (
	DefaultCDSESearchURL = "https://catalogue.dataspace.copernicus.eu/resto/api/collections/Sentinel1/search.json"
	DefaultCDSETokenURL  = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
)

// Bounds is a crop window in grid coordinate units, minx,miny,maxx,maxy.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputDir      string
	OutputDir     string
	Polarizations []string
	Calibration   string
	SpeckleFilter string // empty when filtering is disabled
	FilterWindow  int
	CropBounds    *Bounds // nil when no fixed crop window is set
	BoundaryPath  string
	Overwrite     bool
	Quicklook     bool
	PollInterval  time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka product publishing configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Copernicus Data Space catalog configuration.
	CDSEUsername   string
	CDSEPassword   string
	CDSESearchURL  string
	CDSETokenURL   string
	CDSETimeout    time.Duration
	ProductType    string
	SensorMode     string
	OrbitDirection string
	QueryLookback  time.Duration

	// GEDI granule search configuration.
	GEDIProduct   string
	GEDITimeout   time.Duration
	GEDICacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	cdseTimeout, err := parseDuration("CDSE_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}
	queryLookback, err := parseDuration("QUERY_LOOKBACK", "720h")
	if err != nil {
		return nil, err
	}
	gediTimeout, err := parseDuration("GEDI_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	filterWindow, err := parseFilterWindow()
	if err != nil {
		return nil, err
	}
	cropBounds, err := parseCropBounds()
	if err != nil {
		return nil, err
	}

	speckleFilter := envOrDefault("SPECKLE_FILTER", "lee")
	if speckleFilter == "none" {
		speckleFilter = ""
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		InputDir:      envOrDefault("INPUT_DIR", "data/scenes"),
		OutputDir:     envOrDefault("OUTPUT_DIR", "data/processed"),
		Polarizations: splitList(envOrDefault("POLARIZATIONS", "VV,VH")),
		Calibration:   envOrDefault("CALIBRATION", "sigma0"),
		SpeckleFilter: speckleFilter,
		FilterWindow:  filterWindow,
		CropBounds:    cropBounds,
		BoundaryPath:  os.Getenv("BOUNDARY_GEOJSON"),
		Overwrite:     os.Getenv("OVERWRITE") == "true",
		Quicklook:     envOrDefault("QUICKLOOK_ENABLED", "true") == "true",
		PollInterval:  pollInterval,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "sar-products"),

		CDSEUsername:   os.Getenv("CDSE_USERNAME"),
		CDSEPassword:   os.Getenv("CDSE_PASSWORD"),
		CDSESearchURL:  envOrDefault("CDSE_SEARCH_URL", DefaultCDSESearchURL),
		CDSETokenURL:   envOrDefault("CDSE_TOKEN_URL", DefaultCDSETokenURL),
		CDSETimeout:    cdseTimeout,
		ProductType:    envOrDefault("PRODUCT_TYPE", "GRD"),
		SensorMode:     envOrDefault("SENSOR_MODE", "IW"),
		OrbitDirection: os.Getenv("ORBIT_DIRECTION"),
		QueryLookback:  queryLookback,

		GEDIProduct:   envOrDefault("GEDI_PRODUCT", "GEDI02_A"),
		GEDITimeout:   gediTimeout,
		GEDICacheSize: parseCacheSize(),
	}

	if cfg.InputDir == "" {
		return nil, errors.New("INPUT_DIR is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.Polarizations) == 0 {
		return nil, errors.New("POLARIZATIONS is required")
	}
	for _, p := range cfg.Polarizations {
		switch p {
		case "VV", "VH", "HH", "HV":
		default:
			return nil, fmt.Errorf("POLARIZATIONS contains unknown band %q", p)
		}
	}
	switch cfg.Calibration {
	case "sigma0", "gamma0", "beta0":
	default:
		return nil, errors.New("CALIBRATION must be one of sigma0, gamma0, beta0")
	}
	switch cfg.SpeckleFilter {
	case "", "lee", "refined_lee", "median":
	default:
		return nil, errors.New("SPECKLE_FILTER must be one of lee, refined_lee, median, none")
	}
	switch cfg.ProductType {
	case "GRD", "SLC", "OCN":
	default:
		return nil, errors.New("PRODUCT_TYPE must be one of GRD, SLC, OCN")
	}
	switch cfg.SensorMode {
	case "IW", "EW", "SM", "WV":
	default:
		return nil, errors.New("SENSOR_MODE must be one of IW, EW, SM, WV")
	}
	switch cfg.OrbitDirection {
	case "", "ASCENDING", "DESCENDING":
	default:
		return nil, errors.New("ORBIT_DIRECTION must be ASCENDING or DESCENDING")
	}
	switch cfg.GEDIProduct {
	case "GEDI01_B", "GEDI02_A", "GEDI02_B", "GEDI04_A":
	default:
		return nil, errors.New("GEDI_PRODUCT must be one of GEDI01_B, GEDI02_A, GEDI02_B, GEDI04_A")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is not set")
		}
	}
	if cfg.CDSEUsername != "" && cfg.CDSEPassword == "" {
		return nil, errors.New("CDSE_USERNAME is set but CDSE_PASSWORD is not")
	}
	if cfg.CDSEPassword != "" && cfg.CDSEUsername == "" {
		return nil, errors.New("CDSE_PASSWORD is set but CDSE_USERNAME is not")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty elements.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFilterWindow() (int, error) {
	s := envOrDefault("FILTER_WINDOW", "5")
	n, err := strconv.Atoi(s)
	if err != nil || n < 3 || n%2 == 0 {
		return 0, errors.New("FILTER_WINDOW must be an odd integer >= 3")
	}
	return n, nil
}

func parseCropBounds() (*Bounds, error) {
	s := os.Getenv("CROP_BOUNDS")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.New("CROP_BOUNDS must be minx,miny,maxx,maxy")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("CROP_BOUNDS must be minx,miny,maxx,maxy")
		}
		vals[i] = v
	}
	b := &Bounds{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return nil, errors.New("CROP_BOUNDS must have minx <= maxx and miny <= maxy")
	}
	return b, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEDI_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
