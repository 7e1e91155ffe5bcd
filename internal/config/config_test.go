package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/scenes", cfg.InputDir)
	assert.Equal(t, "data/processed", cfg.OutputDir)
	assert.Equal(t, []string{"VV", "VH"}, cfg.Polarizations)
	assert.Equal(t, "sigma0", cfg.Calibration)
	assert.Equal(t, "lee", cfg.SpeckleFilter)
	assert.Equal(t, 5, cfg.FilterWindow)
	assert.Nil(t, cfg.CropBounds)
	assert.Empty(t, cfg.BoundaryPath)
	assert.False(t, cfg.Overwrite)
	assert.True(t, cfg.Quicklook)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "sar-products", cfg.KafkaTopic)
	assert.Empty(t, cfg.CDSEUsername)
	assert.Equal(t, DefaultCDSESearchURL, cfg.CDSESearchURL)
	assert.Equal(t, DefaultCDSETokenURL, cfg.CDSETokenURL)
	assert.Equal(t, 10*time.Minute, cfg.CDSETimeout)
	assert.Equal(t, "GRD", cfg.ProductType)
	assert.Equal(t, "IW", cfg.SensorMode)
	assert.Empty(t, cfg.OrbitDirection)
	assert.Equal(t, 720*time.Hour, cfg.QueryLookback)
	assert.Equal(t, "GEDI02_A", cfg.GEDIProduct)
	assert.Equal(t, 30*time.Second, cfg.GEDITimeout)
	assert.Equal(t, 1000, cfg.GEDICacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("INPUT_DIR", "/srv/scenes")
	t.Setenv("OUTPUT_DIR", "/srv/processed")
	t.Setenv("POLARIZATIONS", "VV, HH")
	t.Setenv("CALIBRATION", "gamma0")
	t.Setenv("SPECKLE_FILTER", "median")
	t.Setenv("FILTER_WINDOW", "7")
	t.Setenv("CROP_BOUNDS", "1.5,2,3.5,4")
	t.Setenv("BOUNDARY_GEOJSON", "/srv/fire.geojson")
	t.Setenv("OVERWRITE", "true")
	t.Setenv("QUICKLOOK_ENABLED", "false")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "fire-products")
	t.Setenv("CDSE_USERNAME", "analyst@example.org")
	t.Setenv("CDSE_PASSWORD", "hunter2")
	t.Setenv("CDSE_SEARCH_URL", "http://localhost:9901/search.json")
	t.Setenv("CDSE_TOKEN_URL", "http://localhost:9902/token")
	t.Setenv("CDSE_TIMEOUT", "1m")
	t.Setenv("PRODUCT_TYPE", "SLC")
	t.Setenv("SENSOR_MODE", "EW")
	t.Setenv("ORBIT_DIRECTION", "ASCENDING")
	t.Setenv("QUERY_LOOKBACK", "24h")
	t.Setenv("GEDI_PRODUCT", "GEDI04_A")
	t.Setenv("GEDI_TIMEOUT", "10s")
	t.Setenv("GEDI_CACHE_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/scenes", cfg.InputDir)
	assert.Equal(t, "/srv/processed", cfg.OutputDir)
	assert.Equal(t, []string{"VV", "HH"}, cfg.Polarizations)
	assert.Equal(t, "gamma0", cfg.Calibration)
	assert.Equal(t, "median", cfg.SpeckleFilter)
	assert.Equal(t, 7, cfg.FilterWindow)
	require.NotNil(t, cfg.CropBounds)
	assert.Equal(t, Bounds{MinX: 1.5, MinY: 2, MaxX: 3.5, MaxY: 4}, *cfg.CropBounds)
	assert.Equal(t, "/srv/fire.geojson", cfg.BoundaryPath)
	assert.True(t, cfg.Overwrite)
	assert.False(t, cfg.Quicklook)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fire-products", cfg.KafkaTopic)
	assert.Equal(t, "analyst@example.org", cfg.CDSEUsername)
	assert.Equal(t, "hunter2", cfg.CDSEPassword)
	assert.Equal(t, "http://localhost:9901/search.json", cfg.CDSESearchURL)
	assert.Equal(t, "http://localhost:9902/token", cfg.CDSETokenURL)
	assert.Equal(t, time.Minute, cfg.CDSETimeout)
	assert.Equal(t, "SLC", cfg.ProductType)
	assert.Equal(t, "EW", cfg.SensorMode)
	assert.Equal(t, "ASCENDING", cfg.OrbitDirection)
	assert.Equal(t, 24*time.Hour, cfg.QueryLookback)
	assert.Equal(t, "GEDI04_A", cfg.GEDIProduct)
	assert.Equal(t, 10*time.Second, cfg.GEDITimeout)
	assert.Equal(t, 50, cfg.GEDICacheSize)
}

func TestLoad_SpeckleFilterNone(t *testing.T) {
	t.Setenv("SPECKLE_FILTER", "none")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.SpeckleFilter)
}

func TestLoad_EmptyPolarizations(t *testing.T) {
	t.Setenv("POLARIZATIONS", ",")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLARIZATIONS")
}

func TestLoad_UnknownPolarization(t *testing.T) {
	t.Setenv("POLARIZATIONS", "VV,XX")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLARIZATIONS")
}

func TestLoad_UnknownCalibration(t *testing.T) {
	t.Setenv("CALIBRATION", "terrain")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALIBRATION")
}

func TestLoad_UnknownSpeckleFilter(t *testing.T) {
	t.Setenv("SPECKLE_FILTER", "kuan")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPECKLE_FILTER")
}

func TestLoad_EvenFilterWindow(t *testing.T) {
	t.Setenv("FILTER_WINDOW", "4")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILTER_WINDOW")
}

func TestLoad_FilterWindowTooSmall(t *testing.T) {
	t.Setenv("FILTER_WINDOW", "1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILTER_WINDOW")
}

func TestLoad_MalformedCropBounds(t *testing.T) {
	t.Setenv("CROP_BOUNDS", "1,2,3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CROP_BOUNDS")
}

func TestLoad_InvertedCropBounds(t *testing.T) {
	t.Setenv("CROP_BOUNDS", "5,2,3,4")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CROP_BOUNDS")
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_UnknownProductType(t *testing.T) {
	t.Setenv("PRODUCT_TYPE", "RAW")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRODUCT_TYPE")
}

func TestLoad_UnknownSensorMode(t *testing.T) {
	t.Setenv("SENSOR_MODE", "XX")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SENSOR_MODE")
}

func TestLoad_InvalidOrbitDirection(t *testing.T) {
	t.Setenv("ORBIT_DIRECTION", "SIDEWAYS")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORBIT_DIRECTION")
}

func TestLoad_UnknownGEDIProduct(t *testing.T) {
	t.Setenv("GEDI_PRODUCT", "GEDI99_Z")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEDI_PRODUCT")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", ",")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_CDSEUsernameWithoutPassword(t *testing.T) {
	t.Setenv("CDSE_USERNAME", "analyst@example.org")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CDSE_PASSWORD")
}

func TestLoad_CDSEPasswordWithoutUsername(t *testing.T) {
	t.Setenv("CDSE_PASSWORD", "hunter2")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CDSE_USERNAME")
}
