package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
	"github.com/couchcryptid/postfire-sar-etl/internal/pipeline"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

// --- mocks ---

type countStage struct {
	name  string
	calls int
	err   error
}

func (s *countStage) Name() string { return s.name }

func (s *countStage) Apply(_ context.Context, g sar.Grid) (sar.Grid, error) {
	s.calls++
	if s.err != nil {
		return sar.Grid{}, s.err
	}
	return g, nil
}

func newTestMetrics() *observability.Metrics {
	// Fresh registry per test to avoid "already registered" panics.
	return observability.NewMetricsForTesting()
}

// --- tests ---

func TestChain_Apply_FullLadder(t *testing.T) {
	// Constant DN 1000 calibrates to exactly 1.0 and converts to exactly
	// 0 dB, so the filterable grid is all zeros and every stage output is
	// exact.
	data := make([]float64, 16)
	for i := range data {
		data[i] = 1000
	}
	g := sar.NewGrid(4, 4, data, sar.Affine{A: 1, E: -1, F: 4})

	chain := pipeline.NewChain([]pipeline.Stage{
		pipeline.CalibrateStage{Calibration: "sigma0"},
		pipeline.ToDBStage{},
		pipeline.SpeckleStage{Kind: "lee", Window: 3},
		pipeline.CropStage{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4},
	}, slog.Default(), newTestMetrics())

	out, err := chain.Apply(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Width)
	assert.Equal(t, 3, out.Height)
	for i, v := range out.Data {
		assert.Equal(t, 0.0, v, "sample %d", i)
	}
	assert.Equal(t, []float64{1, 2, 3}, out.XCoords)
	assert.Equal(t, []float64{4, 3, 2}, out.YCoords)
	assert.Equal(t, 1.0, out.Transform.C)
	assert.Equal(t, 4.0, out.Transform.F)

	p := out.Provenance
	assert.Equal(t, "sigma0", p.Calibration)
	assert.Equal(t, "dB", p.Units)
	assert.Equal(t, "lee", p.SpeckleFilter)
	assert.Equal(t, 3, p.FilterWindow)
	assert.True(t, p.Cropped)

	// The input grid is untouched.
	assert.Equal(t, 1000.0, g.Data[0])
	assert.Equal(t, sar.Provenance{}, g.Provenance)
}

func TestChain_Apply_FullExtentCropKeepsShape(t *testing.T) {
	// Integer DNs whose squares stay under 2^24, so the float32 squaring
	// is exact and the expected dB values can be recomputed sample by
	// sample.
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64((i + 1) * 100)
	}
	g := sar.NewGrid(4, 4, data, sar.Affine{A: 1, E: -1, F: 4})

	chain := pipeline.NewChain([]pipeline.Stage{
		pipeline.CalibrateStage{},
		pipeline.ToDBStage{},
		pipeline.CropStage{MinX: 0, MinY: 1, MaxX: 3, MaxY: 4},
	}, slog.Default(), newTestMetrics())

	out, err := chain.Apply(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 4, out.Height)
	assert.Equal(t, []float64{0, 1, 2, 3}, out.XCoords)
	assert.Equal(t, []float64{4, 3, 2, 1}, out.YCoords)

	p := out.Provenance
	assert.Equal(t, "sigma0", p.Calibration)
	assert.Equal(t, "dB", p.Units)
	assert.Empty(t, p.SpeckleFilter)
	assert.True(t, p.Cropped)

	for i, v := range out.Data {
		f := float32(data[i])
		want := 10 * math.Log10(float64(f*f/1e6))
		assert.InDelta(t, want, v, 1e-12, "sample %d", i)
	}
}

func TestChain_Apply_StageErrorNamesStage(t *testing.T) {
	g := sar.NewGrid(1, 1, []float64{1}, sar.Affine{A: 1, E: -1})

	chain := pipeline.NewChain([]pipeline.Stage{
		pipeline.CalibrateStage{Calibration: "terrain"},
	}, slog.Default(), newTestMetrics())

	_, err := chain.Apply(context.Background(), g)
	require.ErrorIs(t, err, sar.ErrUnsupportedCalibration)
	assert.Contains(t, err.Error(), "stage calibrate")
}

func TestChain_Apply_StopsAfterFailedStage(t *testing.T) {
	first := &countStage{name: "first", err: errors.New("boom")}
	second := &countStage{name: "second"}

	chain := pipeline.NewChain([]pipeline.Stage{first, second}, slog.Default(), newTestMetrics())

	_, err := chain.Apply(context.Background(), sar.NewGrid(1, 1, []float64{1}, sar.Affine{A: 1, E: -1}))
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls)
}

func TestChain_Apply_ContextCancelled(t *testing.T) {
	stage := &countStage{name: "never"}
	chain := pipeline.NewChain([]pipeline.Stage{stage}, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Apply(ctx, sar.NewGrid(1, 1, []float64{1}, sar.Affine{A: 1, E: -1}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stage.calls)
}

func TestChain_Apply_NoStages(t *testing.T) {
	g := sar.NewGrid(2, 1, []float64{7, 8}, sar.Affine{A: 1, E: -1})
	chain := pipeline.NewChain(nil, slog.Default(), newTestMetrics())

	out, err := chain.Apply(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, g.Data, out.Data)
}
