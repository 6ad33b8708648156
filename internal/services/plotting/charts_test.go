package plotting

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"

	"harshcond-go/internal/models"
)

func requirePNG(t *testing.T, path string, dpi int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err, path)
	assert.InDelta(t, 6.4*float64(dpi), cfg.Width, 1)
	assert.InDelta(t, 4.8*float64(dpi), cfg.Height, 1)
}

func TestDetectionStatsWritesCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	p := New(dir, 50)

	clean := NewSeries(models.ConditionClean, "", []models.FrameStatRecord{
		rec(0, models.ConditionClean, "", 2, 0.8),
		rec(1, models.ConditionClean, "", 4, 0.6),
	})
	degraded := NewSeries(models.ConditionDegraded, "", []models.FrameStatRecord{
		rec(0, models.ConditionDegraded, "", 0, 0),
		rec(1, models.ConditionDegraded, "", 1, 0.3),
	})

	summaries, err := p.DetectionStats(clean, degraded)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.InDelta(t, 3.0, summaries[0].AvgDetections, 1e-9)
	assert.InDelta(t, 0.5, summaries[1].AvgDetections, 1e-9)
	assert.InDelta(t, 0.3, summaries[1].AvgConfidence, 1e-9)

	for _, name := range []string{DetectionsVsFrameFile, ConfidenceVsFrameFile, AvgDetectionsBarFile, AvgConfidenceBarFile} {
		requirePNG(t, filepath.Join(dir, name), 50)
	}
}

func TestDetectionStatsEmptySeries(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, 30)

	_, err := p.DetectionStats(NewSeries(models.ConditionClean, "", nil), NewSeries(models.ConditionDegraded, "", nil))
	require.NoError(t, err)
	requirePNG(t, filepath.Join(dir, AvgDetectionsBarFile), 30)
}

func TestModelsComparisonWritesCharts(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, 40)

	records := []models.FrameStatRecord{
		rec(0, models.ConditionClean, "yolov8n", 2, 0.5),
		rec(1, models.ConditionClean, "yolov8n", 4, 0.7),
		rec(0, models.ConditionDegraded, "yolov8n", 1, 0.2),
		rec(0, models.ConditionClean, "yolov8s", 3, 0.9),
	}

	summaries, err := p.ModelsComparison(records)
	require.NoError(t, err)
	assert.Len(t, summaries, 3)

	requirePNG(t, filepath.Join(dir, ModelsAvgDetectionFile), 40)
	requirePNG(t, filepath.Join(dir, ModelsAvgConfFile), 40)
}

func TestModelsComparisonEmptyTable(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, 30)

	summaries, err := p.ModelsComparison(nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	requirePNG(t, filepath.Join(dir, ModelsAvgDetectionFile), 30)
	requirePNG(t, filepath.Join(dir, ModelsAvgConfFile), 30)
}

func TestRenderBarChart(t *testing.T) {
	pl, err := barChart("t", "y", []string{"Clean", "Degraded"}, plotter.Values{3, 0})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, New(t.TempDir(), 20).render(pl, &buf))

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.InDelta(t, 128, cfg.Width, 1)
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, 200)

	var out bytes.Buffer
	err := p.WriteSummary(&out, "summary.txt", []models.RunSummary{
		{Condition: models.ConditionClean, Frames: 10, AvgDetections: 2.5, AvgConfidence: 0.61},
		{Condition: models.ConditionDegraded, Model: "yolov8n", Frames: 10, AvgDetections: 1, AvgConfidence: 0.4},
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "2.500")
	assert.Contains(t, out.String(), "yolov8n")

	saved, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(saved))
}
