package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
	"harshcond-go/internal/services"
	"harshcond-go/internal/services/detection"
	"harshcond-go/internal/services/messaging"
	"harshcond-go/internal/services/plotting"
	"harshcond-go/internal/services/recorder"
	"harshcond-go/internal/services/video"
)

func testJobs(t *testing.T) (*Jobs, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		RunID:            "test",
		RawVideo:         filepath.Join(dir, "missing_raw.mp4"),
		DegradedVideo:    filepath.Join(dir, "missing_degraded.mp4"),
		VideosDir:        filepath.Join(dir, "videos"),
		PlotsDir:         filepath.Join(dir, "plots"),
		CleanStatsCSV:    filepath.Join(dir, "clean.csv"),
		DegradedStatsCSV: filepath.Join(dir, "degraded.csv"),
		ModelsStatsCSV:   filepath.Join(dir, "models.csv"),
		VideoCodec:       "mp4v",
		ModelName:        "yolov8n",
		ProgressEvery:    50,
		PlotDPI:          30,
	}
	sc := &services.ServiceContainer{
		Config:    cfg,
		Publisher: messaging.NopPublisher{},
		Plotter:   plotting.New(cfg.PlotsDir, cfg.PlotDPI),
		NewDetector: func(config.ModelSpec) (detection.Detector, error) {
			return &scriptedDetector{}, nil
		},
	}
	return NewJobs(sc), cfg
}

func writeTable(t *testing.T, path string, layout recorder.Layout, rows []models.FrameStatRecord) {
	t.Helper()
	rec, err := recorder.Create(path, layout)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, rec.Write(r))
	}
	require.NoError(t, rec.Close())
}

func TestPlotDetectionStats(t *testing.T) {
	jobs, cfg := testJobs(t)

	writeTable(t, cfg.CleanStatsCSV, recorder.LayoutSingle, []models.FrameStatRecord{
		{FrameIdx: 0, Condition: models.ConditionClean, NumDetections: 2, MeanConfidence: 0.8},
		{FrameIdx: 1, Condition: models.ConditionClean, NumDetections: 4, MeanConfidence: 0.7},
	})
	writeTable(t, cfg.DegradedStatsCSV, recorder.LayoutSingle, []models.FrameStatRecord{
		{FrameIdx: 0, Condition: models.ConditionDegraded, NumDetections: 0, MeanConfidence: 0},
		{FrameIdx: 1, Condition: models.ConditionDegraded, NumDetections: 1, MeanConfidence: 0.4},
	})

	var out bytes.Buffer
	require.NoError(t, jobs.PlotDetectionStats(&out))

	for _, name := range []string{
		plotting.DetectionsVsFrameFile,
		plotting.ConfidenceVsFrameFile,
		plotting.AvgDetectionsBarFile,
		plotting.AvgConfidenceBarFile,
		SummaryFile,
	} {
		assert.FileExists(t, filepath.Join(cfg.PlotsDir, name))
	}
	assert.Contains(t, out.String(), "3.000")
	assert.Contains(t, out.String(), "0.400")
}

func TestPlotModelsComparison(t *testing.T) {
	jobs, cfg := testJobs(t)

	writeTable(t, cfg.ModelsStatsCSV, recorder.LayoutMulti, []models.FrameStatRecord{
		{FrameIdx: 0, Condition: models.ConditionClean, Model: "yolov8s", NumDetections: 3, MeanConfidence: 0.9},
		{FrameIdx: 0, Condition: models.ConditionClean, Model: "yolov8n", NumDetections: 2, MeanConfidence: 0.6},
		{FrameIdx: 0, Condition: models.ConditionDegraded, Model: "yolov8n", NumDetections: 1, MeanConfidence: 0.3},
	})

	var out bytes.Buffer
	require.NoError(t, jobs.PlotModelsComparison(&out))

	assert.FileExists(t, filepath.Join(cfg.PlotsDir, plotting.ModelsAvgDetectionFile))
	assert.FileExists(t, filepath.Join(cfg.PlotsDir, plotting.ModelsAvgConfFile))

	saved, err := os.ReadFile(filepath.Join(cfg.PlotsDir, ModelsSummaryFile))
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(saved))
	assert.Contains(t, out.String(), "yolov8s")
}

func TestPlotDetectionStatsMalformedTable(t *testing.T) {
	jobs, cfg := testJobs(t)

	require.NoError(t, os.WriteFile(cfg.CleanStatsCSV, []byte("frame_idx,label,num_detections,mean_confidence\n0,clean,two,0.5\n"), 0o644))
	writeTable(t, cfg.DegradedStatsCSV, recorder.LayoutSingle, nil)

	err := jobs.PlotDetectionStats(&bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestAnalyzeMissingVideoFailsFast(t *testing.T) {
	jobs, _ := testJobs(t)

	_, err := jobs.Analyze()
	assert.ErrorIs(t, err, video.ErrOpenVideo)
}

func TestAugmentMissingVideoFailsFast(t *testing.T) {
	jobs, cfg := testJobs(t)
	cfg.BrightnessAlpha = 1

	err := jobs.Augment()
	assert.ErrorIs(t, err, video.ErrOpenVideo)
}

func TestCompareRequiresModels(t *testing.T) {
	jobs, _ := testJobs(t)

	_, err := jobs.Compare()
	assert.Error(t, err)
}

func TestMixedConditionTableBarHeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	writeTable(t, path, recorder.LayoutSingle, []models.FrameStatRecord{
		{FrameIdx: 0, Condition: models.ConditionClean, NumDetections: 2, MeanConfidence: 0.8},
		{FrameIdx: 0, Condition: models.ConditionDegraded, NumDetections: 0, MeanConfidence: 0},
		{FrameIdx: 1, Condition: models.ConditionClean, NumDetections: 4, MeanConfidence: 0.6},
		{FrameIdx: 1, Condition: models.ConditionDegraded, NumDetections: 1, MeanConfidence: 0.5},
		{FrameIdx: 2, Condition: models.ConditionClean, NumDetections: 3, MeanConfidence: 0.7},
		{FrameIdx: 2, Condition: models.ConditionDegraded, NumDetections: 2, MeanConfidence: 0.3},
	})

	rows, err := recorder.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	groups := plotting.GroupByModel(rows)
	require.Len(t, groups, 2)

	clean := groups[plotting.GroupKey{Condition: models.ConditionClean}]
	degraded := groups[plotting.GroupKey{Condition: models.ConditionDegraded}]
	require.NotNil(t, clean)
	require.NotNil(t, degraded)

	assert.Equal(t, 3, clean.Len())
	assert.InDelta(t, 3.0, clean.AvgDetections(), 1e-9)
	assert.InDelta(t, 0.7, clean.AvgConfidence(), 1e-9)

	assert.Equal(t, 3, degraded.Len())
	assert.InDelta(t, 1.0, degraded.AvgDetections(), 1e-9)
	assert.InDelta(t, 0.4, degraded.AvgConfidence(), 1e-9, "zero-confidence frame excluded")

	dets, _ := plotting.ModelMeans(groups, models.ConditionDegraded, plotting.ModelNames(groups))
	assert.InDeltaSlice(t, []float64{1.0}, dets, 1e-9)
}
