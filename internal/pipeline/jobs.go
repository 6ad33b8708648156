package pipeline

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"harshcond-go/internal/config"
	"harshcond-go/internal/logging"
	"harshcond-go/internal/models"
	"harshcond-go/internal/services"
	"harshcond-go/internal/services/degradation"
	"harshcond-go/internal/services/detection"
	"harshcond-go/internal/services/plotting"
	"harshcond-go/internal/services/recorder"
	"harshcond-go/internal/services/video"
)

const (
	SummaryFile       = "summary.txt"
	ModelsSummaryFile = "models_summary.txt"
)

// Jobs runs the file-based steps of the experiment with paths taken from
// config.
type Jobs struct {
	cfg         *config.Config
	runner      *Runner
	plotter     *plotting.Plotter
	newDetector func(model config.ModelSpec) (detection.Detector, error)
	logger      zerolog.Logger
}

func NewJobs(sc *services.ServiceContainer) *Jobs {
	logger := logging.NewServiceLogger(sc.Config, "pipeline")
	return &Jobs{
		cfg:         sc.Config,
		runner:      NewRunner(logger, sc.Config.ProgressEvery, sc.Publisher),
		plotter:     sc.Plotter,
		newDetector: sc.NewDetector,
		logger:      logger,
	}
}

// Augment degrades the raw video into the degraded video.
func (j *Jobs) Augment() error {
	pipe, err := degradation.NewPipeline(degradation.ParamsFromConfig(j.cfg), degradation.NewRand(j.cfg.DegradeSeed))
	if err != nil {
		return err
	}
	defer pipe.Close()

	src, err := video.OpenSource(j.cfg.RawVideo)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := video.CreateSinkLike(j.cfg.DegradedVideo, j.cfg.VideoCodec, src)
	if err != nil {
		return err
	}
	defer sink.Close()

	j.logger.Info().
		Str("input", j.cfg.RawVideo).
		Float64("fps", src.FPS()).
		Int("width", src.Width()).
		Int("height", src.Height()).
		Msg("Degrading video")

	frames, err := j.runner.Augment(src, sink, pipe)
	if err != nil {
		return err
	}

	j.logger.Info().Int("frames", frames).Str("output", j.cfg.DegradedVideo).Msg("Saved degraded video")
	return nil
}

// Annotate writes annotated copies of the clean and degraded videos.
func (j *Jobs) Annotate() error {
	det, err := j.newDetector(config.ModelSpec{Name: j.cfg.ModelName, Path: j.cfg.ModelPath})
	if err != nil {
		return err
	}
	defer det.Close()

	runs := []struct{ input, output string }{
		{j.cfg.RawVideo, filepath.Join(j.cfg.VideosDir, "carss_yolo_baseline.mp4")},
		{j.cfg.DegradedVideo, filepath.Join(j.cfg.VideosDir, "carss_degraded_yolo.mp4")},
	}
	for _, r := range runs {
		if err := j.annotateVideo(det, r.input, r.output); err != nil {
			return err
		}
	}
	return nil
}

func (j *Jobs) annotateVideo(det detection.Detector, input, output string) error {
	src, err := video.OpenSource(input)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := video.CreateSinkLike(output, j.cfg.VideoCodec, src)
	if err != nil {
		return err
	}
	defer sink.Close()

	frames, err := j.runner.Annotate(src, sink, det)
	if err != nil {
		return fmt.Errorf("annotate %s: %w", input, err)
	}

	j.logger.Info().Int("frames", frames).Str("output", output).Msg("Saved annotated video")
	return nil
}

// Analyze records single-model statistics for the clean and degraded videos
// into separate tables.
func (j *Jobs) Analyze() ([]models.RunSummary, error) {
	det, err := j.newDetector(config.ModelSpec{Name: j.cfg.ModelName, Path: j.cfg.ModelPath})
	if err != nil {
		return nil, err
	}
	defer det.Close()

	runs := []struct {
		condition, input, annotated, csv string
	}{
		{models.ConditionClean, j.cfg.RawVideo, filepath.Join(j.cfg.VideosDir, "carss_clean_yolo_annotated.mp4"), j.cfg.CleanStatsCSV},
		{models.ConditionDegraded, j.cfg.DegradedVideo, filepath.Join(j.cfg.VideosDir, "carss_degraded_yolo_annotated.mp4"), j.cfg.DegradedStatsCSV},
	}

	summaries := make([]models.RunSummary, 0, len(runs))
	for _, r := range runs {
		summary, err := j.analyzeToTable(det, Run{Condition: r.condition, InputVideo: r.input}, r.annotated, r.csv)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (j *Jobs) analyzeToTable(det detection.Detector, run Run, annotated, csvPath string) (models.RunSummary, error) {
	rec, err := recorder.Create(csvPath, recorder.LayoutSingle)
	if err != nil {
		return models.RunSummary{}, err
	}

	summary, err := j.analyzeVideo(det, run, annotated, rec)
	if closeErr := rec.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return models.RunSummary{}, err
	}

	j.logger.Info().Str("condition", run.Condition).Str("path", csvPath).Msg("Saved stats CSV")
	return summary, nil
}

// Compare records statistics for every configured model over both
// conditions into one multi-model table.
func (j *Jobs) Compare() ([]models.RunSummary, error) {
	if len(j.cfg.CompareModels) == 0 {
		return nil, fmt.Errorf("no models configured for comparison")
	}

	rec, err := recorder.Create(j.cfg.ModelsStatsCSV, recorder.LayoutMulti)
	if err != nil {
		return nil, err
	}

	summaries, err := j.compareModels(rec)
	if closeErr := rec.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}

	j.logger.Info().Str("path", j.cfg.ModelsStatsCSV).Msg("Saved combined stats for all models")
	return summaries, nil
}

func (j *Jobs) compareModels(rec RecordWriter) ([]models.RunSummary, error) {
	var summaries []models.RunSummary
	for _, spec := range j.cfg.CompareModels {
		j.logger.Info().Str("model", spec.Name).Str("weights", spec.Path).Msg("Loading model")

		det, err := j.newDetector(spec)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", spec.Name, err)
		}

		inputs := []struct{ condition, path string }{
			{models.ConditionClean, j.cfg.RawVideo},
			{models.ConditionDegraded, j.cfg.DegradedVideo},
		}
		for _, in := range inputs {
			annotated := filepath.Join(j.cfg.VideosDir, fmt.Sprintf("carss_%s_%s.mp4", in.condition, spec.Name))
			summary, err := j.analyzeVideo(det, Run{Condition: in.condition, Model: spec.Name, InputVideo: in.path}, annotated, rec)
			if err != nil {
				det.Close()
				return nil, err
			}
			summaries = append(summaries, summary)
		}

		if err := det.Close(); err != nil {
			j.logger.Warn().Err(err).Str("model", spec.Name).Msg("Failed to release detector")
		}
	}
	return summaries, nil
}

func (j *Jobs) analyzeVideo(det detection.Detector, run Run, annotated string, rec RecordWriter) (models.RunSummary, error) {
	src, err := video.OpenSource(run.InputVideo)
	if err != nil {
		return models.RunSummary{}, err
	}
	defer src.Close()

	sink, err := video.CreateSinkLike(annotated, j.cfg.VideoCodec, src)
	if err != nil {
		return models.RunSummary{}, err
	}
	defer sink.Close()

	summary, err := j.runner.Analyze(run, src, sink, det, rec)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("analyze %s: %w", run.InputVideo, err)
	}

	j.logger.Info().Str("condition", run.Condition).Str("path", annotated).Msg("Saved annotated video")
	return summary, nil
}

// PlotDetectionStats charts the clean and degraded tables and writes the
// summary table to w.
func (j *Jobs) PlotDetectionStats(w io.Writer) error {
	clean, err := recorder.ReadFile(j.cfg.CleanStatsCSV)
	if err != nil {
		return err
	}
	degraded, err := recorder.ReadFile(j.cfg.DegradedStatsCSV)
	if err != nil {
		return err
	}

	summaries, err := j.plotter.DetectionStats(
		plotting.NewSeries(models.ConditionClean, "", clean),
		plotting.NewSeries(models.ConditionDegraded, "", degraded),
	)
	if err != nil {
		return err
	}
	if err := j.plotter.WriteSummary(w, SummaryFile, summaries); err != nil {
		return err
	}

	j.logger.Info().Str("dir", j.plotter.Dir()).Msg("Saved plots")
	return nil
}

// PlotModelsComparison charts the multi-model table and writes the summary
// table to w.
func (j *Jobs) PlotModelsComparison(w io.Writer) error {
	records, err := recorder.ReadFile(j.cfg.ModelsStatsCSV)
	if err != nil {
		return err
	}

	summaries, err := j.plotter.ModelsComparison(records)
	if err != nil {
		return err
	}
	if err := j.plotter.WriteSummary(w, ModelsSummaryFile, summaries); err != nil {
		return err
	}

	j.logger.Info().Str("dir", j.plotter.Dir()).Msg("Saved model comparison plots")
	return nil
}
