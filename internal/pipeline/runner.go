// Package pipeline drives whole-video runs: degrading footage, annotating it
// and recording per-frame detection statistics.
package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"harshcond-go/internal/logging"
	"harshcond-go/internal/models"
	"harshcond-go/internal/services/degradation"
	"harshcond-go/internal/services/detection"
	"harshcond-go/internal/services/messaging"
	"harshcond-go/internal/services/plotting"
	"harshcond-go/internal/services/video"
)

// RecordWriter receives one row per analysed frame.
type RecordWriter interface {
	Write(rec models.FrameStatRecord) error
}

// Run identifies one analysis pass.
type Run struct {
	Condition  string
	Model      string
	InputVideo string
}

// Runner executes frame loops over injected sources and sinks.
type Runner struct {
	logger        zerolog.Logger
	progressEvery int
	publisher     messaging.StatsPublisher
}

func NewRunner(logger zerolog.Logger, progressEvery int, publisher messaging.StatsPublisher) *Runner {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &Runner{
		logger:        logger,
		progressEvery: progressEvery,
		publisher:     publisher,
	}
}

// Augment writes every source frame through the degradation pipeline to
// sink.
func (r *Runner) Augment(src video.FrameSource, sink video.FrameSink, pipe *degradation.Pipeline) (int, error) {
	degraded := gocv.NewMat()
	defer degraded.Close()

	return video.ForEachFrame(src, r.logger, r.progressEvery, func(_ int, frame gocv.Mat) error {
		if err := pipe.Apply(frame, &degraded); err != nil {
			return err
		}
		return sink.Write(degraded)
	})
}

// Annotate writes every source frame with detections drawn on it to sink.
// No statistics are recorded.
func (r *Runner) Annotate(src video.FrameSource, sink video.FrameSink, det detection.Detector) (int, error) {
	return video.ForEachFrame(src, r.logger, r.progressEvery, func(_ int, frame gocv.Mat) error {
		dets, err := det.Infer(frame)
		if err != nil {
			return fmt.Errorf("%s inference failed: %w", det.Name(), err)
		}

		annotated := det.Render(frame, dets)
		defer annotated.Close()
		return sink.Write(annotated)
	})
}

// Analyze runs det over every source frame, writes one record per frame to
// rec and the annotated frame to sink. sink may be nil. Records are also
// handed to the stats publisher; publish failures are logged, not fatal.
func (r *Runner) Analyze(run Run, src video.FrameSource, sink video.FrameSink, det detection.Detector, rec RecordWriter) (models.RunSummary, error) {
	logger := logging.WithCondition(r.logger, run.Condition, run.Model)
	analyzer := detection.NewAnalyzer(det)
	series := plotting.NewSeries(run.Condition, run.Model, nil)

	frames, err := video.ForEachFrame(src, logger, r.progressEvery, func(idx int, frame gocv.Mat) error {
		res, err := analyzer.ProcessFrame(frame)
		if err != nil {
			return err
		}
		defer res.Annotated.Close()

		if sink != nil {
			if err := sink.Write(res.Annotated); err != nil {
				return err
			}
		}

		record := models.FrameStatRecord{
			FrameIdx:       idx,
			Condition:      run.Condition,
			Model:          run.Model,
			NumDetections:  res.NumDetections,
			MeanConfidence: res.MeanConfidence,
		}
		if err := rec.Write(record); err != nil {
			return err
		}
		series.Append(record)

		if err := r.publisher.PublishRecord(record); err != nil {
			logger.Warn().Err(err).Int("frame_idx", idx).Msg("Failed to publish frame stats")
		}
		return nil
	})
	if err != nil {
		return models.RunSummary{}, err
	}

	summary := series.Summary()
	summary.InputVideo = run.InputVideo

	logger.Info().
		Int("frames", frames).
		Float64("avg_detections", summary.AvgDetections).
		Float64("avg_confidence", summary.AvgConfidence).
		Msg("Analysis complete")

	if err := r.publisher.PublishSummary(summary); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish run summary")
	}
	return summary, nil
}
