package detection

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FrameResult is the per-frame outcome of an analysis pass. The caller owns
// Annotated and must Close it.
type FrameResult struct {
	NumDetections  int
	MeanConfidence float64
	Annotated      gocv.Mat
}

// Analyzer runs a Detector once per frame and reduces the result to vehicle
// statistics plus an annotated frame.
type Analyzer struct {
	detector Detector
}

func NewAnalyzer(detector Detector) *Analyzer {
	return &Analyzer{detector: detector}
}

func (a *Analyzer) ProcessFrame(frame gocv.Mat) (FrameResult, error) {
	dets, err := a.detector.Infer(frame)
	if err != nil {
		return FrameResult{}, fmt.Errorf("%s inference failed: %w", a.detector.Name(), err)
	}

	count, meanConf := Summarize(dets)
	return FrameResult{
		NumDetections:  count,
		MeanConfidence: meanConf,
		Annotated:      a.detector.Render(frame, dets),
	}, nil
}
