package detection

import (
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
)

// Detector runs a pretrained object detector on frames.
type Detector interface {
	// Infer returns every detection in frame. No detections is not an error.
	Infer(frame gocv.Mat) ([]models.Detection, error)
	// Render returns a copy of frame with dets drawn on it. The caller owns
	// the returned Mat.
	Render(frame gocv.Mat, dets []models.Detection) gocv.Mat
	Name() string
	Close() error
}

// Summarize reduces a frame's detections to the number of vehicle
// detections and their mean confidence. Detections outside the vehicle
// allow-list are ignored; with no vehicles both results are zero.
func Summarize(dets []models.Detection) (int, float64) {
	conf := make([]float64, 0, len(dets))
	for _, d := range dets {
		if models.IsVehicleClass(d.ClassID) {
			conf = append(conf, float64(d.Score))
		}
	}
	if len(conf) == 0 {
		return 0, 0.0
	}
	return len(conf), stat.Mean(conf, nil)
}

// NewFromConfig builds the detector selected by cfg.DetectorBackend for the
// given model weights.
func NewFromConfig(cfg *config.Config, model config.ModelSpec) (Detector, error) {
	switch cfg.DetectorBackend {
	case "onnx", "":
		return NewYOLODetector(YOLOConfig{
			Name:          model.Name,
			ModelPath:     model.Path,
			InputSize:     cfg.InputSize,
			ConfThreshold: float32(cfg.ConfThreshold),
			NMSThreshold:  float32(cfg.NMSThreshold),
			UseCUDA:       cfg.UseCUDA,
		})
	case "grpc":
		return NewRemoteDetector(cfg, model.Name)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}
