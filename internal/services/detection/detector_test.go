package detection

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
)

type stubDetector struct {
	dets []models.Detection
	err  error
}

func (s *stubDetector) Infer(gocv.Mat) ([]models.Detection, error) { return s.dets, s.err }
func (s *stubDetector) Render(frame gocv.Mat, dets []models.Detection) gocv.Mat {
	return Annotate(frame, dets)
}
func (s *stubDetector) Name() string { return "stub" }
func (s *stubDetector) Close() error { return nil }

func det(classID int, score float32) models.Detection {
	return models.Detection{ClassID: classID, Score: score, Box: image.Rect(2, 2, 10, 10)}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		dets      []models.Detection
		wantCount int
		wantMean  float64
	}{
		{
			name: "nil detections",
		},
		{
			name: "only non-vehicles",
			dets: []models.Detection{det(0, 0.9), det(1, 0.8), det(3, 0.7)},
		},
		{
			name:      "vehicles only",
			dets:      []models.Detection{det(models.ClassCar, 0.4), det(models.ClassBus, 0.6), det(models.ClassTruck, 0.8)},
			wantCount: 3,
			wantMean:  0.6,
		},
		{
			name:      "mixed classes ignore non-vehicles",
			dets:      []models.Detection{det(0, 0.99), det(models.ClassCar, 0.5), det(9, 0.1), det(models.ClassCar, 0.7)},
			wantCount: 2,
			wantMean:  0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, mean := Summarize(tt.dets)
			assert.Equal(t, tt.wantCount, count)
			if tt.wantCount == 0 {
				assert.Equal(t, 0.0, mean)
				return
			}
			assert.InDelta(t, tt.wantMean, mean, 1e-6)
		})
	}
}

func TestAnalyzerProcessFrame(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 32, 48, gocv.MatTypeCV8UC3)
	defer frame.Close()

	a := NewAnalyzer(&stubDetector{dets: []models.Detection{det(models.ClassCar, 0.5), det(0, 0.9)}})
	res, err := a.ProcessFrame(frame)
	require.NoError(t, err)
	defer res.Annotated.Close()

	assert.Equal(t, 1, res.NumDetections)
	assert.InDelta(t, 0.5, res.MeanConfidence, 1e-6)
	assert.Equal(t, frame.Rows(), res.Annotated.Rows())
	assert.Equal(t, frame.Cols(), res.Annotated.Cols())
	assert.NotEqual(t, frame.ToBytes(), res.Annotated.ToBytes(), "boxes are drawn on the copy")
	assert.Equal(t, uint8(10), frame.GetVecbAt(2, 2)[0], "input frame is untouched")
}

func TestAnalyzerEmptyDetections(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()

	res, err := NewAnalyzer(&stubDetector{}).ProcessFrame(frame)
	require.NoError(t, err)
	defer res.Annotated.Close()

	assert.Zero(t, res.NumDetections)
	assert.Equal(t, 0.0, res.MeanConfidence)
	assert.Equal(t, frame.ToBytes(), res.Annotated.ToBytes())
}

func TestAnalyzerPropagatesErrors(t *testing.T) {
	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()

	boom := errors.New("boom")
	_, err := NewAnalyzer(&stubDetector{err: boom}).ProcessFrame(frame)
	assert.ErrorIs(t, err, boom)
}

func TestNewFromConfigUnknownBackend(t *testing.T) {
	cfg := &config.Config{DetectorBackend: "tflite"}
	_, err := NewFromConfig(cfg, config.ModelSpec{Name: "x", Path: "x.onnx"})
	assert.Error(t, err)
}

func TestNewYOLODetectorMissingModel(t *testing.T) {
	_, err := NewYOLODetector(YOLOConfig{Name: "missing", ModelPath: t.TempDir() + "/nope.onnx"})
	assert.Error(t, err)
}
