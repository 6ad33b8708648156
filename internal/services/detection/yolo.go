package detection

import (
	"fmt"
	"image"
	"os"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"harshcond-go/internal/models"
)

// classOffset separates boxes of different classes so that a single NMS pass
// only suppresses overlaps within the same class.
const classOffset = 8192

type YOLOConfig struct {
	Name          string
	ModelPath     string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
	UseCUDA       bool
}

// YOLODetector runs a YOLOv8 ONNX export through OpenCV DNN.
type YOLODetector struct {
	cfg YOLOConfig
	net gocv.Net
}

func NewYOLODetector(cfg YOLOConfig) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if cfg.UseCUDA {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	log.Info().
		Str("model", cfg.Name).
		Str("path", cfg.ModelPath).
		Int("input_size", cfg.InputSize).
		Bool("cuda", cfg.UseCUDA).
		Msg("Detection network initialized")

	return &YOLODetector{cfg: cfg, net: net}, nil
}

func (d *YOLODetector) Name() string { return d.cfg.Name }

func (d *YOLODetector) Infer(frame gocv.Mat) ([]models.Detection, error) {
	if frame.Empty() {
		return nil, models.ErrEmptyFrame
	}

	size := d.cfg.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.decode(output, frame.Cols(), frame.Rows())
}

// decode turns the raw [1, 4+classes, anchors] output into detections in
// frame coordinates, applying the confidence threshold and per-class NMS.
func (d *YOLODetector) decode(output gocv.Mat, frameW, frameH int) ([]models.Detection, error) {
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	xFactor := float32(frameW) / float32(d.cfg.InputSize)
	yFactor := float32(frameH) / float32(d.cfg.InputSize)
	candidates := decodeCandidates(data, dims[1], dims[2], d.cfg.ConfThreshold, xFactor, yFactor)
	if len(candidates) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		off := c.ClassID * classOffset
		boxes[i] = c.Box.Add(image.Pt(off, off))
		scores[i] = c.Score
	}

	indices := gocv.NMSBoxes(boxes, scores, d.cfg.ConfThreshold, d.cfg.NMSThreshold)

	dets := make([]models.Detection, 0, len(indices))
	for _, idx := range indices {
		dets = append(dets, candidates[idx])
	}
	return dets, nil
}

// decodeCandidates reads a row-major output tensor of shape [rows, cols].
// YOLOv8 exports are [4+classes, anchors]; a transposed [anchors, 4+classes]
// layout is detected by rows > cols.
func decodeCandidates(data []float32, rows, cols int, confThreshold, xFactor, yFactor float32) []models.Detection {
	attrs, anchors := rows, cols
	at := func(attr, anchor int) float32 { return data[attr*anchors+anchor] }
	if rows > cols {
		attrs, anchors = cols, rows
		at = func(attr, anchor int) float32 { return data[anchor*attrs+attr] }
	}
	if attrs <= 4 || len(data) < attrs*anchors {
		return nil
	}

	var dets []models.Detection
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < attrs-4; c++ {
			if s := at(4+c, i); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || bestScore < confThreshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		dets = append(dets, models.Detection{
			ClassID: bestClass,
			Score:   bestScore,
			Box: image.Rect(
				int((cx-w/2)*xFactor),
				int((cy-h/2)*yFactor),
				int((cx+w/2)*xFactor),
				int((cy+h/2)*yFactor),
			),
		})
	}
	return dets
}

func (d *YOLODetector) Render(frame gocv.Mat, dets []models.Detection) gocv.Mat {
	return Annotate(frame, dets)
}

func (d *YOLODetector) Close() error {
	return d.net.Close()
}
