package models

import (
	"errors"
	"image"
)

// ErrEmptyFrame is returned when a stage is handed a frame with no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Condition labels distinguish unmodified footage from synthetically degraded
// footage in recorded rows and charts.
const (
	ConditionClean    = "clean"
	ConditionDegraded = "degraded"
)

// COCO class IDs we care about
const (
	ClassCar   = 2
	ClassBus   = 5
	ClassTruck = 7
)

// vehicleClasses is the allow-list of detector classes counted as vehicles.
var vehicleClasses = map[int]struct{}{
	ClassCar:   {},
	ClassBus:   {},
	ClassTruck: {},
}

// IsVehicleClass reports whether a detector class id is on the vehicle
// allow-list (car, bus, truck).
func IsVehicleClass(classID int) bool {
	_, ok := vehicleClasses[classID]
	return ok
}

// Detection is one object found by the detector in a frame
type Detection struct {
	ClassID int             `json:"class_id"`
	Score   float32         `json:"score"`
	Box     image.Rectangle `json:"box"`
}

// ClassName returns the COCO name for the detection's class.
func (d Detection) ClassName() string {
	return ClassName(d.ClassID)
}

// FrameStatRecord is the per-frame summary persisted to the stats table.
// Model is empty for single-model runs.
type FrameStatRecord struct {
	FrameIdx       int     `json:"frame_idx"`
	Condition      string  `json:"condition"`
	Model          string  `json:"model,omitempty"`
	NumDetections  int     `json:"num_detections"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// RunSummary aggregates one analysis pass over a video
type RunSummary struct {
	Condition     string  `json:"condition"`
	Model         string  `json:"model,omitempty"`
	InputVideo    string  `json:"input_video"`
	Frames        int     `json:"frames"`
	AvgDetections float64 `json:"avg_detections"`
	AvgConfidence float64 `json:"avg_confidence"`
}
