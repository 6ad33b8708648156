// Package plotting turns recorded per-frame statistics into comparison
// charts and a summary table.
package plotting

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"harshcond-go/internal/models"
)

// Series is the ordered per-frame data of one (condition, model) group.
type Series struct {
	Condition   string
	Model       string
	Frames      []float64
	Detections  []float64
	Confidences []float64
}

// GroupKey identifies a series in a multi-model table.
type GroupKey struct {
	Condition string
	Model     string
}

func NewSeries(condition, model string, records []models.FrameStatRecord) *Series {
	s := &Series{Condition: condition, Model: model}
	for _, r := range records {
		s.Append(r)
	}
	return s
}

func (s *Series) Append(r models.FrameStatRecord) {
	s.Frames = append(s.Frames, float64(r.FrameIdx))
	s.Detections = append(s.Detections, float64(r.NumDetections))
	s.Confidences = append(s.Confidences, r.MeanConfidence)
}

func (s *Series) Len() int { return len(s.Frames) }

// AvgDetections is the mean vehicle count over all frames, zero frames
// included.
func (s *Series) AvgDetections() float64 {
	if len(s.Detections) == 0 {
		return 0.0
	}
	return stat.Mean(s.Detections, nil)
}

// AvgConfidence averages only frames that had a detection, so empty frames
// do not drag the mean down. It is 0.0 when no frame had one.
func (s *Series) AvgConfidence() float64 {
	positive := make([]float64, 0, len(s.Confidences))
	for _, c := range s.Confidences {
		if c > 0 {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return 0.0
	}
	return stat.Mean(positive, nil)
}

// Summary reduces the series to a RunSummary.
func (s *Series) Summary() models.RunSummary {
	return models.RunSummary{
		Condition:     s.Condition,
		Model:         s.Model,
		Frames:        s.Len(),
		AvgDetections: s.AvgDetections(),
		AvgConfidence: s.AvgConfidence(),
	}
}

// GroupByModel splits a multi-model table into series keyed by
// (condition, model), preserving row order within each group.
func GroupByModel(records []models.FrameStatRecord) map[GroupKey]*Series {
	groups := make(map[GroupKey]*Series)
	for _, r := range records {
		key := GroupKey{Condition: r.Condition, Model: r.Model}
		s, ok := groups[key]
		if !ok {
			s = &Series{Condition: r.Condition, Model: r.Model}
			groups[key] = s
		}
		s.Append(r)
	}
	return groups
}

// ModelNames returns the distinct model names in groups, sorted.
func ModelNames(groups map[GroupKey]*Series) []string {
	seen := make(map[string]struct{})
	for key := range groups {
		seen[key.Model] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelMeans returns, for one condition, the average detections and
// confidence of each model in order. Missing groups contribute 0.
func ModelMeans(groups map[GroupKey]*Series, condition string, modelNames []string) (dets, confs []float64) {
	dets = make([]float64, len(modelNames))
	confs = make([]float64, len(modelNames))
	for i, m := range modelNames {
		s, ok := groups[GroupKey{Condition: condition, Model: m}]
		if !ok {
			continue
		}
		dets[i] = s.AvgDetections()
		confs[i] = s.AvgConfidence()
	}
	return dets, confs
}
