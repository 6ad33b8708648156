package plotting

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"harshcond-go/internal/models"
)

// Chart file names written under the plots directory.
const (
	DetectionsVsFrameFile  = "carss_detections_vs_frame.png"
	ConfidenceVsFrameFile  = "carss_confidence_vs_frame.png"
	AvgDetectionsBarFile   = "carss_avg_detections_bar.png"
	AvgConfidenceBarFile   = "carss_avg_confidence_bar.png"
	ModelsAvgDetectionFile = "models_avg_detections.png"
	ModelsAvgConfFile      = "models_avg_confidence.png"
)

const (
	figWidth  = 6.4 * vg.Inch
	figHeight = 4.8 * vg.Inch
	barWidth  = vg.Length(28)
)

var gridColor = color.Gray{Y: 220}

// Plotter renders charts as PNG files into one directory.
type Plotter struct {
	dir    string
	dpi    int
	logger zerolog.Logger
}

func New(dir string, dpi int) *Plotter {
	if dpi <= 0 {
		dpi = 200
	}
	return &Plotter{
		dir:    dir,
		dpi:    dpi,
		logger: log.With().Str("component", "plotter").Logger(),
	}
}

func (p *Plotter) Dir() string { return p.dir }

// DetectionStats renders the clean versus degraded charts: per-frame lines
// for detections and confidence, and bars of their averages. It returns the
// summaries the bars were drawn from.
func (p *Plotter) DetectionStats(clean, degraded *Series) ([]models.RunSummary, error) {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plots dir: %w", err)
	}

	series := []*Series{clean, degraded}

	detLine, err := lineChart(
		"Detections per frame: Clean vs Degraded",
		"Vehicle detections (car/bus/truck)",
		series,
		func(s *Series) []float64 { return s.Detections },
	)
	if err != nil {
		return nil, fmt.Errorf("detections line chart: %w", err)
	}
	if err := p.save(detLine, DetectionsVsFrameFile); err != nil {
		return nil, err
	}

	confLine, err := lineChart(
		"Mean detection confidence: Clean vs Degraded",
		"Mean confidence (vehicles)",
		series,
		func(s *Series) []float64 { return s.Confidences },
	)
	if err != nil {
		return nil, fmt.Errorf("confidence line chart: %w", err)
	}
	if err := p.save(confLine, ConfidenceVsFrameFile); err != nil {
		return nil, err
	}

	labels := []string{conditionLabel(clean.Condition), conditionLabel(degraded.Condition)}

	detBar, err := barChart(
		"Average detections: Clean vs Degraded",
		"Avg. vehicle detections per frame",
		labels,
		plotter.Values{clean.AvgDetections(), degraded.AvgDetections()},
	)
	if err != nil {
		return nil, fmt.Errorf("detections bar chart: %w", err)
	}
	if err := p.save(detBar, AvgDetectionsBarFile); err != nil {
		return nil, err
	}

	confBar, err := barChart(
		"Average confidence: Clean vs Degraded",
		"Avg. mean confidence (vehicles)",
		labels,
		plotter.Values{clean.AvgConfidence(), degraded.AvgConfidence()},
	)
	if err != nil {
		return nil, fmt.Errorf("confidence bar chart: %w", err)
	}
	if err := p.save(confBar, AvgConfidenceBarFile); err != nil {
		return nil, err
	}

	return []models.RunSummary{clean.Summary(), degraded.Summary()}, nil
}

// ModelsComparison renders grouped bars of average detections and
// confidence per model, one bar per condition.
func (p *Plotter) ModelsComparison(records []models.FrameStatRecord) ([]models.RunSummary, error) {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plots dir: %w", err)
	}

	groups := GroupByModel(records)
	modelNames := ModelNames(groups)
	conditions := []string{models.ConditionClean, models.ConditionDegraded}

	dets := make([]plotter.Values, len(conditions))
	confs := make([]plotter.Values, len(conditions))
	var summaries []models.RunSummary
	for i, cond := range conditions {
		dets[i], confs[i] = ModelMeans(groups, cond, modelNames)
		for _, m := range modelNames {
			if s, ok := groups[GroupKey{Condition: cond, Model: m}]; ok {
				summaries = append(summaries, s.Summary())
			}
		}
	}

	detChart, err := groupedBarChart(
		"Average detections per frame by model & condition",
		"Avg. vehicle detections / frame",
		modelNames, conditions, dets,
	)
	if err != nil {
		return nil, fmt.Errorf("models detections chart: %w", err)
	}
	if err := p.save(detChart, ModelsAvgDetectionFile); err != nil {
		return nil, err
	}

	confChart, err := groupedBarChart(
		"Average detection confidence by model & condition",
		"Avg. mean confidence (vehicles)",
		modelNames, conditions, confs,
	)
	if err != nil {
		return nil, fmt.Errorf("models confidence chart: %w", err)
	}
	if err := p.save(confChart, ModelsAvgConfFile); err != nil {
		return nil, err
	}

	return summaries, nil
}

func lineChart(title, yLabel string, series []*Series, values func(*Series) []float64) (*plot.Plot, error) {
	p := newPlot(title, "Frame", yLabel)
	p.Add(gridLines())

	for i, s := range series {
		ys := values(s)
		if len(ys) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(ys))
		for j := range ys {
			pts[j] = plotter.XY{X: s.Frames[j], Y: ys[j]}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.Condition, err)
		}
		line.Width = vg.Points(1.5)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(conditionLabel(s.Condition), line)
	}

	p.Legend.Top = true
	return p, nil
}

func barChart(title, yLabel string, labels []string, values plotter.Values) (*plot.Plot, error) {
	p := newPlot(title, "", yLabel)

	bars, err := plotter.NewBarChart(values, barWidth*2)
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	p.Y.Min = 0
	return p, nil
}

func groupedBarChart(title, yLabel string, names, conditions []string, values []plotter.Values) (*plot.Plot, error) {
	p := newPlot(title, "", yLabel)
	p.Y.Min = 0
	if len(names) == 0 {
		return p, nil
	}

	for i, cond := range conditions {
		bars, err := plotter.NewBarChart(values[i], barWidth)
		if err != nil {
			return nil, fmt.Errorf("%s bars: %w", cond, err)
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		bars.Offset = barWidth * vg.Length(2*i-len(conditions)+1) / 2
		p.Add(bars)
		p.Legend.Add(conditionLabel(cond), bars)
	}

	p.NominalX(names...)
	p.Legend.Top = true
	return p, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

func gridLines() *plotter.Grid {
	g := plotter.NewGrid()
	g.Vertical.Color = gridColor
	g.Horizontal.Color = gridColor
	return g
}

// save rasterizes pl at the plotter's DPI and writes it as PNG.
func (p *Plotter) save(pl *plot.Plot, name string) error {
	path := filepath.Join(p.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := p.render(pl, f); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	p.logger.Debug().Str("path", path).Int("dpi", p.dpi).Msg("Chart saved")
	return nil
}

func (p *Plotter) render(pl *plot.Plot, w io.Writer) error {
	c := vgimg.NewWith(vgimg.UseWH(figWidth, figHeight), vgimg.UseDPI(p.dpi))
	pl.Draw(draw.New(c))
	_, err := vgimg.PngCanvas{Canvas: c}.WriteTo(w)
	return err
}

func conditionLabel(condition string) string {
	switch condition {
	case models.ConditionClean:
		return "Clean"
	case models.ConditionDegraded:
		return "Degraded"
	default:
		return condition
	}
}
