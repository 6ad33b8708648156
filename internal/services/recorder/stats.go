// Package recorder persists per-frame detection statistics as CSV tables and
// reads them back for plotting.
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"harshcond-go/internal/models"
)

// Layout selects the column set of a stats table.
type Layout int

const (
	// LayoutSingle is frame_idx,label,num_detections,mean_confidence
	LayoutSingle Layout = iota
	// LayoutMulti is frame_idx,condition,model,num_detections,mean_confidence
	LayoutMulti
)

var (
	singleHeader = []string{"frame_idx", "label", "num_detections", "mean_confidence"}
	multiHeader  = []string{"frame_idx", "condition", "model", "num_detections", "mean_confidence"}
)

var ErrMissingColumn = errors.New("missing column")

func (l Layout) Header() []string {
	if l == LayoutMulti {
		return append([]string(nil), multiHeader...)
	}
	return append([]string(nil), singleHeader...)
}

func (l Layout) String() string {
	if l == LayoutMulti {
		return "multi"
	}
	return "single"
}

// Recorder appends FrameStatRecords to one CSV file. It is not safe for
// concurrent use.
type Recorder struct {
	path   string
	layout Layout
	file   *os.File
	w      *csv.Writer
	rows   int
}

// Create opens path for writing, truncating any existing table, and writes
// the header row for layout.
func Create(path string, layout Layout) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats file %s: %w", path, err)
	}

	r := &Recorder{
		path:   path,
		layout: layout,
		file:   f,
		w:      csv.NewWriter(f),
	}
	if err := r.w.Write(layout.Header()); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}

	log.Debug().Str("path", path).Str("layout", layout.String()).Msg("Stats recorder created")
	return r, nil
}

// Rows returns the number of data rows written so far.
func (r *Recorder) Rows() int { return r.rows }

// Write appends one row. The single layout stores the condition in its
// label column and drops the model.
func (r *Recorder) Write(rec models.FrameStatRecord) error {
	var row []string
	switch r.layout {
	case LayoutMulti:
		row = []string{
			strconv.Itoa(rec.FrameIdx),
			rec.Condition,
			rec.Model,
			strconv.Itoa(rec.NumDetections),
			formatFloat(rec.MeanConfidence),
		}
	default:
		row = []string{
			strconv.Itoa(rec.FrameIdx),
			rec.Condition,
			strconv.Itoa(rec.NumDetections),
			formatFloat(rec.MeanConfidence),
		}
	}

	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("failed to write row %d to %s: %w", r.rows, r.path, err)
	}
	r.rows++
	return nil
}

// Close flushes buffered rows and closes the file.
func (r *Recorder) Close() error {
	r.w.Flush()
	flushErr := r.w.Error()
	closeErr := r.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush %s: %w", r.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", r.path, closeErr)
	}

	log.Info().Str("path", r.path).Int("rows", r.rows).Msg("Stats table written")
	return nil
}

// ReadFile loads a table written in either layout.
func ReadFile(path string) ([]models.FrameStatRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats file %s: %w", path, err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read parses a stats table, locating columns by header name. The condition
// is taken from a "condition" column, or "label" when that is absent.
func Read(r io.Reader) ([]models.FrameStatRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty stats table")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	condCol, ok := cols["condition"]
	if !ok {
		condCol, ok = cols["label"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: condition or label", ErrMissingColumn)
	}
	required := []string{"frame_idx", "num_detections", "mean_confidence"}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	modelCol, hasModel := cols["model"]

	var records []models.FrameStatRecord
	for rowNum := 1; ; rowNum++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		field := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}

		rec := models.FrameStatRecord{Condition: field(condCol)}
		if hasModel {
			rec.Model = field(modelCol)
		}
		if rec.FrameIdx, err = strconv.Atoi(field(cols["frame_idx"])); err != nil {
			return nil, fmt.Errorf("row %d: frame_idx: %w", rowNum, err)
		}
		if rec.NumDetections, err = strconv.Atoi(field(cols["num_detections"])); err != nil {
			return nil, fmt.Errorf("row %d: num_detections: %w", rowNum, err)
		}
		if rec.MeanConfidence, err = strconv.ParseFloat(field(cols["mean_confidence"]), 64); err != nil {
			return nil, fmt.Errorf("row %d: mean_confidence: %w", rowNum, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// formatFloat always keeps a decimal point so zero reads back as 0.0.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
