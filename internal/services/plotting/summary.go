package plotting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"harshcond-go/internal/models"
)

// SummaryTable renders summaries as a text table.
func SummaryTable(summaries []models.RunSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Condition", "Model", "Frames", "Avg detections", "Avg confidence"})
	for _, s := range summaries {
		model := s.Model
		if model == "" {
			model = "-"
		}
		t.AppendRow(table.Row{
			s.Condition,
			model,
			s.Frames,
			fmt.Sprintf("%.3f", s.AvgDetections),
			fmt.Sprintf("%.3f", s.AvgConfidence),
		})
	}
	return t.Render()
}

// WriteSummary writes the summary table to w and to name in the plots
// directory.
func (p *Plotter) WriteSummary(w io.Writer, name string, summaries []models.RunSummary) error {
	text := SummaryTable(summaries) + "\n"
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	path := filepath.Join(p.dir, name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
