package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harshcond-go/internal/config"
)

func TestRunReturnsErrorForMissingTables(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		RunID:            "test",
		PlotsDir:         filepath.Join(dir, "plots"),
		PlotDPI:          20,
		CleanStatsCSV:    filepath.Join(dir, "missing_clean.csv"),
		DegradedStatsCSV: filepath.Join(dir, "missing_degraded.csv"),
	}

	err := run(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_clean.csv")
}
