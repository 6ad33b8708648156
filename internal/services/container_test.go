package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
	"harshcond-go/internal/services/messaging"
)

type countingPublisher struct {
	shutdowns int
	err       error
}

func (p *countingPublisher) PublishRecord(models.FrameStatRecord) error { return nil }
func (p *countingPublisher) PublishSummary(models.RunSummary) error     { return nil }
func (p *countingPublisher) Shutdown(context.Context) error {
	p.shutdowns++
	return p.err
}

func TestNewServiceContainerDefaults(t *testing.T) {
	sc, err := NewServiceContainer(&config.Config{PlotsDir: t.TempDir(), PlotDPI: 200})
	require.NoError(t, err)

	assert.IsType(t, messaging.NopPublisher{}, sc.Publisher)
	require.NotNil(t, sc.Plotter)
	require.NotNil(t, sc.NewDetector)
	assert.NoError(t, sc.Shutdown(context.Background()))
}

func TestShutdownDrainsPublisher(t *testing.T) {
	pub := &countingPublisher{}
	sc := &ServiceContainer{Publisher: pub}

	require.NoError(t, sc.Shutdown(context.Background()))
	assert.Equal(t, 1, pub.shutdowns)

	pub.err = errors.New("drain failed")
	assert.Error(t, sc.Shutdown(context.Background()))
}
