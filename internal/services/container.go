package services

import (
	"context"

	"harshcond-go/internal/config"
	"harshcond-go/internal/services/detection"
	"harshcond-go/internal/services/messaging"
	"harshcond-go/internal/services/plotting"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config    *config.Config
	Publisher messaging.StatsPublisher
	Plotter   *plotting.Plotter

	// NewDetector builds a detector for one model. Defaults to the backend
	// selected in Config.
	NewDetector func(model config.ModelSpec) (detection.Detector, error)
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	// Initialize stats publisher (no-op unless enabled)
	publisher, err := messaging.NewPublisher(cfg)
	if err != nil {
		return nil, err
	}

	return &ServiceContainer{
		Config:    cfg,
		Publisher: publisher,
		Plotter:   plotting.New(cfg.PlotsDir, cfg.PlotDPI),
		NewDetector: func(model config.ModelSpec) (detection.Detector, error) {
			return detection.NewFromConfig(cfg, model)
		},
	}, nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.Publisher != nil {
		if err := sc.Publisher.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
