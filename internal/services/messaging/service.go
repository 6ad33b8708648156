package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"harshcond-go/internal/config"
	"harshcond-go/internal/models"
)

const (
	EventFrameStat  = "frame_stat"
	EventRunSummary = "run_summary"
)

// StatsPublisher receives per-frame records and per-run summaries as they
// are produced.
type StatsPublisher interface {
	PublishRecord(rec models.FrameStatRecord) error
	PublishSummary(summary models.RunSummary) error
	Shutdown(ctx context.Context) error
}

// Event is the JSON envelope published for every record or summary.
type Event struct {
	Type      string                  `json:"type"`
	RunID     string                  `json:"run_id"`
	Timestamp time.Time               `json:"timestamp"`
	Record    *models.FrameStatRecord `json:"record,omitempty"`
	Summary   *models.RunSummary      `json:"summary,omitempty"`
}

type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

// NewPublisher connects to NATS when stats publishing is enabled and
// returns a no-op publisher otherwise.
func NewPublisher(cfg *config.Config) (StatsPublisher, error) {
	if !cfg.StatsPublishEnabled {
		return NopPublisher{}, nil
	}
	return NewService(cfg)
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("harshcond-" + cfg.RunID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Str("subject", cfg.StatsSubject).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) PublishRecord(rec models.FrameStatRecord) error {
	return s.Publish(FrameSubject(s.cfg.StatsSubject), NewRecordEvent(s.cfg.RunID, rec))
}

func (s *Service) PublishSummary(summary models.RunSummary) error {
	return s.Publish(SummarySubject(s.cfg.StatsSubject), NewSummaryEvent(s.cfg.RunID, summary))
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn != nil {
		// Try graceful drain, fallback to immediate close
		if err := s.conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	}
	return nil
}

func FrameSubject(base string) string   { return base + ".frames" }
func SummarySubject(base string) string { return base + ".summary" }

func NewRecordEvent(runID string, rec models.FrameStatRecord) Event {
	return Event{Type: EventFrameStat, RunID: runID, Timestamp: time.Now().UTC(), Record: &rec}
}

func NewSummaryEvent(runID string, summary models.RunSummary) Event {
	return Event{Type: EventRunSummary, RunID: runID, Timestamp: time.Now().UTC(), Summary: &summary}
}

// NopPublisher discards everything.
type NopPublisher struct{}

func (NopPublisher) PublishRecord(models.FrameStatRecord) error { return nil }
func (NopPublisher) PublishSummary(models.RunSummary) error     { return nil }
func (NopPublisher) Shutdown(context.Context) error             { return nil }
