package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"harshcond-go/internal/config"
)

// Setup configures the global zerolog logger: console output on stderr, the
// level from config, and an optional Logdy tee.
func Setup(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.LogdyEnabled {
		if w, _, err := StartLogdy(cfg); err != nil {
			log.Warn().Err(err).Msg("Logdy UI not started")
		} else {
			out = zerolog.MultiLevelWriter(out, w)
		}
	}
	log.Logger = log.Output(out)

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("run_id", cfg.RunID).Str("service", service).Logger()
}

func WithCondition(base zerolog.Logger, condition, model string) zerolog.Logger {
	ctx := base.With().Str("condition", condition)
	if model != "" {
		ctx = ctx.Str("model", model)
	}
	return ctx.Logger()
}
