package sched

import (
	"context"
	"time"

	"code-redemption/internal/domain/model"
	"code-redemption/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// StatsSource is the slice of CodeUseCase the worker needs.
type StatsSource interface {
	Stats(ctx context.Context) (model.CodeStats, error)
}

// StatsWorker periodically publishes code aggregates (and, when set, DB pool
// stats) as gauges so dashboards do not have to hit the admin API.
type StatsWorker struct {
	interval  time.Duration
	source    StatsSource
	poolStats func()
	log       *zerolog.Logger
}

func NewStatsWorker(interval time.Duration, source StatsSource, poolStats func(), logger *zerolog.Logger) *StatsWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		interval:  interval,
		source:    source,
		poolStats: poolStats,
		log:       &l,
	}
}

// Run publishes once immediately and then on every tick until ctx is done.
func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.publish(ctx)
		}
	}
}

func (w *StatsWorker) publish(ctx context.Context) {
	if w.poolStats != nil {
		w.poolStats()
	}
	st, err := w.source.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("stats worker error")
		}
		return
	}
	metrics.SetCodeStats(st.Total, st.Used, st.Unused)
	w.log.Debug().Int("total", st.Total).Int("used", st.Used).Int("unused", st.Unused).Msg("code stats published")
}
