package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/repository"
	"code-redemption/internal/infra/metrics"
	red "code-redemption/internal/infra/redis"
)

var (
	_ repository.CodeRepository   = (*codeRepoCacheDecorator)(nil)
	_ repository.StatsInvalidator = (*codeRepoCacheDecorator)(nil)
)

const codeStatsKey = "codes:stats"

// codeRepoCacheDecorator serves Stats from Redis for a short TTL. The counts
// are dashboard aggregates; redemption decisions never read them.
type codeRepoCacheDecorator struct {
	repository.CodeRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCodeRepoCacheDecorator(inner repository.CodeRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.CodeRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "CodeStatsCache").Logger()
	return &codeRepoCacheDecorator{CodeRepository: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *codeRepoCacheDecorator) Stats(ctx context.Context, tx repository.Tx) (model.CodeStats, error) {
	// Inside a transaction the caller wants a consistent read.
	if tx != nil {
		return d.CodeRepository.Stats(ctx, tx)
	}

	val, err := d.cache.Get(ctx, codeStatsKey)
	if err == nil {
		var st model.CodeStats
		if json.Unmarshal([]byte(val), &st) == nil {
			metrics.IncCacheRequest("code_stats", "hit")
			return st, nil
		}
	} else if !red.IsNil(err) {
		d.log.Warn().Err(err).Msg("stats cache read failed")
	}

	metrics.IncCacheRequest("code_stats", "miss")
	st, err := d.CodeRepository.Stats(ctx, tx)
	if err != nil {
		return st, err
	}
	if b, err := json.Marshal(st); err == nil {
		if err := d.cache.Set(ctx, codeStatsKey, string(b), d.ttl); err != nil {
			d.log.Warn().Err(err).Msg("stats cache write failed")
		}
	}
	return st, nil
}

func (d *codeRepoCacheDecorator) InvalidateStats(ctx context.Context) {
	if err := d.cache.Del(ctx, codeStatsKey); err != nil {
		d.log.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}

// Write operations invalidate the cached aggregates.

func (d *codeRepoCacheDecorator) Insert(ctx context.Context, tx repository.Tx, code *model.Code) error {
	if err := d.CodeRepository.Insert(ctx, tx, code); err != nil {
		return err
	}
	d.InvalidateStats(ctx)
	return nil
}

func (d *codeRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	n, err := d.CodeRepository.Delete(ctx, tx, id)
	if n > 0 {
		d.InvalidateStats(ctx)
	}
	return n, err
}

func (d *codeRepoCacheDecorator) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	n, err := d.CodeRepository.DeleteAll(ctx, tx)
	d.InvalidateStats(ctx)
	return n, err
}
