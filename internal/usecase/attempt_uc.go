package usecase

import (
	"context"
	"strings"

	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AttemptUseCase = (*attemptUC)(nil)

type AttemptUseCase interface {
	List(ctx context.Context, f model.AttemptFilter, p model.Page) ([]*model.Attempt, int, error)
	Summary(ctx context.Context) (model.AttemptSummary, error)
	Delete(ctx context.Context, id string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type attemptUC struct {
	attempts repository.AttemptRepository
	log      *zerolog.Logger
}

func NewAttemptUseCase(attempts repository.AttemptRepository, logger *zerolog.Logger) *attemptUC {
	return &attemptUC{attempts: attempts, log: logger}
}

func (a *attemptUC) List(ctx context.Context, f model.AttemptFilter, p model.Page) ([]*model.Attempt, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	total, err := a.attempts.Count(ctx, repository.NoTX, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*model.Attempt{}, 0, nil
	}
	items, err := a.attempts.List(ctx, repository.NoTX, f, p)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (a *attemptUC) Summary(ctx context.Context) (model.AttemptSummary, error) {
	return a.attempts.Summary(ctx, repository.NoTX)
}

// Delete purges one attempt. Successful attempts are redacted, not removed,
// so their codes stay used.
func (a *attemptUC) Delete(ctx context.Context, id string) (int64, error) {
	n, err := a.attempts.Delete(ctx, repository.NoTX, strings.TrimSpace(id))
	if err != nil {
		return 0, err
	}
	a.log.Info().Str("id", id).Int64("affected", n).Msg("attempt purged")
	return n, nil
}

func (a *attemptUC) DeleteAll(ctx context.Context) (int64, error) {
	n, err := a.attempts.DeleteAll(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	a.log.Warn().Int64("affected", n).Msg("attempt log purged")
	return n, nil
}
