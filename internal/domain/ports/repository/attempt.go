package repository

import (
	"context"

	"code-redemption/internal/domain/model"
)

// AttemptRepository is the port for the append-only attempt log.
type AttemptRepository interface {
	// Append stores an attempt. A second success for the same code value
	// returns domain.ErrAlreadyExists.
	Append(ctx context.Context, tx Tx, a *model.Attempt) error
	HasSuccessful(ctx context.Context, tx Tx, codeValue string) (bool, error)
	List(ctx context.Context, tx Tx, f model.AttemptFilter, p model.Page) ([]*model.Attempt, error)
	Count(ctx context.Context, tx Tx, f model.AttemptFilter) (int, error)
	Summary(ctx context.Context, tx Tx) (model.AttemptSummary, error)
	// Delete purges one attempt. Failed attempts are removed; successful ones
	// are redacted in place so the code stays redeemed.
	Delete(ctx context.Context, tx Tx, id string) (int64, error)
	DeleteAll(ctx context.Context, tx Tx) (int64, error)
}
