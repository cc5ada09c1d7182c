package repository

import (
	"context"

	"code-redemption/internal/domain/model"
)

// CodeRepository is the port for the provisioned code set.
type CodeRepository interface {
	// Insert stores a new code. A duplicate value returns domain.ErrAlreadyExists.
	Insert(ctx context.Context, tx Tx, code *model.Code) error
	// FindByValue matches the exact, case-sensitive value.
	FindByValue(ctx context.Context, tx Tx, value string) (*model.Code, error)
	// FindByValueFold matches case-insensitively. When several codes differ only
	// by case the oldest one is returned.
	FindByValueFold(ctx context.Context, tx Tx, value string) (*model.Code, error)
	// Delete removes one code and reports how many rows were affected.
	Delete(ctx context.Context, tx Tx, id string) (int64, error)
	DeleteAll(ctx context.Context, tx Tx) (int64, error)
	// Stats computes total/used/unused in a single aggregate query.
	Stats(ctx context.Context, tx Tx) (model.CodeStats, error)
	List(ctx context.Context, tx Tx, f model.CodeFilter, p model.Page) ([]*model.CodeView, error)
	Count(ctx context.Context, tx Tx, f model.CodeFilter) (int, error)
}

// StatsInvalidator is implemented by code repositories that cache Stats.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context)
}
