// File: internal/usecase/code_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"

	"code-redemption/internal/domain"
	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/repository"
	"code-redemption/internal/infra/logging"
	"code-redemption/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CodeUseCase = (*codeUC)(nil)

// CodeUseCase manages the provisioned code set for admin flows.
type CodeUseCase interface {
	Provision(ctx context.Context, values []string) (model.ProvisionResult, error)
	Lookup(ctx context.Context, value string) (*model.Code, error)
	Status(ctx context.Context, value string) (model.CodeStatus, *model.Code, error)
	Delete(ctx context.Context, id string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (model.CodeStats, error)
	List(ctx context.Context, f model.CodeFilter, p model.Page) ([]*model.CodeView, int, error)
	Dashboard(ctx context.Context) (model.Dashboard, error)
}

type codeUC struct {
	codes    repository.CodeRepository
	attempts repository.AttemptRepository
	log      *zerolog.Logger
}

func NewCodeUseCase(codes repository.CodeRepository, attempts repository.AttemptRepository, logger *zerolog.Logger) *codeUC {
	return &codeUC{codes: codes, attempts: attempts, log: logger}
}

// Provision inserts each trimmed value. Empty values and duplicates (within
// the batch or already stored) are skipped; a row that fails to insert is
// counted and reported without stopping the batch. Uniqueness is left to the
// store, so concurrent batches never insert the same value twice.
func (c *codeUC) Provision(ctx context.Context, values []string) (model.ProvisionResult, error) {
	defer logging.TraceDuration(c.log, "CodeUC.Provision")()

	var res model.ProvisionResult
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			res.Skipped++
			continue
		}
		if _, dup := seen[v]; dup {
			res.Skipped++
			continue
		}
		seen[v] = struct{}{}

		code, err := model.NewCode("", v)
		if err != nil {
			res.Skipped++
			continue
		}
		err = c.codes.Insert(ctx, repository.NoTX, code)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, domain.ErrAlreadyExists):
			res.Skipped++
		default:
			res.Failed++
			res.Errors = append(res.Errors, model.ProvisionRowErr{Value: v, Err: err.Error()})
			c.log.Warn().Err(err).Str("code", logging.Redact(v, false)).Msg("failed to provision code")
		}
	}

	metrics.AddProvisioned(res.Imported, res.Skipped, res.Failed)
	c.log.Info().
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("provisioning finished")
	return res, nil
}

// Lookup returns the exact match, else the case-insensitive one.
func (c *codeUC) Lookup(ctx context.Context, value string) (*model.Code, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.ErrEmptyCode
	}
	code, err := c.codes.FindByValue(ctx, repository.NoTX, value)
	if errors.Is(err, domain.ErrNotFound) {
		code, err = c.codes.FindByValueFold(ctx, repository.NoTX, value)
	}
	return code, err
}

// Status derives the redemption state exactly the way Authenticate sees it.
func (c *codeUC) Status(ctx context.Context, value string) (model.CodeStatus, *model.Code, error) {
	code, err := c.Lookup(ctx, value)
	if errors.Is(err, domain.ErrNotFound) {
		return model.CodeStatusUnseen, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	used, err := c.attempts.HasSuccessful(ctx, repository.NoTX, code.Value)
	if err != nil {
		return "", nil, err
	}
	if used {
		return model.CodeStatusUsed, code, nil
	}
	return model.CodeStatusUnused, code, nil
}

func (c *codeUC) Delete(ctx context.Context, id string) (int64, error) {
	n, err := c.codes.Delete(ctx, repository.NoTX, strings.TrimSpace(id))
	if err != nil {
		return 0, err
	}
	c.log.Info().Str("id", id).Int64("deleted", n).Msg("code deleted")
	return n, nil
}

func (c *codeUC) DeleteAll(ctx context.Context) (int64, error) {
	n, err := c.codes.DeleteAll(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	c.log.Warn().Int64("deleted", n).Msg("all codes deleted")
	return n, nil
}

func (c *codeUC) Stats(ctx context.Context) (model.CodeStats, error) {
	return c.codes.Stats(ctx, repository.NoTX)
}

func (c *codeUC) List(ctx context.Context, f model.CodeFilter, p model.Page) ([]*model.CodeView, int, error) {
	total, err := c.codes.Count(ctx, repository.NoTX, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*model.CodeView{}, 0, nil
	}
	items, err := c.codes.List(ctx, repository.NoTX, f, p)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (c *codeUC) Dashboard(ctx context.Context) (model.Dashboard, error) {
	var d model.Dashboard
	st, err := c.codes.Stats(ctx, repository.NoTX)
	if err != nil {
		return d, err
	}
	sum, err := c.attempts.Summary(ctx, repository.NoTX)
	if err != nil {
		return d, err
	}
	d.Codes = st
	d.Attempts = sum
	return d, nil
}
