// File: internal/usecase/redemption_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"code-redemption/internal/domain"
	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/adapter"
	"code-redemption/internal/domain/ports/repository"
	"code-redemption/internal/infra/logging"
	"code-redemption/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

// RedemptionUseCase decides whether a submitted code may be consumed.
type RedemptionUseCase interface {
	// Authenticate runs one redemption. The returned error is non-nil only
	// when the store failed; the Outcome is always safe to show.
	Authenticate(ctx context.Context, req model.RedemptionRequest) (model.Outcome, error)
}

// RedemptionOptions are the knobs read from config at wiring time.
type RedemptionOptions struct {
	LogFailedAttempts bool
	UseLock           bool
	LockTTL           time.Duration

	RateLimitEnabled bool
	MaxAttempts      int
	RateWindow       time.Duration

	// Dev disables redaction of codes in logs.
	Dev bool
}

type redemptionUC struct {
	codes    repository.CodeRepository
	attempts repository.AttemptRepository
	tm       repository.TransactionManager
	messages adapter.MessageRenderer
	limiter  adapter.RateLimiter // optional
	locker   adapter.Locker      // optional
	opts     RedemptionOptions
	log      *zerolog.Logger
}

func NewRedemptionUseCase(
	codes repository.CodeRepository,
	attempts repository.AttemptRepository,
	tm repository.TransactionManager,
	messages adapter.MessageRenderer,
	limiter adapter.RateLimiter,
	locker adapter.Locker,
	opts RedemptionOptions,
	logger *zerolog.Logger,
) *redemptionUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Hour
	}
	return &redemptionUC{
		codes:    codes,
		attempts: attempts,
		tm:       tm,
		messages: messages,
		limiter:  limiter,
		locker:   locker,
		opts:     opts,
		log:      logger,
	}
}

func (u *redemptionUC) Authenticate(ctx context.Context, req model.RedemptionRequest) (out model.Outcome, err error) {
	defer logging.TraceDuration(u.log, "RedemptionUC.Authenticate")()
	start := time.Now()
	log := logging.With(ctx, u.log)
	defer func() {
		metrics.IncRedemption(out.InternalReason)
		metrics.ObserveRedemptionLatency(float64(time.Since(start).Microseconds()) / 1000)
		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("code", logging.Redact(strings.TrimSpace(req.Code), u.opts.Dev)).
			Bool("success", out.Success).
			Str("reason", out.InternalReason).
			Msg("redemption attempt")
	}()

	req.Contact = req.Contact.Normalize()
	req.Client = req.Client.Normalize()
	value := strings.TrimSpace(req.Code)
	if value == "" {
		// Nothing to log against.
		return u.failure(req, value, model.ReasonEmptyCode), nil
	}

	if !u.allow(ctx, log, req.Client.IP) {
		return u.failure(req, value, model.ReasonRateLimited), nil
	}

	code, err := u.lookup(ctx, value)
	if errors.Is(err, domain.ErrNotFound) {
		u.recordFailure(ctx, log, value, req)
		return u.failure(req, value, model.ReasonNotFound), nil
	}
	if err != nil {
		return u.failure(req, value, model.ReasonStoreError), fmt.Errorf("lookup code: %w", err)
	}

	if u.opts.UseLock && u.locker != nil {
		key := redemptionLockKey(code.Value)
		token, lerr := u.locker.TryLock(ctx, key, u.opts.LockTTL)
		if lerr == nil {
			defer func() {
				if uerr := u.locker.Unlock(context.WithoutCancel(ctx), key, token); uerr != nil {
					log.Warn().Err(uerr).Msg("failed to release redemption lock")
				}
			}()
		} else {
			// The unique index still guards the invariant without the lock.
			log.Debug().Err(lerr).Msg("redemption lock not acquired, continuing")
		}
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		used, err := u.attempts.HasSuccessful(ctx, tx, code.Value)
		if err != nil {
			return err
		}
		if used {
			return domain.ErrCodeAlreadyUsed
		}
		a, err := model.NewAttempt(code.Value, model.AttemptStatusSuccess, req.Contact, req.Client)
		if err != nil {
			return err
		}
		if err := u.attempts.Append(ctx, tx, a); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return domain.ErrCodeAlreadyUsed
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		// Written after the transaction so the failed row survives its rollback.
		u.recordFailure(ctx, log, code.Value, req)
		out = u.failure(req, code.Value, model.ReasonAlreadyUsed)
		out.CodeValue = code.Value
		return out, nil
	case err != nil:
		out = u.failure(req, code.Value, model.ReasonStoreError)
		out.CodeValue = code.Value
		return out, fmt.Errorf("redeem code: %w", err)
	}

	if inv, ok := u.codes.(repository.StatsInvalidator); ok {
		inv.InvalidateStats(ctx)
	}
	return model.Outcome{
		Success:        true,
		PublicMessage:  u.messages.Render(adapter.MessageSuccess, messageData(code.Value, req)),
		InternalReason: model.ReasonSuccess,
		CodeValue:      code.Value,
	}, nil
}

// lookup prefers the exact value and falls back to a case-insensitive match.
func (u *redemptionUC) lookup(ctx context.Context, value string) (*model.Code, error) {
	c, err := u.codes.FindByValue(ctx, repository.NoTX, value)
	if !errors.Is(err, domain.ErrNotFound) {
		return c, err
	}
	return u.codes.FindByValueFold(ctx, repository.NoTX, value)
}

// allow consults the limiter; limiter failures let the request through.
func (u *redemptionUC) allow(ctx context.Context, log *zerolog.Logger, ip string) bool {
	if !u.opts.RateLimitEnabled || u.limiter == nil || ip == "" {
		return true
	}
	ok, err := u.limiter.Allow(ctx, clientRateKey(ip), u.opts.MaxAttempts, u.opts.RateWindow)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		return true
	}
	return ok
}

// recordFailure appends a failed attempt when failure logging is on. The
// outcome is already negative, so a write error is only logged.
func (u *redemptionUC) recordFailure(ctx context.Context, log *zerolog.Logger, value string, req model.RedemptionRequest) {
	if !u.opts.LogFailedAttempts {
		return
	}
	a, err := model.NewAttempt(model.Clamp(value, model.MaxCodeValueLen), model.AttemptStatusFailed, req.Contact, req.Client)
	if err != nil {
		return
	}
	if err := u.attempts.Append(ctx, repository.NoTX, a); err != nil {
		log.Error().Err(err).Msg("failed to record failed attempt")
	}
}

func (u *redemptionUC) failure(req model.RedemptionRequest, value, reason string) model.Outcome {
	return model.Outcome{
		Success:        false,
		PublicMessage:  u.messages.Render(adapter.MessageError, messageData(value, req)),
		InternalReason: reason,
	}
}

func messageData(value string, req model.RedemptionRequest) adapter.MessageData {
	return adapter.MessageData{
		Code:             value,
		Name:             req.Contact.Name,
		Email:            req.Contact.Email,
		Phone:            req.Contact.Phone,
		PurchaseLocation: req.Contact.PurchaseLocation,
		Date:             time.Now(),
	}
}
