package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"code-redemption/internal/domain"
	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/repository"
)

var _ repository.AttemptRepository = (*attemptRepo)(nil)

type attemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) repository.AttemptRepository {
	return &attemptRepo{pool: pool}
}

// Append inserts one attempt. The partial unique index on successful
// attempts is the arbiter: a second success for the same code value inserts
// nothing and is reported as domain.ErrAlreadyExists. A concurrent inserter
// blocks until the first transaction settles.
func (r *attemptRepo) Append(ctx context.Context, tx repository.Tx, a *model.Attempt) error {
	if a == nil || strings.TrimSpace(a.CodeValue) == "" || !a.Status.Valid() {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO auth_attempts (
  id, code_value, name, email, phone, purchase_location,
  status, client_ip, client_agent, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (code_value) WHERE status = 'success' DO NOTHING;
`
	tag, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.CodeValue, a.Contact.Name, a.Contact.Email, a.Contact.Phone, a.Contact.PurchaseLocation,
		string(a.Status), a.Client.IP, a.Client.UserAgent, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *attemptRepo) HasSuccessful(ctx context.Context, tx repository.Tx, codeValue string) (bool, error) {
	const q = `
SELECT EXISTS(
    SELECT 1 FROM auth_attempts
    WHERE code_value = $1 AND status = 'success'
)`
	row, err := pickRow(ctx, r.pool, tx, q, codeValue)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return exists, nil
}

func attemptWhere(f model.AttemptFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := containsPattern(s)
		w.add(`(code_value ILIKE ? ESCAPE '\' OR name ILIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\' OR phone ILIKE ? ESCAPE '\')`, p, p, p, p)
	}
	if f.ClientIP != "" {
		w.add(`client_ip = ?`, f.ClientIP)
	}
	if !f.Since.IsZero() {
		w.add(`created_at > ?`, f.Since)
	}
	return w
}

func (r *attemptRepo) List(ctx context.Context, tx repository.Tx, f model.AttemptFilter, p model.Page) ([]*model.Attempt, error) {
	w := attemptWhere(f)
	q := `
SELECT id, code_value, name, email, phone, purchase_location,
       status, client_ip, client_agent, created_at, redacted_at
  FROM auth_attempts` + w.sql() + `
 ORDER BY created_at DESC, id DESC
 LIMIT ` + w.next(p.Limit) + ` OFFSET ` + w.next(p.Offset) + `;`

	rows, err := queryRows(ctx, r.pool, tx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Attempt, 0, p.Limit)
	for rows.Next() {
		var a model.Attempt
		var status string
		var redactedAt *time.Time
		if err := rows.Scan(
			&a.ID, &a.CodeValue, &a.Contact.Name, &a.Contact.Email, &a.Contact.Phone, &a.Contact.PurchaseLocation,
			&status, &a.Client.IP, &a.Client.UserAgent, &a.CreatedAt, &redactedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		a.ID = strings.TrimSpace(a.ID)
		a.Status = model.AttemptStatus(status)
		a.Redacted = redactedAt != nil
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *attemptRepo) Count(ctx context.Context, tx repository.Tx, f model.AttemptFilter) (int, error) {
	w := attemptWhere(f)
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM auth_attempts`+w.sql()+`;`, w.args...)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return int(n), nil
}

func (r *attemptRepo) Summary(ctx context.Context, tx repository.Tx) (model.AttemptSummary, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'success'),
       COUNT(*) FILTER (WHERE status = 'failed')
  FROM auth_attempts;`
	var s model.AttemptSummary
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return s, err
	}
	var total, ok, failed int64
	if err := row.Scan(&total, &ok, &failed); err != nil {
		return s, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return model.AttemptSummary{Total: int(total), Successful: int(ok), Failed: int(failed)}, nil
}

// redactSet blanks the audit fields of a successful attempt but keeps the row,
// so purging the log never makes a code redeemable again.
const redactSet = `
UPDATE auth_attempts
   SET name = '', email = '', phone = '', purchase_location = '',
       client_ip = '', client_agent = '', redacted_at = now()
 WHERE status = 'success' AND redacted_at IS NULL`

func (r *attemptRepo) Delete(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM auth_attempts WHERE id = $1 AND status = 'failed';`, id)
	if err != nil {
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		return n, nil
	}
	tag, err = execSQL(ctx, r.pool, tx, redactSet+` AND id = $1;`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *attemptRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM auth_attempts WHERE status = 'failed';`)
	if err != nil {
		return 0, err
	}
	deleted := tag.RowsAffected()
	tag, err = execSQL(ctx, r.pool, tx, redactSet+`;`)
	if err != nil {
		return deleted, err
	}
	return deleted + tag.RowsAffected(), nil
}
