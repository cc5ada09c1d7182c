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

// Ensure implementation satisfies the interface.
var _ repository.CodeRepository = (*codeRepo)(nil)

type codeRepo struct {
	pool *pgxpool.Pool
}

func NewCodeRepo(pool *pgxpool.Pool) repository.CodeRepository {
	return &codeRepo{pool: pool}
}

// Insert relies on the unique constraint on value. ON CONFLICT DO NOTHING
// keeps a surrounding transaction usable when the value already exists.
func (r *codeRepo) Insert(ctx context.Context, tx repository.Tx, code *model.Code) error {
	const q = `
INSERT INTO auth_codes (id, value, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (value) DO NOTHING;
`
	tag, err := execSQL(ctx, r.pool, tx, q, code.ID, code.Value, code.CreatedAt)
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

func (r *codeRepo) FindByValue(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	const q = `
SELECT id, value, created_at
  FROM auth_codes
 WHERE value = $1;
`
	return r.scanOne(ctx, tx, q, value)
}

func (r *codeRepo) FindByValueFold(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	const q = `
SELECT id, value, created_at
  FROM auth_codes
 WHERE lower(value) = lower($1)
 ORDER BY created_at, id
 LIMIT 1;
`
	return r.scanOne(ctx, tx, q, value)
}

func (r *codeRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Code, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var c model.Code
	if err := row.Scan(&c.ID, &c.Value, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &c, nil
}

func (r *codeRepo) Delete(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	// Non-UUID ids cannot exist; report zero affected instead of a cast error.
	const q = `DELETE FROM auth_codes WHERE id::text = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *codeRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM auth_codes;`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// successJoin attaches the (at most one) successful attempt of each code.
const successJoin = `
  FROM auth_codes c
  LEFT JOIN auth_attempts s
    ON s.code_value = c.value AND s.status = 'success'`

func (r *codeRepo) Stats(ctx context.Context, tx repository.Tx) (model.CodeStats, error) {
	const q = `
SELECT COUNT(c.id), COUNT(s.id)` + successJoin + `;`
	var st model.CodeStats
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return st, err
	}
	var total, used int64
	if err := row.Scan(&total, &used); err != nil {
		return st, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	st.Total = int(total)
	st.Used = int(used)
	st.Unused = st.Total - st.Used
	return st, nil
}

func codeWhere(f model.CodeFilter) *whereBuilder {
	w := &whereBuilder{}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add(`c.value ILIKE ? ESCAPE '\'`, containsPattern(s))
	}
	switch f.Status {
	case model.CodeStatusUsed:
		w.add(`s.id IS NOT NULL`)
	case model.CodeStatusUnused:
		w.add(`s.id IS NULL`)
	}
	return w
}

func (r *codeRepo) List(ctx context.Context, tx repository.Tx, f model.CodeFilter, p model.Page) ([]*model.CodeView, error) {
	w := codeWhere(f)
	q := `
SELECT c.id, c.value, c.created_at, s.created_at` + successJoin + w.sql() + `
 ORDER BY c.created_at DESC, c.id
 LIMIT ` + w.next(p.Limit) + ` OFFSET ` + w.next(p.Offset) + `;`

	rows, err := queryRows(ctx, r.pool, tx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.CodeView, 0, p.Limit)
	for rows.Next() {
		var v model.CodeView
		var usedAt *time.Time
		if err := rows.Scan(&v.ID, &v.Value, &v.CreatedAt, &usedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		v.UsedAt = usedAt
		v.Status = model.CodeStatusUnused
		if usedAt != nil {
			v.Status = model.CodeStatusUsed
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *codeRepo) Count(ctx context.Context, tx repository.Tx, f model.CodeFilter) (int, error) {
	w := codeWhere(f)
	q := `SELECT COUNT(*)` + successJoin + w.sql() + `;`
	row, err := pickRow(ctx, r.pool, tx, q, w.args...)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return int(n), nil
}
