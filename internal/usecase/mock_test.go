//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"code-redemption/internal/config"
	"code-redemption/internal/domain"
	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/adapter"
	"code-redemption/internal/domain/ports/repository"
	"code-redemption/internal/infra/messages"
)

// =============================
// Repositories
// =============================

// ---- In-memory AttemptRepository ----

// MemAttemptRepo enforces one success per code value the way the partial
// unique index does in Postgres.
type MemAttemptRepo struct {
	mu   sync.Mutex
	rows []*model.Attempt

	AppendFunc        func(ctx context.Context, tx repository.Tx, a *model.Attempt) error
	HasSuccessfulFunc func(ctx context.Context, tx repository.Tx, codeValue string) (bool, error)
}

var _ repository.AttemptRepository = (*MemAttemptRepo)(nil)

func NewMemAttemptRepo() *MemAttemptRepo { return &MemAttemptRepo{} }

func (m *MemAttemptRepo) Append(ctx context.Context, tx repository.Tx, a *model.Attempt) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, a)
	}
	if a == nil || a.CodeValue == "" || !a.Status.Valid() {
		return domain.ErrInvalidArgument
	}
	if err := checkAttemptWidths(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status == model.AttemptStatusSuccess {
		for _, r := range m.rows {
			if r.CodeValue == a.CodeValue && r.Status == model.AttemptStatusSuccess {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

// checkAttemptWidths mirrors the VARCHAR limits of auth_attempts.
func checkAttemptWidths(a *model.Attempt) error {
	cols := []struct {
		name string
		v    string
		max  int
	}{
		{"code_value", a.CodeValue, 255},
		{"name", a.Contact.Name, 255},
		{"email", a.Contact.Email, 255},
		{"phone", a.Contact.Phone, 50},
		{"purchase_location", a.Contact.PurchaseLocation, 255},
		{"client_ip", a.Client.IP, 45},
	}
	for _, c := range cols {
		if utf8.RuneCountInString(c.v) > c.max {
			return fmt.Errorf("value too long for %s: %d > %d", c.name, utf8.RuneCountInString(c.v), c.max)
		}
	}
	return nil
}

func (m *MemAttemptRepo) HasSuccessful(ctx context.Context, tx repository.Tx, codeValue string) (bool, error) {
	if m.HasSuccessfulFunc != nil {
		return m.HasSuccessfulFunc(ctx, tx, codeValue)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasSuccessfulLocked(codeValue), nil
}

func (m *MemAttemptRepo) hasSuccessfulLocked(codeValue string) bool {
	for _, r := range m.rows {
		if r.CodeValue == codeValue && r.Status == model.AttemptStatusSuccess {
			return true
		}
	}
	return false
}

func (m *MemAttemptRepo) match(r *model.Attempt, f model.AttemptFilter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if s := strings.ToLower(f.Search); s != "" {
		hay := strings.ToLower(strings.Join([]string{r.CodeValue, r.Contact.Name, r.Contact.Email, r.Contact.Phone}, "\x00"))
		if !strings.Contains(hay, s) {
			return false
		}
	}
	if f.ClientIP != "" && r.Client.IP != f.ClientIP {
		return false
	}
	if !f.Since.IsZero() && !r.CreatedAt.After(f.Since) {
		return false
	}
	return true
}

func (m *MemAttemptRepo) List(ctx context.Context, tx repository.Tx, f model.AttemptFilter, p model.Page) ([]*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Attempt
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.match(m.rows[i], f) {
			cp := *m.rows[i]
			out = append(out, &cp)
		}
	}
	if p.Offset >= len(out) {
		return []*model.Attempt{}, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (m *MemAttemptRepo) Count(ctx context.Context, tx repository.Tx, f model.AttemptFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if m.match(r, f) {
			n++
		}
	}
	return n, nil
}

func (m *MemAttemptRepo) Summary(ctx context.Context, tx repository.Tx) (model.AttemptSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s model.AttemptSummary
	for _, r := range m.rows {
		s.Total++
		if r.Status == model.AttemptStatusSuccess {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s, nil
}

func redact(r *model.Attempt) {
	r.Contact = model.Contact{}
	r.Client = model.ClientInfo{}
	r.Redacted = true
}

func (m *MemAttemptRepo) Delete(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID != id {
			continue
		}
		if r.Status == model.AttemptStatusFailed {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return 1, nil
		}
		if r.Redacted {
			return 0, nil
		}
		redact(r)
		return 1, nil
	}
	return 0, nil
}

func (m *MemAttemptRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.Status == model.AttemptStatusFailed {
			n++
			continue
		}
		if !r.Redacted {
			redact(r)
			n++
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

// All returns a snapshot in insertion order.
func (m *MemAttemptRepo) All() []model.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Attempt, len(m.rows))
	for i, r := range m.rows {
		out[i] = *r
	}
	return out
}

// ---- In-memory CodeRepository ----

type MemCodeRepo struct {
	mu       sync.Mutex
	codes    []*model.Code
	attempts *MemAttemptRepo

	// FailOn makes Insert fail for specific values.
	FailOn          map[string]error
	FindByValueFunc func(ctx context.Context, tx repository.Tx, value string) (*model.Code, error)

	Invalidations int
}

var (
	_ repository.CodeRepository   = (*MemCodeRepo)(nil)
	_ repository.StatsInvalidator = (*MemCodeRepo)(nil)
)

// NewMemCodeRepo derives used/unused from attempts, like the SQL join does.
func NewMemCodeRepo(attempts *MemAttemptRepo) *MemCodeRepo {
	return &MemCodeRepo{attempts: attempts}
}

func (m *MemCodeRepo) Insert(ctx context.Context, tx repository.Tx, code *model.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, bad := m.FailOn[code.Value]; bad {
		return err
	}
	for _, c := range m.codes {
		if c.Value == code.Value {
			return domain.ErrAlreadyExists
		}
	}
	cp := *code
	m.codes = append(m.codes, &cp)
	return nil
}

func (m *MemCodeRepo) FindByValue(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	if m.FindByValueFunc != nil {
		return m.FindByValueFunc(ctx, tx, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Value == value {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemCodeRepo) FindByValueFold(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if strings.EqualFold(c.Value, value) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemCodeRepo) Delete(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.codes {
		if c.ID == id {
			m.codes = append(m.codes[:i], m.codes[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemCodeRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.codes))
	m.codes = nil
	return n, nil
}

func (m *MemCodeRepo) views() []*model.CodeView {
	m.attempts.mu.Lock()
	defer m.attempts.mu.Unlock()
	out := make([]*model.CodeView, 0, len(m.codes))
	for _, c := range m.codes {
		v := &model.CodeView{Code: *c, Status: model.CodeStatusUnused}
		for _, r := range m.attempts.rows {
			if r.CodeValue == c.Value && r.Status == model.AttemptStatusSuccess {
				at := r.CreatedAt
				v.Status = model.CodeStatusUsed
				v.UsedAt = &at
			}
		}
		out = append(out, v)
	}
	return out
}

func (m *MemCodeRepo) Stats(ctx context.Context, tx repository.Tx) (model.CodeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st model.CodeStats
	for _, v := range m.views() {
		st.Total++
		if v.Status == model.CodeStatusUsed {
			st.Used++
		}
	}
	st.Unused = st.Total - st.Used
	return st, nil
}

func (m *MemCodeRepo) filtered(f model.CodeFilter) []*model.CodeView {
	var out []*model.CodeView
	for _, v := range m.views() {
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(v.Value), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemCodeRepo) List(ctx context.Context, tx repository.Tx, f model.CodeFilter, p model.Page) ([]*model.CodeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filtered(f)
	if p.Offset >= len(out) {
		return []*model.CodeView{}, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (m *MemCodeRepo) Count(ctx context.Context, tx repository.Tx, f model.CodeFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filtered(f)), nil
}

func (m *MemCodeRepo) InvalidateStats(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidations++
}

// Values returns the stored code values, sorted.
func (m *MemCodeRepo) Values() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.codes))
	for _, c := range m.codes {
		out = append(out, c.Value)
	}
	sort.Strings(out)
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int

	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{counts: map[string]int{}}
}

func (r *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.AllowFunc != nil {
		return r.AllowFunc(ctx, key, limit, window)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key] <= limit, nil
}

// =============================
// Helpers
// =============================

const (
	testSuccessTemplate = "OK {code} for {name}"
	testErrorTemplate   = "Sorry, that code cannot be used."
)

func newTestRenderer() *messages.Renderer {
	return messages.NewRenderer(config.MessagesConfig{
		Success: testSuccessTemplate,
		Error:   testErrorTemplate,
	})
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
