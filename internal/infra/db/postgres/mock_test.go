//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"code-redemption/internal/domain/model"
	"code-redemption/internal/domain/ports/repository"
	red "code-redemption/internal/infra/redis"

	"github.com/go-redis/redis/v8"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCodeRepo mocks the database repository that the stats decorator wraps.
type mockInnerCodeRepo struct {
	InsertFunc    func(ctx context.Context, tx repository.Tx, code *model.Code) error
	DeleteFunc    func(ctx context.Context, tx repository.Tx, id string) (int64, error)
	DeleteAllFunc func(ctx context.Context, tx repository.Tx) (int64, error)
	StatsFunc     func(ctx context.Context, tx repository.Tx) (model.CodeStats, error)

	statsCalls int
}

func (m *mockInnerCodeRepo) Insert(ctx context.Context, tx repository.Tx, code *model.Code) error {
	return m.InsertFunc(ctx, tx, code)
}
func (m *mockInnerCodeRepo) FindByValue(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	return nil, nil
}
func (m *mockInnerCodeRepo) FindByValueFold(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	return nil, nil
}
func (m *mockInnerCodeRepo) Delete(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	return m.DeleteFunc(ctx, tx, id)
}
func (m *mockInnerCodeRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	return m.DeleteAllFunc(ctx, tx)
}
func (m *mockInnerCodeRepo) Stats(ctx context.Context, tx repository.Tx) (model.CodeStats, error) {
	m.statsCalls++
	return m.StatsFunc(ctx, tx)
}
func (m *mockInnerCodeRepo) List(ctx context.Context, tx repository.Tx, f model.CodeFilter, p model.Page) ([]*model.CodeView, error) {
	return nil, nil
}
func (m *mockInnerCodeRepo) Count(ctx context.Context, tx repository.Tx, f model.CodeFilter) (int, error) {
	return 0, nil
}

// mockRedisClient is a map-backed stand-in for our Redis client wrapper.
type mockRedisClient struct {
	mu     sync.Mutex
	store  map[string]string
	GetErr error
}

var _ red.RedisClient = &mockRedisClient{}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{store: map[string]string{}}
}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value.(string)
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return 0, nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
