//go:build !integration

package web

import (
	"context"

	"code-redemption/internal/domain/model"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type mockCodeUC struct {
	ProvisionFunc func(ctx context.Context, values []string) (model.ProvisionResult, error)
	StatusFunc    func(ctx context.Context, value string) (model.CodeStatus, *model.Code, error)
	DeleteFunc    func(ctx context.Context, id string) (int64, error)
	ListFunc      func(ctx context.Context, f model.CodeFilter, p model.Page) ([]*model.CodeView, int, error)
	DashboardFunc func(ctx context.Context) (model.Dashboard, error)

	deleteAllCalls int
}

func (m *mockCodeUC) Provision(ctx context.Context, values []string) (model.ProvisionResult, error) {
	if m.ProvisionFunc != nil {
		return m.ProvisionFunc(ctx, values)
	}
	return model.ProvisionResult{Imported: len(values)}, nil
}

func (m *mockCodeUC) Lookup(ctx context.Context, value string) (*model.Code, error) {
	_, code, err := m.Status(ctx, value)
	return code, err
}

func (m *mockCodeUC) Status(ctx context.Context, value string) (model.CodeStatus, *model.Code, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, value)
	}
	return model.CodeStatusUnseen, nil, nil
}

func (m *mockCodeUC) Delete(ctx context.Context, id string) (int64, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return 1, nil
}

func (m *mockCodeUC) DeleteAll(ctx context.Context) (int64, error) {
	m.deleteAllCalls++
	return 3, nil
}

func (m *mockCodeUC) Stats(ctx context.Context) (model.CodeStats, error) {
	d, err := m.Dashboard(ctx)
	return d.Codes, err
}

func (m *mockCodeUC) List(ctx context.Context, f model.CodeFilter, p model.Page) ([]*model.CodeView, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f, p)
	}
	return []*model.CodeView{}, 0, nil
}

func (m *mockCodeUC) Dashboard(ctx context.Context) (model.Dashboard, error) {
	if m.DashboardFunc != nil {
		return m.DashboardFunc(ctx)
	}
	return model.Dashboard{}, nil
}

type mockAttemptUC struct {
	ListFunc   func(ctx context.Context, f model.AttemptFilter, p model.Page) ([]*model.Attempt, int, error)
	DeleteFunc func(ctx context.Context, id string) (int64, error)
}

func (m *mockAttemptUC) List(ctx context.Context, f model.AttemptFilter, p model.Page) ([]*model.Attempt, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f, p)
	}
	return []*model.Attempt{}, 0, nil
}

func (m *mockAttemptUC) Summary(ctx context.Context) (model.AttemptSummary, error) {
	return model.AttemptSummary{}, nil
}

func (m *mockAttemptUC) Delete(ctx context.Context, id string) (int64, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return 1, nil
}

func (m *mockAttemptUC) DeleteAll(ctx context.Context) (int64, error) {
	return 0, nil
}
