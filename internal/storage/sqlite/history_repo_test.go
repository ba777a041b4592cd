package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) domain.HistoryRepository {
	t.Helper()

	db, err := NewSqliteDB(filepath.Join(t.TempDir(), "history.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewHistoryRepository(db)
}

func operation(app string, kind domain.OperationKind, at time.Time) *domain.Operation {
	return &domain.Operation{
		TraceID:    uuid.New(),
		App:        app,
		Kind:       kind,
		Status:     domain.OperationSucceeded,
		Actor:      "ops",
		FromSlot:   domain.SlotBlue,
		ToSlot:     domain.SlotGreen,
		StartedAt:  at,
		FinishedAt: at.Add(2 * time.Second),
	}
}

func TestHistoryRepository_CreateAndList(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := operation("sample", domain.OperationDeploy, base)
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	second := operation("sample", domain.OperationSwitch, base.Add(time.Minute))
	second.Emergency = true
	second.Status = domain.OperationInconsistent
	second.Error = "state inconsistency: write failed"
	second.ErrorKind = "state_inconsistency"
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	_, err = repo.Create(ctx, operation("other", domain.OperationSwitch, base))
	require.NoError(t, err)

	ops, _, err := repo.List(ctx, domain.OperationListOptions{App: "sample", ListOptions: domain.ListOptions{Limit: 10}})
	require.NoError(t, err)
	require.Len(t, ops, 2)

	newest := ops[0]
	assert.Equal(t, second.TraceID, newest.TraceID)
	assert.Equal(t, domain.OperationSwitch, newest.Kind)
	assert.Equal(t, domain.OperationInconsistent, newest.Status)
	assert.True(t, newest.Emergency)
	assert.Equal(t, domain.SlotBlue, newest.FromSlot)
	assert.Equal(t, domain.SlotGreen, newest.ToSlot)
	assert.Equal(t, "state_inconsistency", newest.ErrorKind)
	assert.True(t, newest.StartedAt.Equal(second.StartedAt))

	assert.Equal(t, first.TraceID, ops[1].TraceID)
	assert.False(t, ops[1].Emergency)
}

func TestHistoryRepository_FiltersAndPaginates(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, operation("sample", domain.OperationSwitch, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, operation("sample", domain.OperationDeploy, base))
	require.NoError(t, err)

	ops, total, err := repo.List(ctx, domain.OperationListOptions{
		App:         "sample",
		Kind:        domain.OperationSwitch,
		ListOptions: domain.ListOptions{IsPaginate: true, Page: 2, Limit: 2},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 5, total)
	require.Len(t, ops, 2)
	assert.True(t, ops[0].StartedAt.Equal(base.Add(2*time.Minute)))
	assert.True(t, ops[1].StartedAt.Equal(base.Add(time.Minute)))
}

func TestHistoryRepository_EmptyList(t *testing.T) {
	repo := newRepo(t)

	ops, total, err := repo.List(context.Background(), domain.OperationListOptions{App: "none"})
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Zero(t, total)
}

func TestHistoryRepository_DeleteBefore(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := repo.Create(ctx, operation("sample", domain.OperationSwitch, base.Add(-72*time.Hour)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, operation("sample", domain.OperationSwitch, base))
	require.NoError(t, err)

	n, err := repo.DeleteBefore(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ops, _, err := repo.List(ctx, domain.OperationListOptions{App: "sample"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].StartedAt.Equal(base))
}
