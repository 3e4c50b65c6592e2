package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/resq-agent/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/resq-agent/internal/domain"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "cases.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openStore(t)

	v, err := sqlite.Migrate(context.Background(), s.DB)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	created := time.Date(2026, 4, 1, 8, 30, 0, 123, time.UTC)

	c := &domain.Case{
		ID:          "CA1",
		Emergency:   "fire",
		Name:        "Atharv",
		Location:    "FC Road, Pune",
		Number:      "98765-43210",
		Transcript:  "Dispatcher: 1 1 2, what is your emergency?\nCaller: fire",
		Priority:    domain.PriorityCritical,
		Method:      domain.MethodSemantic,
		Status:      domain.StatusOpen,
		InProgress:  true,
		Coordinates: &domain.Coordinates{Lat: 18.52, Lon: 73.85, Source: domain.SourceGeocoder},
		Region:      domain.Region{City: "Pune", District: "Pune", State: "Maharashtra", Country: "India"},
		CreatedAt:   created,
	}
	require.NoError(t, s.UpsertCase(ctx, c))

	got, err := s.GetCase(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = s.GetCase(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestUpsertKeepsCreatedAtAndResolution(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	created := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertCase(ctx, &domain.Case{ID: "CA2", Status: domain.StatusOpen, InProgress: true, CreatedAt: created, Region: domain.UnknownRegion()}))
	require.NoError(t, s.UpsertCase(ctx, &domain.Case{ID: "CA2", Priority: domain.PriorityHigh, Status: domain.StatusOpen, InProgress: true, CreatedAt: created.Add(time.Hour), Region: domain.UnknownRegion()}))

	got, err := s.GetCase(ctx, "CA2")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, domain.PriorityHigh, got.Priority)

	ok, err := s.ResolveCase(ctx, "CA2", created.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.UpsertCase(ctx, &domain.Case{ID: "CA2", Status: domain.StatusOpen, InProgress: true, CreatedAt: created, Region: domain.UnknownRegion()}))

	got, err = s.GetCase(ctx, "CA2")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, got.Priority, "resolved rows are not rewritten")
	assert.Equal(t, domain.StatusResolved, got.Status)
	assert.False(t, got.InProgress)
	require.NotNil(t, got.ResolvedAt)

	open, err := s.ListOpenCases(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
	resolved, err := s.ListResolvedCases(ctx)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	ok, err = s.ResolveCase(ctx, "nope", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
