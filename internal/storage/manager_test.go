package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpfinder-go/internal/index"
	"mcpfinder-go/internal/registry"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func newRecord(id string, source string, updatedAt *time.Time) *registry.ServerRecord {
	rec := &registry.ServerRecord{
		ID:        id,
		UpdatedAt: updatedAt,
	}
	registry.Finalize(rec, source, time.Now())
	return rec
}

func ts(value string) *time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestManager_UpsertAndGet_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	rec := &registry.ServerRecord{
		ID:                "io.modelcontextprotocol/filesystem",
		Description:       "Secure filesystem access",
		Version:           "1.2.0",
		RegistryType:      registry.RegistryTypeNPM,
		PackageIdentifier: "@modelcontextprotocol/server-filesystem",
		TransportType:     registry.TransportStdio,
		UpdatedAt:         ts("2024-05-01T00:00:00Z"),
		EnvironmentVariables: []registry.EnvVar{
			{Name: "ROOT_DIR", Description: "Directory to expose"},
		},
	}
	registry.Finalize(rec, registry.SourceOfficial, time.Now())

	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{rec}))

	byID, err := m.GetServerByIDOrSlug(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Description, byID.Description)
	assert.Equal(t, rec.PackageIdentifier, byID.PackageIdentifier)
	assert.Equal(t, rec.EnvironmentVariables, byID.EnvironmentVariables)

	bySlug, err := m.GetServerByIDOrSlug(rec.Slug)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, bySlug.ID)
}

func TestManager_GetServer_NotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetServerByIDOrSlug("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Upsert_DuplicateIDInBatch(t *testing.T) {
	m := newTestManager(t)

	a := newRecord("dup", registry.SourceOfficial, nil)
	b := newRecord("dup", registry.SourceOfficial, nil)

	err := m.UpsertServers([]*registry.ServerRecord{a, b})
	assert.Error(t, err)
}

func TestManager_Upsert_CrossSourceMerge(t *testing.T) {
	m := newTestManager(t)

	official := newRecord("foo", registry.SourceOfficial, nil)
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{official}))

	smithery := newRecord("foo", registry.SourceSmithery, nil)
	smithery.UseCount = 1234
	smithery.Verified = true
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{smithery}))

	count, err := m.CountServers()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same id from two sources is one row")

	merged, err := m.GetServerByIDOrSlug("foo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{registry.SourceOfficial, registry.SourceSmithery}, merged.Sources)
	assert.Equal(t, 1234, merged.UseCount)
	assert.True(t, merged.Verified)
}

func TestManager_Upsert_OfficialAfterSmitheryKeepsPopularity(t *testing.T) {
	m := newTestManager(t)

	smithery := newRecord("foo", registry.SourceSmithery, nil)
	smithery.UseCount = 1234
	smithery.Verified = true
	smithery.IconURL = "https://smithery.ai/icons/foo.png"
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{smithery}))

	official := newRecord("foo", registry.SourceOfficial, nil)
	official.Version = "2.0.0"
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{official}))

	merged, err := m.GetServerByIDOrSlug("foo")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", merged.Version)
	assert.Equal(t, 1234, merged.UseCount)
	assert.True(t, merged.Verified)
	assert.Equal(t, "https://smithery.ai/icons/foo.png", merged.IconURL)
	assert.ElementsMatch(t, []string{registry.SourceSmithery, registry.SourceOfficial}, merged.Sources)
}

func TestManager_Upsert_Idempotent(t *testing.T) {
	m := newTestManager(t)

	rec := newRecord("stable", registry.SourceGlama, ts("2024-03-01T00:00:00Z"))
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{rec}))

	before, err := m.GetServerByIDOrSlug("stable")
	require.NoError(t, err)

	again := newRecord("stable", registry.SourceGlama, ts("2024-03-01T00:00:00Z"))
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{again}))

	after, err := m.GetServerByIDOrSlug("stable")
	require.NoError(t, err)

	assert.Equal(t, before.Sources, after.Sources)
	assert.Equal(t, before.Keywords, after.Keywords)
	assert.Equal(t, before.Categories, after.Categories)
	assert.Equal(t, before.UseCount, after.UseCount)

	count, err := m.CountServers()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_ListRecent_Ordering(t *testing.T) {
	m := newTestManager(t)

	a := newRecord("a", registry.SourceOfficial, ts("2024-01-01T00:00:00Z"))
	b := newRecord("b", registry.SourceOfficial, ts("2024-02-01T00:00:00Z"))
	c := newRecord("c", registry.SourceOfficial, nil) // no timestamp sorts last
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{a, b, c}))

	records, err := m.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "a", records[1].ID)
	assert.Equal(t, "c", records[2].ID)

	limited, err := m.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "b", limited[0].ID)
}

func TestManager_SearchFullText_ObservesUpsert(t *testing.T) {
	m := newTestManager(t)

	rec := &registry.ServerRecord{
		ID:          "io.modelcontextprotocol/filesystem",
		Description: "Secure filesystem access",
	}
	registry.Finalize(rec, registry.SourceOfficial, time.Now())
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{rec}))

	results, err := m.SearchFullText([]string{"filesystem"}, index.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].Record.ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestManager_FindServer_NameSuffix(t *testing.T) {
	m := newTestManager(t)

	rec := newRecord("io.example/weather-service", registry.SourceOfficial, nil)
	require.NoError(t, m.UpsertServers([]*registry.ServerRecord{rec}))

	found, err := m.FindServer("weather-service")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = m.FindServer("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Categories(t *testing.T) {
	m := newTestManager(t)

	records := []*registry.ServerRecord{
		{ID: "pg", Description: "Postgres query tool", UpdatedAt: ts("2024-02-01T00:00:00Z")},
		{ID: "lite", Description: "SQLite helper", UpdatedAt: ts("2024-01-01T00:00:00Z")},
		{ID: "img", Description: "Image converter"},
	}
	for _, rec := range records {
		registry.Finalize(rec, registry.SourceOfficial, time.Now())
	}
	require.NoError(t, m.UpsertServers(records))

	counts, err := m.ListCategoryCounts()
	require.NoError(t, err)

	byName := make(map[string]int)
	for _, c := range counts {
		byName[c.Category] = c.Count
	}
	assert.Equal(t, 2, byName["database"])
	assert.Equal(t, 1, byName["media"])
	assert.NotContains(t, byName, "git", "zero-count categories are omitted")

	// Sorted by count descending
	require.NotEmpty(t, counts)
	assert.Equal(t, "database", counts[0].Category)

	servers, err := m.ListByCategory("database", 10)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "pg", servers[0].ID, "ordered by recency")
	assert.Equal(t, "lite", servers[1].ID)
}

func TestManager_SyncLog(t *testing.T) {
	m := newTestManager(t)

	last, err := m.GetLastSync(registry.SourceOfficial)
	require.NoError(t, err)
	assert.Nil(t, last, "no sync log before first sync")

	require.NoError(t, m.UpdateSyncLog(registry.SourceOfficial, 42, registry.SyncStatusOK, ""))

	last, err = m.GetLastSync(registry.SourceOfficial)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 42, last.ServerCount)
	assert.Equal(t, registry.SyncStatusOK, last.Status)
	assert.WithinDuration(t, time.Now(), last.LastSyncedAt, time.Minute)

	require.NoError(t, m.UpdateSyncLog(registry.SourceOfficial, 0, registry.SyncStatusError, "boom"))

	last, err = m.GetLastSync(registry.SourceOfficial)
	require.NoError(t, err)
	assert.Equal(t, registry.SyncStatusError, last.Status)
	assert.Equal(t, "boom", last.Error)

	logs, err := m.ListSyncLogs()
	require.NoError(t, err)
	assert.Len(t, logs, 1, "one row per source")
}
