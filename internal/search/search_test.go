package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mcpfinder-go/internal/registry"
	"mcpfinder-go/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()

	store, err := storage.NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewService(store, zap.NewNop()), store
}

func seedServers(t *testing.T, store *storage.Manager) {
	t.Helper()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	records := []*registry.ServerRecord{
		{
			ID:                "io.modelcontextprotocol/filesystem",
			Description:       "Secure filesystem access",
			RegistryType:      registry.RegistryTypeNPM,
			PackageIdentifier: "@modelcontextprotocol/server-filesystem",
			TransportType:     registry.TransportStdio,
			UpdatedAt:         &newer,
		},
		{
			ID:            "acme/postgres",
			Description:   "Query Postgres databases",
			RegistryType:  registry.RegistryTypePyPI,
			TransportType: registry.TransportStdio,
			UpdatedAt:     &older,
		},
		{
			ID:            "acme/browser",
			Description:   "Remote browser automation",
			RemoteURL:     "https://example.com/mcp",
			TransportType: registry.TransportStreamableHTTP,
		},
	}
	for _, rec := range records {
		registry.Finalize(rec, registry.SourceOfficial, time.Now())
	}
	require.NoError(t, store.UpsertServers(records))
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"plain words", "postgres database", []string{"postgres", "database"}},
		{"lowercased", "PostGres", []string{"postgres"}},
		{"punctuation stripped", "file!system?", []string{"filesystem"}},
		{"hyphens kept", "dev-tools", []string{"dev-tools"}},
		{"extra whitespace", "  a   b  ", []string{"a", "b"}},
		{"punctuation only", "!?#$%", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeQuery(tt.query))
		})
	}
}

func TestSearch_LimitValidation(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	_, err := svc.Search("postgres", -1, Filters{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Search("postgres", MaxLimit+1, Filters{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Zero means default
	results, err := svc.Search("postgres", 0, Filters{})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestSearch_RanksStartAtOne(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	results, err := svc.Search("acme", 10, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

func TestSearch_EmptyQueryFallsBackToRecent(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	for _, query := range []string{"", "   ", "!?#"} {
		results, err := svc.Search(query, 2, Filters{})
		require.NoError(t, err)
		require.Len(t, results, 2, "query %q", query)
		// Most recently updated first, null timestamps last
		assert.Equal(t, "io.modelcontextprotocol/filesystem", results[0].Name)
		assert.Equal(t, "acme/postgres", results[1].Name)
	}
}

func TestSearch_Filters(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	results, err := svc.Search("acme", 10, Filters{RegistryType: registry.RegistryTypePyPI})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme/postgres", results[0].Name)

	results, err = svc.Search("acme", 10, Filters{TransportType: registry.TransportStreamableHTTP})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme/browser", results[0].Name)
	assert.True(t, results[0].HasRemote)

	// "any" is accepted and means unfiltered
	results, err = svc.Search("acme", 10, Filters{TransportType: FilterAny, RegistryType: FilterAny, RegistrySource: FilterAny})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_InvalidFilterValues(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	_, err := svc.Search("acme", 10, Filters{TransportType: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Search("acme", 10, Filters{RegistryType: "cargo"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Search("acme", 10, Filters{RegistrySource: "mystery"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearch_Deterministic(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	first, err := svc.Search("acme", 10, Filters{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := svc.Search("acme", 10, Filters{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGetServerDetails_ResolutionOrder(t *testing.T) {
	svc, store := newTestService(t)
	seedServers(t, store)

	byID, err := svc.GetServerDetails("io.modelcontextprotocol/filesystem")
	require.NoError(t, err)
	assert.Equal(t, "io.modelcontextprotocol/filesystem", byID.ID)

	bySlug, err := svc.GetServerDetails("io-modelcontextprotocol-filesystem")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, bySlug.ID)

	bySuffix, err := svc.GetServerDetails("filesystem")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, bySuffix.ID)

	_, err = svc.GetServerDetails("does-not-exist")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.GetServerDetails("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
