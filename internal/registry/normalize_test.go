package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"qualified name", "io.modelcontextprotocol/filesystem", "io-modelcontextprotocol-filesystem"},
		{"scoped npm style", "@org/My.Package", "org-my-package"},
		{"already a slug", "github-server", "github-server"},
		{"runs collapse", "a//--..b", "a-b"},
		{"edges trimmed", "/weather/", "weather"},
		{"uppercase", "FooBar", "foobar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.id))
		})
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	ids := []string{
		"io.modelcontextprotocol/filesystem",
		"@modelcontextprotocol/server-github",
		"simple",
		"UPPER/lower.mixed",
	}
	for _, id := range ids {
		once := Slugify(id)
		assert.Equal(t, once, Slugify(once), "slug of %q must be stable", id)
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name        string
		serverName  string
		description string
		expected    []string
	}{
		{
			name:        "stop words and short tokens dropped",
			serverName:  "filesystem",
			description: "An MCP server for secure file access",
			expected:    []string{"filesystem", "secure", "file", "access"},
		},
		{
			name:        "ecosystem boilerplate dropped",
			serverName:  "weather",
			description: "Model Context Protocol tool",
			expected:    []string{"weather"},
		},
		{
			name:        "split on dots slashes and dashes",
			serverName:  "io.example/postgres-helper",
			description: "",
			expected:    []string{"example", "postgres", "helper"},
		},
		{
			name:        "deduplicated in first-seen order",
			serverName:  "search search engine",
			description: "engine for search",
			expected:    []string{"search", "engine"},
		},
		{
			name:        "punctuation only",
			serverName:  "!!!",
			description: "...",
			expected:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractKeywords(tt.serverName, tt.description))
		})
	}
}

func TestFinalize(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := &ServerRecord{
		ID:          "io.modelcontextprotocol/filesystem",
		Description: "Secure filesystem access",
		RemoteURL:   "https://example.com/mcp",
	}
	Finalize(rec, SourceOfficial, now)

	assert.Equal(t, "io-modelcontextprotocol-filesystem", rec.Slug)
	assert.Equal(t, rec.ID, rec.Name, "name defaults to id")
	assert.Equal(t, []string{SourceOfficial}, rec.Sources)
	assert.Equal(t, now, rec.LastSyncedAt)
	assert.Equal(t, StatusActive, rec.Status)
	assert.True(t, rec.HasRemote)
	assert.Contains(t, rec.Keywords, "filesystem")
	assert.Contains(t, rec.Categories, "filesystem")
}

func TestMergeFrom_SourcesMonotonic(t *testing.T) {
	now := time.Now()

	existing := &ServerRecord{
		ID:          "foo",
		Description: "old description",
		Sources:     []string{SourceOfficial},
	}

	incoming := &ServerRecord{
		ID:          "foo",
		Description: "new description",
		UseCount:    1234,
		Verified:    true,
		Sources:     []string{SourceSmithery},
	}
	Finalize(incoming, SourceSmithery, now)

	existing.MergeFrom(incoming)

	require.Equal(t, "foo", existing.ID)
	assert.Equal(t, "new description", existing.Description, "descriptive fields are last write wins")
	assert.Equal(t, 1234, existing.UseCount)
	assert.True(t, existing.Verified)
	assert.ElementsMatch(t, []string{SourceOfficial, SourceSmithery}, existing.Sources)
}

func TestMergeFrom_PopularitySurvivesOfficialSync(t *testing.T) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	existing := &ServerRecord{
		ID:          "foo",
		Description: "from smithery",
		UseCount:    1234,
		Verified:    true,
		IconURL:     "https://smithery.ai/icons/foo.png",
		PublishedAt: &published,
		Sources:     []string{SourceSmithery},
	}

	updated := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	incoming := &ServerRecord{
		ID:          "foo",
		Description: "from the official registry",
		Version:     "2.0.0",
		UpdatedAt:   &updated,
		Sources:     []string{SourceOfficial},
	}

	existing.MergeFrom(incoming)

	assert.Equal(t, "from the official registry", existing.Description)
	assert.Equal(t, "2.0.0", existing.Version)
	assert.Equal(t, 1234, existing.UseCount, "popularity survives a source that lacks it")
	assert.True(t, existing.Verified)
	assert.Equal(t, "https://smithery.ai/icons/foo.png", existing.IconURL)
	assert.Equal(t, &published, existing.PublishedAt)
	assert.Equal(t, &updated, existing.UpdatedAt)
	assert.ElementsMatch(t, []string{SourceSmithery, SourceOfficial}, existing.Sources)
}

func TestMergeFrom_CommitOrderIndependent(t *testing.T) {
	official := func() *ServerRecord {
		return &ServerRecord{ID: "foo", Version: "2.0.0", Sources: []string{SourceOfficial}}
	}
	smithery := func() *ServerRecord {
		return &ServerRecord{ID: "foo", UseCount: 1234, Verified: true, Sources: []string{SourceSmithery}}
	}

	officialLast := smithery()
	officialLast.MergeFrom(official())

	smitheryLast := official()
	smitheryLast.MergeFrom(smithery())

	assert.Equal(t, officialLast.UseCount, smitheryLast.UseCount)
	assert.Equal(t, officialLast.Verified, smitheryLast.Verified)
	assert.ElementsMatch(t, officialLast.Sources, smitheryLast.Sources)
}

func TestMergeFrom_SameSourceNoDuplicate(t *testing.T) {
	existing := &ServerRecord{ID: "foo", Sources: []string{SourceGlama}}
	incoming := &ServerRecord{ID: "foo", Sources: []string{SourceGlama}}

	existing.MergeFrom(incoming)
	assert.Equal(t, []string{SourceGlama}, existing.Sources)
}
