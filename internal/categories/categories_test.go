package categories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		serverName  string
		description string
		expected    []string
	}{
		{
			name:        "postgres is database",
			serverName:  "postgres-tool",
			description: "Postgres query tool",
			expected:    []string{"database"},
		},
		{
			name:        "sqlite is database",
			serverName:  "sqlite",
			description: "SQLite helper",
			expected:    []string{"database"},
		},
		{
			name:        "image converter matches data and media",
			serverName:  "converter",
			description: "Image converter",
			expected:    []string{"media"},
		},
		{
			name:        "multiple categories",
			serverName:  "github-deploy",
			description: "Deploy via GitHub and AWS",
			expected:    []string{"git", "cloud"},
		},
		{
			name:        "no match falls back to other",
			serverName:  "zzz",
			description: "does nothing in particular",
			expected:    []string{Other},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.serverName, tt.description))
		})
	}
}

func TestCategorize_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Categorize("POSTGRES", "QUERY TOOL"), Categorize("postgres", "query tool"))
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown("database"))
	assert.True(t, IsKnown("dev-tools"))
	assert.True(t, IsKnown(Other))
	assert.False(t, IsKnown("bogus"))
}

func TestNames_MatchesTaxonomy(t *testing.T) {
	names := Names()
	assert.Len(t, names, len(Taxonomy))
	assert.Equal(t, "filesystem", names[0])
}
