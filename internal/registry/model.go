package registry

import (
	"encoding/json"
	"time"
)

// Source names for server provenance
const (
	SourceOfficial = "official"
	SourceGlama    = "glama"
	SourceSmithery = "smithery"
)

// KnownSources lists every upstream registry this product syncs from
var KnownSources = []string{SourceOfficial, SourceGlama, SourceSmithery}

// Registry types for server packages
const (
	RegistryTypeNPM   = "npm"
	RegistryTypePyPI  = "pypi"
	RegistryTypeOCI   = "oci"
	RegistryTypeNuGet = "nuget"
	RegistryTypeMCPB  = "mcpb"
)

// Transport types for server connections
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// StatusActive is the default lifecycle status for a server record
const StatusActive = "active"

// EnvVar describes an environment variable required by a server
type EnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format,omitempty"`
	IsSecret    bool   `json:"is_secret,omitempty"`
}

// ServerRecord is the unified record for one MCP server version,
// merged across upstream registries.
type ServerRecord struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`

	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`

	RegistryType      string `json:"registry_type,omitempty"` // npm, pypi, oci, nuget, mcpb
	PackageIdentifier string `json:"package_identifier,omitempty"`
	TransportType     string `json:"transport_type,omitempty"` // stdio, streamable-http, sse

	HasRemote bool   `json:"has_remote"`
	RemoteURL string `json:"remote_url,omitempty"`

	RepositoryURL    string `json:"repository_url,omitempty"`
	RepositorySource string `json:"repository_source,omitempty"` // github, gitlab

	Sources      []string        `json:"sources"`
	RawData      json.RawMessage `json:"raw_data,omitempty"`
	LastSyncedAt time.Time       `json:"last_synced_at"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Status      string     `json:"status,omitempty"`

	UseCount int    `json:"use_count"`
	Verified bool   `json:"verified"`
	IconURL  string `json:"icon_url,omitempty"`

	EnvironmentVariables []EnvVar `json:"environment_variables,omitempty"`
}

// SyncLogRecord tracks the last sync outcome for one upstream source
type SyncLogRecord struct {
	Source       string    `json:"source"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	ServerCount  int       `json:"server_count"`
	Status       string    `json:"status"` // ok, error
	Error        string    `json:"error,omitempty"`
}

// Sync status constants
const (
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// HasSource reports whether the record is attributed to the given source
func (r *ServerRecord) HasSource(source string) bool {
	for _, s := range r.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// MergeFrom overwrites descriptive and package fields with the incoming
// record (last write wins) while keeping the sources union monotonic.
// Popularity and lifecycle metadata only come from some sources; known
// values survive a sync from a source that does not carry them, so the
// merged row does not depend on which puller committed last.
func (r *ServerRecord) MergeFrom(incoming *ServerRecord) {
	prev := *r
	*r = *incoming

	sources := prev.Sources
	for _, s := range incoming.Sources {
		found := false
		for _, existing := range sources {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			sources = append(sources, s)
		}
	}
	r.Sources = sources

	if incoming.UseCount == 0 {
		r.UseCount = prev.UseCount
	}
	if !incoming.Verified {
		r.Verified = prev.Verified
	}
	if incoming.IconURL == "" {
		r.IconURL = prev.IconURL
	}
	if incoming.PublishedAt == nil {
		r.PublishedAt = prev.PublishedAt
	}
	if incoming.UpdatedAt == nil {
		r.UpdatedAt = prev.UpdatedAt
	}
}

// MarshalBinary implements encoding.BinaryMarshaler
func (r *ServerRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (r *ServerRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, r)
}

// MarshalBinary implements encoding.BinaryMarshaler
func (l *SyncLogRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(l)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (l *SyncLogRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, l)
}
