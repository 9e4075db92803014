package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpfinder-go/internal/registry"
	"mcpfinder-go/internal/storage"
)

// OfficialSource pulls the official MCP registry
// (registry.modelcontextprotocol.io). Supports incremental pulls via
// the updated_since parameter and cursor pagination.
type OfficialSource struct {
	baseURL  string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

// NewOfficialSource creates the official registry puller
func NewOfficialSource(baseURL string, pageSize int, logger *zap.Logger) *OfficialSource {
	return &OfficialSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		client:   newHTTPClient(),
		logger:   logger,
	}
}

// Name implements Source
func (s *OfficialSource) Name() string { return registry.SourceOfficial }

// --- Official registry API response types ---

type officialListResponse struct {
	Servers  []json.RawMessage `json:"servers"`
	Metadata struct {
		NextCursor string `json:"nextCursor"`
	} `json:"metadata"`
}

type officialEntry struct {
	Server officialServer            `json:"server"`
	Meta   map[string]officialStatus `json:"_meta"`
}

type officialServer struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     string            `json:"version"`
	Repository  *officialRepo     `json:"repository"`
	Packages    []officialPackage `json:"packages"`
	Remotes     []officialRemote  `json:"remotes"`
}

type officialRepo struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type officialPackage struct {
	RegistryType         string            `json:"registryType"`
	Identifier           string            `json:"identifier"`
	Transport            officialTransport `json:"transport"`
	EnvironmentVariables []officialEnvVar  `json:"environmentVariables"`
}

type officialTransport struct {
	Type string `json:"type"`
}

type officialEnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Format      string `json:"format"`
	IsSecret    bool   `json:"isSecret"`
}

type officialRemote struct {
	URL string `json:"url"`
}

type officialStatus struct {
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"publishedAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// Sync implements Source: cursor pagination, incremental when a prior
// sync timestamp exists, one store transaction per page.
func (s *OfficialSource) Sync(ctx context.Context, store *storage.Manager) (int, error) {
	// Incremental only after a fully successful pull. A failed or
	// partial run leaves an error row in the sync log, and pulling
	// incrementally from its timestamp would never backfill the tail.
	var updatedSince string
	if last, err := store.GetLastSync(s.Name()); err == nil && last != nil &&
		last.Status == registry.SyncStatusOK && !last.LastSyncedAt.IsZero() {
		updatedSince = last.LastSyncedAt.Format(time.RFC3339)
	}

	total := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		pageURL := s.pageURL(cursor, updatedSince)

		var page officialListResponse
		if err := getJSON(ctx, s.client, pageURL, &page); err != nil {
			return total, fmt.Errorf("official registry: %w", err)
		}

		if len(page.Servers) == 0 {
			break
		}

		records := make([]*registry.ServerRecord, 0, len(page.Servers))
		now := time.Now()
		for _, raw := range page.Servers {
			var entry officialEntry
			if err := json.Unmarshal(raw, &entry); err != nil || entry.Server.Name == "" {
				s.logger.Debug("Skipping undecodable registry entry", zap.Error(err))
				continue
			}
			records = append(records, s.normalize(&entry, raw, now))
		}

		if err := store.UpsertServers(records); err != nil {
			return total, fmt.Errorf("official registry: %w", err)
		}
		total += len(records)

		if page.Metadata.NextCursor == "" {
			break
		}
		cursor = page.Metadata.NextCursor
	}

	return total, nil
}

// pageURL builds the list URL for one page
func (s *OfficialSource) pageURL(cursor, updatedSince string) string {
	q := url.Values{}
	q.Set("version", "latest")
	q.Set("limit", strconv.Itoa(s.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if updatedSince != "" {
		q.Set("updated_since", updatedSince)
	}
	return s.baseURL + "/v0.1/servers?" + q.Encode()
}

// normalize maps one registry entry onto the unified record
func (s *OfficialSource) normalize(entry *officialEntry, raw json.RawMessage, now time.Time) *registry.ServerRecord {
	srv := &entry.Server

	rec := &registry.ServerRecord{
		ID:          srv.Name,
		Name:        srv.Name,
		Description: srv.Description,
		Version:     srv.Version,
		RawData:     raw,
	}

	if srv.Repository != nil {
		rec.RepositoryURL = srv.Repository.URL
		rec.RepositorySource = srv.Repository.Source
	}

	if len(srv.Packages) > 0 {
		pkg := &srv.Packages[0]
		rec.RegistryType = pkg.RegistryType
		rec.PackageIdentifier = pkg.Identifier
		rec.TransportType = pkg.Transport.Type
		for _, ev := range pkg.EnvironmentVariables {
			rec.EnvironmentVariables = append(rec.EnvironmentVariables, registry.EnvVar{
				Name:        ev.Name,
				Description: ev.Description,
				Format:      ev.Format,
				IsSecret:    ev.IsSecret,
			})
		}
	}

	if len(srv.Remotes) > 0 {
		rec.RemoteURL = srv.Remotes[0].URL
	}

	// Lifecycle metadata lives under the publisher-scoped _meta key.
	// Prefer the registry's own key; otherwise pick the first matching
	// key in sorted order so the choice is stable across runs.
	if meta, ok := s.lifecycleMeta(entry.Meta); ok {
		rec.Status = meta.Status
		rec.PublishedAt = meta.PublishedAt
		rec.UpdatedAt = meta.UpdatedAt
	}

	registry.Finalize(rec, registry.SourceOfficial, now)
	return rec
}

// officialMetaKey is the registry's own _meta key
const officialMetaKey = "io.modelcontextprotocol.registry/official"

// lifecycleMeta selects the publisher-scoped lifecycle entry
func (s *OfficialSource) lifecycleMeta(meta map[string]officialStatus) (officialStatus, bool) {
	if m, ok := meta[officialMetaKey]; ok {
		return m, true
	}

	keys := make([]string, 0, len(meta))
	for key := range meta {
		if strings.Contains(key, "modelcontextprotocol") {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return officialStatus{}, false
	}
	sort.Strings(keys)
	return meta[keys[0]], true
}
