package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpfinder-go/internal/registry"
	"mcpfinder-go/internal/storage"
)

// GlamaSource pulls the Glama server catalog. Cursor pagination via
// pageInfo.endCursor; no incremental support, every run is a full pull.
type GlamaSource struct {
	baseURL  string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

// NewGlamaSource creates the Glama puller
func NewGlamaSource(baseURL string, pageSize int, logger *zap.Logger) *GlamaSource {
	return &GlamaSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		client:   newHTTPClient(),
		logger:   logger,
	}
}

// Name implements Source
func (s *GlamaSource) Name() string { return registry.SourceGlama }

type glamaListResponse struct {
	Servers  []json.RawMessage `json:"servers"`
	PageInfo struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pageInfo"`
}

type glamaServer struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Repository  *struct {
		URL string `json:"url"`
	} `json:"repository"`
	Attributes []string   `json:"attributes"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

// Sync implements Source
func (s *GlamaSource) Sync(ctx context.Context, store *storage.Manager) (int, error) {
	total := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		q := url.Values{}
		q.Set("first", strconv.Itoa(s.pageSize))
		if cursor != "" {
			q.Set("after", cursor)
		}
		pageURL := s.baseURL + "/v1/servers?" + q.Encode()

		var page glamaListResponse
		if err := getJSON(ctx, s.client, pageURL, &page); err != nil {
			return total, fmt.Errorf("glama: %w", err)
		}

		if len(page.Servers) == 0 {
			break
		}

		records := make([]*registry.ServerRecord, 0, len(page.Servers))
		now := time.Now()
		for _, raw := range page.Servers {
			var srv glamaServer
			if err := json.Unmarshal(raw, &srv); err != nil || srv.Name == "" {
				s.logger.Debug("Skipping undecodable glama entry", zap.Error(err))
				continue
			}
			records = append(records, s.normalize(&srv, raw, now))
		}

		if err := store.UpsertServers(records); err != nil {
			return total, fmt.Errorf("glama: %w", err)
		}
		total += len(records)

		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == "" {
			break
		}
		cursor = page.PageInfo.EndCursor
	}

	return total, nil
}

// normalize maps one Glama entry onto the unified record
func (s *GlamaSource) normalize(srv *glamaServer, raw json.RawMessage, now time.Time) *registry.ServerRecord {
	id := srv.Name
	if srv.Namespace != "" {
		id = srv.Namespace + "/" + srv.Name
	}

	rec := &registry.ServerRecord{
		ID:          id,
		Name:        id,
		Description: srv.Description,
		RemoteURL:   srv.URL,
		UpdatedAt:   srv.UpdatedAt,
		RawData:     raw,
	}

	if srv.Repository != nil {
		rec.RepositoryURL = srv.Repository.URL
		if strings.Contains(srv.Repository.URL, "github.com") {
			rec.RepositorySource = "github"
		} else if strings.Contains(srv.Repository.URL, "gitlab.com") {
			rec.RepositorySource = "gitlab"
		}
	}

	registry.Finalize(rec, registry.SourceGlama, now)
	return rec
}
