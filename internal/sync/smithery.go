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

// SmitherySource pulls the Smithery catalog. Page-number pagination via
// pagination.currentPage/totalPages; carries popularity metadata
// (useCount, verified, iconUrl) the other sources lack.
type SmitherySource struct {
	baseURL  string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

// NewSmitherySource creates the Smithery puller
func NewSmitherySource(baseURL string, pageSize int, logger *zap.Logger) *SmitherySource {
	return &SmitherySource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		client:   newHTTPClient(),
		logger:   logger,
	}
}

// Name implements Source
func (s *SmitherySource) Name() string { return registry.SourceSmithery }

type smitheryListResponse struct {
	Servers    []json.RawMessage `json:"servers"`
	Pagination struct {
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
	} `json:"pagination"`
}

type smitheryServer struct {
	QualifiedName string     `json:"qualifiedName"`
	DisplayName   string     `json:"displayName"`
	Description   string     `json:"description"`
	Homepage      string     `json:"homepage"`
	Remote        bool       `json:"remote"`
	DeploymentURL string     `json:"deploymentUrl"`
	UseCount      int        `json:"useCount"`
	Verified      bool       `json:"verified"`
	IconURL       string     `json:"iconUrl"`
	CreatedAt     *time.Time `json:"createdAt"`
}

// Sync implements Source
func (s *SmitherySource) Sync(ctx context.Context, store *storage.Manager) (int, error) {
	total := 0
	for pageNum := 1; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		q := url.Values{}
		q.Set("page", strconv.Itoa(pageNum))
		q.Set("pageSize", strconv.Itoa(s.pageSize))
		pageURL := s.baseURL + "/servers?" + q.Encode()

		var page smitheryListResponse
		if err := getJSON(ctx, s.client, pageURL, &page); err != nil {
			return total, fmt.Errorf("smithery: %w", err)
		}

		if len(page.Servers) == 0 {
			break
		}

		records := make([]*registry.ServerRecord, 0, len(page.Servers))
		now := time.Now()
		for _, raw := range page.Servers {
			var srv smitheryServer
			if err := json.Unmarshal(raw, &srv); err != nil || srv.QualifiedName == "" {
				s.logger.Debug("Skipping undecodable smithery entry", zap.Error(err))
				continue
			}
			records = append(records, s.normalize(&srv, raw, now))
		}

		if err := store.UpsertServers(records); err != nil {
			return total, fmt.Errorf("smithery: %w", err)
		}
		total += len(records)

		if page.Pagination.TotalPages == 0 || page.Pagination.CurrentPage >= page.Pagination.TotalPages {
			break
		}
	}

	return total, nil
}

// normalize maps one Smithery entry onto the unified record
func (s *SmitherySource) normalize(srv *smitheryServer, raw json.RawMessage, now time.Time) *registry.ServerRecord {
	rec := &registry.ServerRecord{
		ID:          srv.QualifiedName,
		Name:        srv.QualifiedName,
		Description: srv.Description,
		UseCount:    srv.UseCount,
		Verified:    srv.Verified,
		IconURL:     srv.IconURL,
		PublishedAt: srv.CreatedAt,
		RawData:     raw,
	}

	if srv.Remote && srv.DeploymentURL != "" {
		rec.RemoteURL = srv.DeploymentURL
		rec.TransportType = registry.TransportStreamableHTTP
	}

	if srv.Homepage != "" {
		rec.RepositoryURL = srv.Homepage
		if strings.Contains(srv.Homepage, "github.com") {
			rec.RepositorySource = "github"
		}
	}

	registry.Finalize(rec, registry.SourceSmithery, now)
	return rec
}
