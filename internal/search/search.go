// Package search implements ranked keyword search over the server
// store with a recent-list fallback for empty queries.
package search

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mcpfinder-go/internal/index"
	"mcpfinder-go/internal/registry"
	"mcpfinder-go/internal/storage"
)

// Search limits
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 10
)

// FilterAny accepts every value for an optional filter
const FilterAny = "any"

// ErrInvalidInput is returned for out-of-range limits or unknown enum values
var ErrInvalidInput = errors.New("invalid input")

// Filters are optional equality predicates ANDed into the search
type Filters struct {
	TransportType  string `json:"transport_type,omitempty"`
	RegistryType   string `json:"registry_type,omitempty"`
	RegistrySource string `json:"registry_source,omitempty"`
}

// Result is one ranked search result
type Result struct {
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Version           string   `json:"version,omitempty"`
	RegistryType      string   `json:"registry_type,omitempty"`
	PackageIdentifier string   `json:"package_identifier,omitempty"`
	TransportType     string   `json:"transport_type,omitempty"`
	RepositoryURL     string   `json:"repository_url,omitempty"`
	HasRemote         bool     `json:"has_remote"`
	Rank              int      `json:"rank"`
	Sources           []string `json:"sources"`
	UseCount          int      `json:"use_count"`
	Verified          bool     `json:"verified"`
	IconURL           string   `json:"icon_url,omitempty"`
}

var (
	queryStrip = regexp.MustCompile(`[^\w\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Service executes searches against the store
type Service struct {
	store  *storage.Manager
	logger *zap.Logger
}

// NewService creates a search service
func NewService(store *storage.Manager, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// SanitizeQuery lowercases the query, strips everything but word
// characters, spaces and hyphens, and splits it into tokens. An empty
// result means the caller should fall back to the recent list.
func SanitizeQuery(query string) []string {
	cleaned := queryStrip.ReplaceAllString(strings.ToLower(query), "")

	var tokens []string
	for _, tok := range whitespace.Split(cleaned, -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// normalizeFilter maps "any" and "" to the unfiltered value and
// validates concrete values against the allowed set
func normalizeFilter(value, name string, allowed []string) (string, error) {
	if value == "" || value == FilterAny {
		return "", nil
	}
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: unknown %s %q", ErrInvalidInput, name, value)
}

// validateFilters converts the public filters into index predicates
func validateFilters(f Filters) (index.Filters, error) {
	var out index.Filters
	var err error

	out.TransportType, err = normalizeFilter(f.TransportType, "transport type",
		[]string{registry.TransportStdio, registry.TransportStreamableHTTP, registry.TransportSSE})
	if err != nil {
		return out, err
	}

	out.RegistryType, err = normalizeFilter(f.RegistryType, "registry type",
		[]string{registry.RegistryTypeNPM, registry.RegistryTypePyPI, registry.RegistryTypeOCI, registry.RegistryTypeNuGet, registry.RegistryTypeMCPB})
	if err != nil {
		return out, err
	}

	out.Source, err = normalizeFilter(f.RegistrySource, "registry source", registry.KnownSources)
	if err != nil {
		return out, err
	}

	return out, nil
}

// Search runs a ranked keyword search. An empty or punctuation-only
// query falls back to recently updated servers. Results are ordered
// deterministically: score DESC, updatedAt DESC NULLS LAST, id ASC.
func (s *Service) Search(query string, limit int, filters Filters) ([]Result, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit must be between %d and %d, got %d", ErrInvalidInput, MinLimit, MaxLimit, limit)
	}

	idxFilters, err := validateFilters(filters)
	if err != nil {
		return nil, err
	}

	tokens := SanitizeQuery(query)
	if len(tokens) == 0 {
		records, err := s.store.ListRecent(limit)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		return toResults(records), nil
	}

	scored, err := s.store.SearchFullText(tokens, idxFilters, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ar, br := a.Record, b.Record
		switch {
		case ar.UpdatedAt != nil && br.UpdatedAt == nil:
			return true
		case ar.UpdatedAt == nil && br.UpdatedAt != nil:
			return false
		case ar.UpdatedAt != nil && br.UpdatedAt != nil && !ar.UpdatedAt.Equal(*br.UpdatedAt):
			return ar.UpdatedAt.After(*br.UpdatedAt)
		default:
			return ar.ID < br.ID
		}
	})

	records := make([]*registry.ServerRecord, 0, len(scored))
	for _, sr := range scored {
		records = append(records, sr.Record)
	}
	return toResults(records), nil
}

// toResults converts records into ranked results, ranks starting at 1
func toResults(records []*registry.ServerRecord) []Result {
	results := make([]Result, 0, len(records))
	for i, rec := range records {
		results = append(results, Result{
			Name:              rec.Name,
			Description:       rec.Description,
			Version:           rec.Version,
			RegistryType:      rec.RegistryType,
			PackageIdentifier: rec.PackageIdentifier,
			TransportType:     rec.TransportType,
			RepositoryURL:     rec.RepositoryURL,
			HasRemote:         rec.HasRemote,
			Rank:              i + 1,
			Sources:           rec.Sources,
			UseCount:          rec.UseCount,
			Verified:          rec.Verified,
			IconURL:           rec.IconURL,
		})
	}
	return results
}

// GetServerDetails resolves a key by id, then slug, then suffix match
// on name. Returns storage.ErrNotFound when nothing matches.
func (s *Service) GetServerDetails(key string) (*registry.ServerRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	return s.store.FindServer(key)
}
