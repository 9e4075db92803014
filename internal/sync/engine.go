// Package sync keeps the local store current with the upstream MCP
// registries. Sources run in parallel and fail in isolation; inside a
// source, pages are pulled sequentially.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpfinder-go/internal/storage"
)

// httpTimeout bounds each upstream request
const httpTimeout = 30 * time.Second

// Source is one upstream registry puller. Sync returns the number of
// upserted records; on error the count covers the pages committed
// before the failure.
type Source interface {
	Name() string
	Sync(ctx context.Context, store *storage.Manager) (int, error)
}

// SourceResult is the outcome of one source within a SyncAll run
type SourceResult struct {
	Source string
	Count  int
	Err    error
}

// Engine coordinates the per-source pullers
type Engine struct {
	store   *storage.Manager
	sources []Source
	logger  *zap.Logger
}

// NewEngine creates a sync engine over the given sources
func NewEngine(store *storage.Manager, sources []Source, logger *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		sources: sources,
		logger:  logger,
	}
}

// SyncAll runs every source in parallel with all-settled semantics: a
// failing source records its error in the sync log and does not abort
// the others. Partial syncs are acceptable.
func (e *Engine) SyncAll(ctx context.Context) []SourceResult {
	results := make([]SourceResult, len(e.sources))

	var wg sync.WaitGroup
	for i, src := range e.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			start := time.Now()
			count, err := src.Sync(ctx, e.store)
			results[i] = SourceResult{Source: src.Name(), Count: count, Err: err}

			if err != nil {
				e.logger.Warn("Source sync failed",
					zap.String("source", src.Name()),
					zap.Int("count", count),
					zap.Error(err))
				if logErr := e.store.UpdateSyncLog(src.Name(), count, "error", err.Error()); logErr != nil {
					e.logger.Error("Failed to record sync error", zap.String("source", src.Name()), zap.Error(logErr))
				}
				return
			}

			e.logger.Info("Source sync complete",
				zap.String("source", src.Name()),
				zap.Int("count", count),
				zap.Duration("elapsed", time.Since(start)))
			if logErr := e.store.UpdateSyncLog(src.Name(), count, "ok", ""); logErr != nil {
				e.logger.Error("Failed to record sync result", zap.String("source", src.Name()), zap.Error(logErr))
			}
		}(i, src)
	}
	wg.Wait()

	return results
}

// newHTTPClient returns the client used by all pullers
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: httpTimeout,
	}
}

// getJSON fetches a URL and decodes the JSON response into v.
// No retries: upstreams are stable and the gate re-triggers later.
func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream returned %d: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON from upstream: %w", err)
	}
	return nil
}
