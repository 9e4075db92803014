package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpfinder-go/internal/registry"
	"mcpfinder-go/internal/storage"
)

// Gate ensures the store is populated and fresh before any externally
// triggered operation. A single mutex serializes concurrent callers so
// at most one sync runs at a time; waiters return as soon as the
// in-flight sync completes, with whatever data exists.
type Gate struct {
	mu     sync.Mutex
	store  *storage.Manager
	engine *Engine
	maxAge time.Duration
	logger *zap.Logger
}

// NewGate creates a sync gate with the given staleness window
func NewGate(store *storage.Manager, engine *Engine, maxAge time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		store:  store,
		engine: engine,
		maxAge: maxAge,
		logger: logger,
	}
}

// EnsureFresh triggers a sync when the store is empty or the official
// registry's last sync is older than the staleness window. Sync
// failures are not surfaced: readers proceed with existing data.
func (g *Gate) EnsureFresh(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check under the lock: a waiter arriving behind an in-flight
	// sync usually finds the store fresh and returns immediately
	if !g.needsSync() {
		return
	}

	g.logger.Info("Store empty or stale, syncing registries")
	g.engine.SyncAll(ctx)
}

// needsSync reports whether the store is empty or stale
func (g *Gate) needsSync() bool {
	count, err := g.store.CountServers()
	if err != nil {
		g.logger.Warn("Failed to count servers", zap.Error(err))
		return false
	}
	if count == 0 {
		return true
	}

	last, err := g.store.GetLastSync(registry.SourceOfficial)
	if err != nil {
		g.logger.Warn("Failed to read sync log", zap.Error(err))
		return false
	}
	if last == nil {
		return true
	}

	return time.Since(last.LastSyncedAt) > g.maxAge
}
