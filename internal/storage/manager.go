package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpfinder-go/internal/categories"
	"mcpfinder-go/internal/index"
	"mcpfinder-go/internal/registry"
)

// ScoredRecord pairs a server record with its full-text rank
type ScoredRecord struct {
	Record *registry.ServerRecord
	Score  float64
}

// CategoryCount is one taxonomy tag with its matching server count
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// nowFunc is swappable in tests
var nowFunc = time.Now

// Manager provides a unified interface over the bolt store and the
// full-text index, keeping both consistent under one lock.
type Manager struct {
	db    *BoltDB
	index *index.BleveIndex

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewManager opens the store and index under dataDir
func NewManager(dataDir string, logger *zap.Logger) (*Manager, error) {
	db, err := NewBoltDB(dataDir, logger.Sugar())
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	bleveIndex, err := index.NewBleveIndex(dataDir, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}

	return &Manager{
		db:     db,
		index:  bleveIndex,
		logger: logger,
	}, nil
}

// Close closes the store and the index
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []string
	if m.index != nil {
		if err := m.index.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("index: %v", err))
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("db: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close storage: %s", strings.Join(errs, "; "))
	}
	return nil
}

// UpsertServers writes a batch of records transactionally and updates
// the full-text index before releasing the write lock, so a search
// issued after UpsertServers returns observes the new rows.
func (m *Manager) UpsertServers(records []*registry.ServerRecord) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record with empty id in batch")
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("duplicate id %q within one batch", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	merged, err := m.db.UpsertServers(records)
	if err != nil {
		return fmt.Errorf("failed to upsert servers: %w", err)
	}

	if err := m.index.BatchUpsert(merged); err != nil {
		return fmt.Errorf("failed to index servers: %w", err)
	}

	m.logger.Debug("Upserted server batch", zap.Int("count", len(merged)))
	return nil
}

// GetServerByIDOrSlug looks a record up by id first, then by slug.
// Returns ErrNotFound when neither matches.
func (m *Manager) GetServerByIDOrSlug(key string) (*registry.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, err := m.db.GetServer(key)
	if err == nil {
		return record, nil
	}

	return m.db.GetServerBySlug(key)
}

// FindServer resolves a key by id, then slug, then suffix match on name
func (m *Manager) FindServer(key string) (*registry.ServerRecord, error) {
	record, err := m.GetServerByIDOrSlug(key)
	if err == nil {
		return record, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var match *registry.ServerRecord
	err = m.db.ForEachServer(func(rec *registry.ServerRecord) error {
		if match == nil && strings.HasSuffix(rec.Name, key) {
			match = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

// ListRecent returns up to limit records ordered by updatedAt DESC
// (records without a timestamp last), id ASC as tie-breaker.
func (m *Manager) ListRecent(limit int) ([]*registry.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*registry.ServerRecord
	err := m.db.ForEachServer(func(rec *registry.ServerRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortByRecency(records)

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// SortByRecency orders records by updatedAt DESC NULLS LAST, id ASC
func SortByRecency(records []*registry.ServerRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.UpdatedAt != nil && b.UpdatedAt == nil:
			return true
		case a.UpdatedAt == nil && b.UpdatedAt != nil:
			return false
		case a.UpdatedAt != nil && b.UpdatedAt != nil && !a.UpdatedAt.Equal(*b.UpdatedAt):
			return a.UpdatedAt.After(*b.UpdatedAt)
		default:
			return a.ID < b.ID
		}
	})
}

// SearchFullText executes a ranked lookup for the sanitized tokens and
// loads the matching records. Larger score is better.
func (m *Manager) SearchFullText(tokens []string, filters index.Filters, limit int) ([]ScoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits, err := m.index.Search(tokens, filters, limit)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		record, err := m.db.GetServer(hit.ID)
		if err != nil {
			// Index and store are updated under one lock; a miss here
			// would mean an interrupted process, skip the row
			m.logger.Warn("Indexed server missing from store", zap.String("id", hit.ID))
			continue
		}
		results = append(results, ScoredRecord{Record: record, Score: hit.Score})
	}

	return results, nil
}

// CountServers returns the number of stored server records
func (m *Manager) CountServers() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.db.CountServers()
}

// ListCategoryCounts counts active servers per taxonomy category,
// sorted by count descending, zero-count categories omitted.
func (m *Manager) ListCategoryCounts() ([]CategoryCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(categories.Taxonomy))
	err := m.db.ForEachServer(func(rec *registry.ServerRecord) error {
		if rec.Status != "" && rec.Status != registry.StatusActive {
			return nil
		}
		text := strings.ToLower(rec.Name + " " + rec.Description)
		for i := range categories.Taxonomy {
			if categories.Taxonomy[i].Matches(text) {
				counts[categories.Taxonomy[i].Name]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]CategoryCount, 0, len(counts))
	for _, c := range categories.Taxonomy {
		if n := counts[c.Name]; n > 0 {
			result = append(result, CategoryCount{Category: c.Name, Count: n})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	return result, nil
}

// ListByCategory returns up to limit servers matching the category,
// ordered by recency. The "other" tag selects servers matching no
// taxonomy category.
func (m *Manager) ListByCategory(category string, limit int) ([]*registry.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cat *categories.Category
	for i := range categories.Taxonomy {
		if categories.Taxonomy[i].Name == category {
			cat = &categories.Taxonomy[i]
			break
		}
	}

	var records []*registry.ServerRecord
	err := m.db.ForEachServer(func(rec *registry.ServerRecord) error {
		if rec.Status != "" && rec.Status != registry.StatusActive {
			return nil
		}
		text := strings.ToLower(rec.Name + " " + rec.Description)
		switch {
		case cat != nil:
			if cat.Matches(text) {
				records = append(records, rec)
			}
		case category == categories.Other:
			matched := false
			for i := range categories.Taxonomy {
				if categories.Taxonomy[i].Matches(text) {
					matched = true
					break
				}
			}
			if !matched {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortByRecency(records)

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// GetLastSync returns the sync log row for a source, or nil if the
// source has never completed a sync.
func (m *Manager) GetLastSync(source string) (*registry.SyncLogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, err := m.db.GetSyncLog(source)
	if err == ErrNotFound {
		return nil, nil
	}
	return record, err
}

// UpdateSyncLog records the outcome of a source sync
func (m *Manager) UpdateSyncLog(source string, count int, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &registry.SyncLogRecord{
		Source:       source,
		LastSyncedAt: nowFunc().UTC(),
		ServerCount:  count,
		Status:       status,
		Error:        errMsg,
	}
	return m.db.SaveSyncLog(record)
}

// ListSyncLogs returns the sync log rows for every synced source
func (m *Manager) ListSyncLogs() ([]*registry.SyncLogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.db.ListSyncLogs()
}
