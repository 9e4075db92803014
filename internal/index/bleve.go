package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"mcpfinder-go/internal/registry"
)

// BleveIndex wraps Bleve index operations over server records
type BleveIndex struct {
	index  bleve.Index
	logger *zap.Logger
}

// ServerDocument represents a server record in the index
type ServerDocument struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Keywords      string `json:"keywords"`
	TransportType string `json:"transport_type"`
	RegistryType  string `json:"registry_type"`
	Sources       string `json:"sources"`
}

// Hit is one ranked search result from the index
type Hit struct {
	ID    string
	Score float64
}

// Filters narrow a full-text search by exact field predicates.
// Empty values mean "any".
type Filters struct {
	TransportType string
	RegistryType  string
	Source        string
}

// NewBleveIndex opens or creates the full-text index under dataDir
func NewBleveIndex(dataDir string, logger *zap.Logger) (*BleveIndex, error) {
	indexPath := filepath.Join(dataDir, "index.bleve")

	index, err := bleve.Open(indexPath)
	if err != nil {
		logger.Info("Creating new Bleve index", zap.String("path", indexPath))
		index, err = createBleveIndex(indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
	} else {
		logger.Info("Opened existing Bleve index", zap.String("path", indexPath))
	}

	return &BleveIndex{
		index:  index,
		logger: logger,
	}, nil
}

// createBleveIndex creates a new Bleve index with proper mapping
func createBleveIndex(indexPath string) (bleve.Index, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	serverMapping := bleve.NewDocumentMapping()

	// Name, description and keywords use the english analyzer for
	// stemmed full-text search
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = en.AnalyzerName
	nameField.Store = true
	nameField.Index = true
	serverMapping.AddFieldMappingsAt("name", nameField)

	descriptionField := bleve.NewTextFieldMapping()
	descriptionField.Analyzer = en.AnalyzerName
	descriptionField.Store = true
	descriptionField.Index = true
	serverMapping.AddFieldMappingsAt("description", descriptionField)

	keywordsField := bleve.NewTextFieldMapping()
	keywordsField.Analyzer = en.AnalyzerName
	keywordsField.Store = true
	keywordsField.Index = true
	serverMapping.AddFieldMappingsAt("keywords", keywordsField)

	// Filter fields (keyword analyzer - exact match)
	transportField := bleve.NewTextFieldMapping()
	transportField.Analyzer = keyword.Name
	transportField.Store = true
	transportField.Index = true
	transportField.IncludeInAll = false
	serverMapping.AddFieldMappingsAt("transport_type", transportField)

	registryTypeField := bleve.NewTextFieldMapping()
	registryTypeField.Analyzer = keyword.Name
	registryTypeField.Store = true
	registryTypeField.Index = true
	registryTypeField.IncludeInAll = false
	serverMapping.AddFieldMappingsAt("registry_type", registryTypeField)

	// Sources is a space-joined token list ("official smithery")
	sourcesField := bleve.NewTextFieldMapping()
	sourcesField.Analyzer = standard.Name
	sourcesField.Store = true
	sourcesField.Index = true
	sourcesField.IncludeInAll = false
	serverMapping.AddFieldMappingsAt("sources", sourcesField)

	indexMapping.AddDocumentMapping("server", serverMapping)
	indexMapping.DefaultMapping = serverMapping

	return bleve.New(indexPath, indexMapping)
}

// Close closes the index
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// toDocument converts a server record into its index document
func toDocument(rec *registry.ServerRecord) *ServerDocument {
	return &ServerDocument{
		Name:          rec.Name,
		Description:   rec.Description,
		Keywords:      strings.Join(rec.Keywords, " "),
		TransportType: rec.TransportType,
		RegistryType:  rec.RegistryType,
		Sources:       strings.Join(rec.Sources, " "),
	}
}

// BatchUpsert indexes multiple server records in a single batch.
// Document IDs are the server ids, so re-indexing replaces in place.
func (b *BleveIndex) BatchUpsert(records []*registry.ServerRecord) error {
	batch := b.index.NewBatch()

	for _, rec := range records {
		if err := batch.Index(rec.ID, toDocument(rec)); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", rec.ID, err)
		}
	}

	b.logger.Debug("Batch indexing servers", zap.Int("count", len(records)))
	return b.index.Batch(batch)
}

// Delete removes a server from the index
func (b *BleveIndex) Delete(id string) error {
	b.logger.Debug("Deleting server from index", zap.String("id", id))
	return b.index.Delete(id)
}

// Search executes a ranked full-text lookup. Each token becomes a
// match clause; tokens and filters are combined as a conjunction.
func (b *BleveIndex) Search(tokens []string, filters Filters, limit int) ([]Hit, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	conjuncts := make([]query.Query, 0, len(tokens)+3)
	for _, tok := range tokens {
		conjuncts = append(conjuncts, bleve.NewMatchQuery(tok))
	}

	if filters.TransportType != "" {
		tq := bleve.NewTermQuery(filters.TransportType)
		tq.SetField("transport_type")
		conjuncts = append(conjuncts, tq)
	}
	if filters.RegistryType != "" {
		tq := bleve.NewTermQuery(filters.RegistryType)
		tq.SetField("registry_type")
		conjuncts = append(conjuncts, tq)
	}
	if filters.Source != "" {
		mq := bleve.NewMatchQuery(filters.Source)
		mq.SetField("sources")
		conjuncts = append(conjuncts, mq)
	}

	searchReq := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	searchReq.Size = limit

	b.logger.Debug("Searching servers", zap.Strings("tokens", tokens), zap.Int("limit", limit))

	searchResult, err := b.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		hits = append(hits, Hit{ID: hit.ID, Score: hit.Score})
	}

	return hits, nil
}

// DocCount returns the number of documents in the index
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
