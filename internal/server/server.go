// Package server wires the store, index, sync engine and search
// service together and exposes them over the MCP stdio transport.
package server

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"mcpfinder-go/internal/config"
	"mcpfinder-go/internal/registry"
	"mcpfinder-go/internal/search"
	"mcpfinder-go/internal/storage"
	syncpkg "mcpfinder-go/internal/sync"
)

// Server is the assembled mcpfinder process
type Server struct {
	config   *config.Config
	storage  *storage.Manager
	engine   *syncpkg.Engine
	gate     *syncpkg.Gate
	searcher *search.Service
	facade   *MCPFinderServer
	logger   *zap.Logger
}

// NewServer creates and wires all components. Only a failure to open
// the store is fatal; upstream availability is checked lazily.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	store, err := storage.NewManager(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	sources := []syncpkg.Source{
		syncpkg.NewOfficialSource(cfg.OfficialRegistryURL, cfg.SyncPageSize, logger.Named(registry.SourceOfficial)),
		syncpkg.NewGlamaSource(cfg.GlamaURL, cfg.SyncPageSize, logger.Named(registry.SourceGlama)),
		syncpkg.NewSmitherySource(cfg.SmitheryURL, cfg.SyncPageSize, logger.Named(registry.SourceSmithery)),
	}
	engine := syncpkg.NewEngine(store, sources, logger.Named("sync"))
	gate := syncpkg.NewGate(store, engine, cfg.SyncMaxAge, logger.Named("gate"))
	searcher := search.NewService(store, logger.Named("search"))

	s := &Server{
		config:   cfg,
		storage:  store,
		engine:   engine,
		gate:     gate,
		searcher: searcher,
		logger:   logger,
	}
	s.facade = NewMCPFinderServer(store, searcher, gate, logger.Named("mcp"))

	return s, nil
}

// Run serves MCP over stdio until the transport closes or ctx is
// cancelled. stdout carries the protocol; all logging goes to stderr.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting mcpfinder MCP server",
		zap.String("transport", "stdio"),
		zap.String("data_dir", s.config.DataDir))

	errCh := make(chan error, 1)
	go func() {
		errCh <- mcpserver.ServeStdio(s.facade.GetMCPServer())
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	}
}

// SyncAll runs one full sync pass, used by the sync subcommand
func (s *Server) SyncAll(ctx context.Context) []syncpkg.SourceResult {
	return s.engine.SyncAll(ctx)
}

// Search exposes the search service, used by the search subcommand
func (s *Server) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	s.gate.EnsureFresh(ctx)
	return s.searcher.Search(query, limit, search.Filters{})
}

// Close releases the store and index
func (s *Server) Close() error {
	return s.storage.Close()
}
