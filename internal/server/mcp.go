package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"mcpfinder-go/internal/categories"
	"mcpfinder-go/internal/install"
	"mcpfinder-go/internal/search"
	"mcpfinder-go/internal/storage"
	syncpkg "mcpfinder-go/internal/sync"
)

const (
	defaultBrowseLimit = 20
	serverName         = "mcpfinder"
	serverVersion      = "1.0.0"
)

// MCPFinderServer exposes the discovery operations as MCP tools
type MCPFinderServer struct {
	server   *mcpserver.MCPServer
	storage  *storage.Manager
	searcher *search.Service
	gate     *syncpkg.Gate
	logger   *zap.Logger
}

// NewMCPFinderServer creates the MCP facade and registers its tools
func NewMCPFinderServer(
	store *storage.Manager,
	searcher *search.Service,
	gate *syncpkg.Gate,
	logger *zap.Logger,
) *MCPFinderServer {
	mcpServer := mcpserver.NewMCPServer(
		serverName,
		serverVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s := &MCPFinderServer{
		server:   mcpServer,
		storage:  store,
		searcher: searcher,
		gate:     gate,
		logger:   logger,
	}

	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport serving
func (s *MCPFinderServer) GetMCPServer() *mcpserver.MCPServer {
	return s.server
}

// registerTools registers the discovery tools with the MCP server
func (s *MCPFinderServer) registerTools() {
	searchTool := mcp.NewTool("search_servers",
		mcp.WithDescription("Search the aggregated MCP server catalog (official registry, Glama, Smithery) by keyword. Returns ranked results with package and remote-endpoint metadata. Use an empty query to list recently updated servers. Follow up with get_server_details or get_install_command."),
		mcp.WithString("query",
			mcp.Description("Keywords describing the capability you need (e.g. 'postgres database', 'browser automation'). Empty returns recently updated servers."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (1-50, default: 10)"),
		),
		mcp.WithString("transport_type",
			mcp.Description("Filter by transport: stdio, streamable-http, sse, or any (default: any)"),
		),
		mcp.WithString("registry_type",
			mcp.Description("Filter by package registry: npm, pypi, oci, nuget, mcpb, or any (default: any)"),
		),
		mcp.WithString("registry_source",
			mcp.Description("Filter by catalog source: official, glama, smithery, or any (default: any)"),
		),
	)
	s.server.AddTool(searchTool, s.handleSearchServers)

	detailsTool := mcp.NewTool("get_server_details",
		mcp.WithDescription("Get the full record for one MCP server: description, version, package identifier, transport, remote endpoint, repository, categories and required environment variables. Accepts the server id, its slug, or a name suffix."),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Server id (e.g. 'io.modelcontextprotocol/filesystem'), slug, or name suffix"),
		),
	)
	s.server.AddTool(detailsTool, s.handleGetServerDetails)

	installTool := mcp.NewTool("get_install_command",
		mcp.WithDescription("Generate a copy-paste-ready installation config snippet for an MCP client application, plus the config file path per OS and the environment variables the server needs."),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Server id, slug, or name suffix"),
		),
		mcp.WithString("client",
			mcp.Description(fmt.Sprintf("Target client: %s (default: generic)", strings.Join(install.Clients(), ", "))),
		),
	)
	s.server.AddTool(installTool, s.handleGetInstallCommand)

	listCategoriesTool := mcp.NewTool("list_categories",
		mcp.WithDescription("List the server categories (filesystem, database, ai, web, ...) with the number of catalogued servers in each. Use browse_category to list the servers inside one."),
	)
	s.server.AddTool(listCategoriesTool, s.handleListCategories)

	browseTool := mcp.NewTool("browse_category",
		mcp.WithDescription("List the MCP servers in one category, most recently updated first."),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Category name: %s, or other", strings.Join(categories.Names(), ", "))),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20)"),
		),
	)
	s.server.AddTool(browseTool, s.handleBrowseCategory)

	syncStatusTool := mcp.NewTool("get_sync_status",
		mcp.WithDescription("Diagnostic: report when each upstream catalog was last synced and whether the sync succeeded."),
	)
	s.server.AddTool(syncStatusTool, s.handleGetSyncStatus)
}

// handleSearchServers implements the search_servers tool
func (s *MCPFinderServer) handleSearchServers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.gate.EnsureFresh(ctx)

	query := request.GetString("query", "")
	limit := int(request.GetFloat("limit", float64(search.DefaultLimit)))
	filters := search.Filters{
		TransportType:  request.GetString("transport_type", ""),
		RegistryType:   request.GetString("registry_type", ""),
		RegistrySource: request.GetString("registry_source", ""),
	}

	results, err := s.searcher.Search(query, limit, filters)
	if err != nil {
		if errors.Is(err, search.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"servers": results,
		"total":   len(results),
		"query":   query,
	}
	if len(results) == 0 {
		response["message"] = "No servers matched. Try broader keywords or an empty query for recent servers."
	}

	return toolResultJSON(response)
}

// handleGetServerDetails implements the get_server_details tool
func (s *MCPFinderServer) handleGetServerDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'key': %v", err)), nil
	}

	s.gate.EnsureFresh(ctx)

	record, err := s.searcher.GetServerDetails(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("No server found for %q. Try search_servers first.", key)), nil
		}
		if errors.Is(err, search.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Error("Details lookup failed", zap.String("key", key), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Lookup failed: %v", err)), nil
	}

	// The raw upstream payload is audit data, not tool output
	detail := *record
	detail.RawData = nil

	return toolResultJSON(detail)
}

// handleGetInstallCommand implements the get_install_command tool
func (s *MCPFinderServer) handleGetInstallCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'key': %v", err)), nil
	}
	client := request.GetString("client", install.ClientGeneric)

	s.gate.EnsureFresh(ctx)

	record, err := s.searcher.GetServerDetails(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("No server found for %q. Try search_servers first.", key)), nil
		}
		s.logger.Error("Install lookup failed", zap.String("key", key), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Lookup failed: %v", err)), nil
	}

	payload, err := install.Generate(record, client)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolResultJSON(payload)
}

// handleListCategories implements the list_categories tool
func (s *MCPFinderServer) handleListCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.gate.EnsureFresh(ctx)

	counts, err := s.storage.ListCategoryCounts()
	if err != nil {
		s.logger.Error("Category listing failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Category listing failed: %v", err)), nil
	}

	return toolResultJSON(map[string]interface{}{
		"categories": counts,
		"total":      len(counts),
	})
}

// handleBrowseCategory implements the browse_category tool
func (s *MCPFinderServer) handleBrowseCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'category': %v", err)), nil
	}
	if !categories.IsKnown(category) {
		return mcp.NewToolResultError(fmt.Sprintf("Unknown category %q. Known: %s, other", category, strings.Join(categories.Names(), ", "))), nil
	}
	limit := int(request.GetFloat("limit", defaultBrowseLimit))
	if limit < 1 {
		limit = defaultBrowseLimit
	}

	s.gate.EnsureFresh(ctx)

	records, err := s.storage.ListByCategory(category, limit)
	if err != nil {
		s.logger.Error("Category browse failed", zap.String("category", category), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Category browse failed: %v", err)), nil
	}

	servers := make([]map[string]interface{}, 0, len(records))
	for i, rec := range records {
		servers = append(servers, map[string]interface{}{
			"rank":        i + 1,
			"name":        rec.Name,
			"description": rec.Description,
			"slug":        rec.Slug,
			"sources":     rec.Sources,
			"use_count":   rec.UseCount,
			"verified":    rec.Verified,
		})
	}

	return toolResultJSON(map[string]interface{}{
		"category": category,
		"servers":  servers,
		"total":    len(servers),
	})
}

// handleGetSyncStatus implements the get_sync_status diagnostic tool.
// Does not go through the gate: diagnostics must not trigger a sync.
func (s *MCPFinderServer) handleGetSyncStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logs, err := s.storage.ListSyncLogs()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Sync status lookup failed: %v", err)), nil
	}

	count, err := s.storage.CountServers()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Sync status lookup failed: %v", err)), nil
	}

	return toolResultJSON(map[string]interface{}{
		"server_count": count,
		"sources":      logs,
	})
}

// toolResultJSON serializes v as the text content of a tool result
func toolResultJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
