// Package install generates copy-paste-ready installation snippets
// for MCP client applications from stored server records.
package install

import (
	"errors"
	"fmt"
	"strings"

	"mcpfinder-go/internal/registry"
)

// Supported clients
const (
	ClientClaudeDesktop = "claude-desktop"
	ClientCursor        = "cursor"
	ClientClaudeCode    = "claude-code"
	ClientClineVSCode   = "cline-vscode"
	ClientWindsurf      = "windsurf"
	ClientGeneric       = "generic"
)

// Install strategies
const (
	StrategyRemote   = "remote"
	StrategyNPM      = "npm"
	StrategyPyPI     = "pypi"
	StrategyDocker   = "docker"
	StrategyFallback = "fallback"
)

// Env placeholder values
const (
	secretPlaceholder  = "<YOUR_VALUE>"
	defaultPlaceholder = "<VALUE>"
)

// ErrUnknownClient is returned for a client outside the supported set
var ErrUnknownClient = errors.New("unknown client")

// ConfigPaths holds the per-OS config file locations for a client
type ConfigPaths struct {
	Mac     string `json:"mac"`
	Windows string `json:"windows"`
	Linux   string `json:"linux"`
}

// Payload is the full install instruction set for one server + client
type Payload struct {
	Client          string                 `json:"client"`
	ServerKey       string                 `json:"server_key"`
	Strategy        string                 `json:"strategy"`
	Snippet         map[string]interface{} `json:"snippet,omitempty"`
	ConfigPaths     ConfigPaths            `json:"config_paths"`
	EnvVarsNeeded   []registry.EnvVar      `json:"env_vars_needed,omitempty"`
	PostInstallNote string                 `json:"post_install_note"`
	RepositoryURL   string                 `json:"repository_url,omitempty"`
}

type clientInfo struct {
	paths       ConfigPaths
	topLevelKey string
	note        string
}

// Static per-client table: config file locations, snippet wrapping key
// and post-install hint
var clients = map[string]clientInfo{
	ClientClaudeDesktop: {
		paths: ConfigPaths{
			Mac:     "~/Library/Application Support/Claude/claude_desktop_config.json",
			Windows: `%APPDATA%\Claude\claude_desktop_config.json`,
			Linux:   "~/.config/Claude/claude_desktop_config.json",
		},
		topLevelKey: "mcpServers",
		note:        "Restart Claude Desktop to activate the server.",
	},
	ClientCursor: {
		paths: ConfigPaths{
			Mac:     "~/.cursor/mcp.json",
			Windows: `%USERPROFILE%\.cursor\mcp.json`,
			Linux:   "~/.cursor/mcp.json",
		},
		topLevelKey: "mcpServers",
		note:        "Reload Cursor or toggle the server in Settings > MCP.",
	},
	ClientClaudeCode: {
		paths: ConfigPaths{
			Mac:     ".mcp.json (project) or ~/.claude.json (global)",
			Windows: `.mcp.json (project) or %USERPROFILE%\.claude.json (global)`,
			Linux:   ".mcp.json (project) or ~/.claude.json (global)",
		},
		topLevelKey: "mcpServers",
		note:        "Run claude mcp list to verify the server is registered.",
	},
	ClientClineVSCode: {
		paths: ConfigPaths{
			Mac:     ".vscode/mcp.json",
			Windows: ".vscode/mcp.json",
			Linux:   ".vscode/mcp.json",
		},
		topLevelKey: "servers",
		note:        "Reload the VS Code window to pick up the new server.",
	},
	ClientWindsurf: {
		paths: ConfigPaths{
			Mac:     "~/.codeium/windsurf/mcp_config.json",
			Windows: `%USERPROFILE%\.codeium\windsurf\mcp_config.json`,
			Linux:   "~/.codeium/windsurf/mcp_config.json",
		},
		topLevelKey: "mcpServers",
		note:        "Restart Windsurf to activate the server.",
	},
	ClientGeneric: {
		paths: ConfigPaths{
			Mac:     "see your MCP client documentation",
			Windows: "see your MCP client documentation",
			Linux:   "see your MCP client documentation",
		},
		topLevelKey: "mcpServers",
		note:        "Add the snippet to your MCP client configuration.",
	},
}

// Clients returns the supported client names
func Clients() []string {
	return []string{
		ClientClaudeDesktop,
		ClientCursor,
		ClientClaudeCode,
		ClientClineVSCode,
		ClientWindsurf,
		ClientGeneric,
	}
}

// ServerKey derives the snippet key: the last path segment of the id,
// or the slug when the id has no separator.
func ServerKey(rec *registry.ServerRecord) string {
	if idx := strings.LastIndex(rec.ID, "/"); idx >= 0 && idx < len(rec.ID)-1 {
		return rec.ID[idx+1:]
	}
	return rec.Slug
}

// envPlaceholders builds the env map for a snippet: secrets get the
// <YOUR_VALUE> literal, others their description or <VALUE>.
func envPlaceholders(vars []registry.EnvVar) map[string]interface{} {
	if len(vars) == 0 {
		return nil
	}
	env := make(map[string]interface{}, len(vars))
	for _, v := range vars {
		switch {
		case v.IsSecret:
			env[v.Name] = secretPlaceholder
		case v.Description != "":
			env[v.Name] = v.Description
		default:
			env[v.Name] = defaultPlaceholder
		}
	}
	return env
}

// Generate assembles the install payload for a server and client.
// Strategy selection order: remote, npx, uvx, docker, fallback.
func Generate(rec *registry.ServerRecord, client string) (*Payload, error) {
	info, ok := clients[client]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownClient, client, strings.Join(Clients(), ", "))
	}

	serverKey := ServerKey(rec)
	payload := &Payload{
		Client:        client,
		ServerKey:     serverKey,
		ConfigPaths:   info.paths,
		EnvVarsNeeded: rec.EnvironmentVariables,
		RepositoryURL: rec.RepositoryURL,
	}

	var serverConfig map[string]interface{}

	switch {
	case rec.HasRemote && rec.RemoteURL != "":
		payload.Strategy = StrategyRemote
		serverConfig = map[string]interface{}{"url": rec.RemoteURL}
		if env := envPlaceholders(rec.EnvironmentVariables); env != nil {
			serverConfig["env"] = env
		}

	case rec.RegistryType == registry.RegistryTypeNPM && rec.PackageIdentifier != "":
		payload.Strategy = StrategyNPM
		serverConfig = map[string]interface{}{
			"command": "npx",
			"args":    []interface{}{"-y", rec.PackageIdentifier},
		}
		if env := envPlaceholders(rec.EnvironmentVariables); env != nil {
			serverConfig["env"] = env
		}

	case rec.RegistryType == registry.RegistryTypePyPI && rec.PackageIdentifier != "":
		payload.Strategy = StrategyPyPI
		serverConfig = map[string]interface{}{
			"command": "uvx",
			"args":    []interface{}{rec.PackageIdentifier},
		}
		if env := envPlaceholders(rec.EnvironmentVariables); env != nil {
			serverConfig["env"] = env
		}

	case rec.RegistryType == registry.RegistryTypeOCI && rec.PackageIdentifier != "":
		payload.Strategy = StrategyDocker
		args := []interface{}{"run", "-i"}
		for _, v := range rec.EnvironmentVariables {
			args = append(args, "-e", fmt.Sprintf("%s=%s", v.Name, secretPlaceholder))
		}
		args = append(args, rec.PackageIdentifier)
		serverConfig = map[string]interface{}{
			"command": "docker",
			"args":    args,
		}

	default:
		payload.Strategy = StrategyFallback
		payload.PostInstallNote = "No package or remote endpoint is published for this server; install manually from the repository."
		return payload, nil
	}

	payload.Snippet = map[string]interface{}{
		info.topLevelKey: map[string]interface{}{
			serverKey: serverConfig,
		},
	}
	payload.PostInstallNote = info.note

	return payload, nil
}
