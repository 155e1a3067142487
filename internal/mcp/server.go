package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"chat_send": {
		def:     sendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSend },
	},
	"chat_new": {
		def:     newToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNew },
	},
	"chat_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"chat_load": {
		def:     loadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoad },
	},
	"chat_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"code_separate": {
		def:     separateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSeparate },
	},
	"code_preview": {
		def:     previewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePreview },
	},
	"markdown_render": {
		def:     renderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRender },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the qsyntax tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(m *chat.Manager, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"qsyntax",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(m)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(m *chat.Manager, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(m, cfg, version))
}
