// Package mcp exposes the adapter's tools over the Model Context
// Protocol: render, syntax check, encode, and decode.
package mcp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/plantviz/plantviz/internal/audit"
	"github.com/plantviz/plantviz/internal/cache"
	"github.com/plantviz/plantviz/internal/config"
	"github.com/plantviz/plantviz/internal/render"
)

// Config holds MCP server configuration. Empty fields fall back to the
// config file (or its defaults).
type Config struct {
	ConfigPath   string
	ServerURL    string
	CachePath    string
	AuditLogPath string
}

// Server wraps the MCP SDK server with the rendering client, the
// syntax-check cache, and the audit log.
type Server struct {
	mcpServer     *mcpsdk.Server
	mu            sync.Mutex
	renderer      *render.Client
	defaultFormat string
	store         *cache.Store
	auditLog      *audit.Log
	traceID       string
}

// New creates an MCP server with loaded configuration and registered
// tools.
func New(cfg Config) (*Server, error) {
	fileCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.ServerURL != "" {
		fileCfg.ServerURL = cfg.ServerURL
	}
	if cfg.CachePath != "" {
		fileCfg.CachePath = cfg.CachePath
	}
	if cfg.AuditLogPath != "" {
		fileCfg.AuditLog = cfg.AuditLogPath
	}

	var store *cache.Store
	if fileCfg.CachePath != "" {
		store, err = cache.Open(fileCfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open check cache: %w", err)
		}
	}

	var auditLog *audit.Log
	if fileCfg.AuditLog != "" {
		auditLog, err = audit.Open(fileCfg.AuditLog)
		if err != nil {
			if store != nil {
				store.Close()
			}
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	s := &Server{
		renderer:      render.NewClient(fileCfg.ServerURL, fileCfg.Timeout()),
		defaultFormat: fileCfg.DefaultFormat,
		store:         store,
		auditLog:      auditLog,
		traceID:       uuid.NewString(),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "plantviz",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the cache and audit log if configured.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
	}
	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reconfigure swaps the rendering client and default format from a
// freshly loaded config. Used by the hot-reload watcher; in-flight
// requests keep the client they started with.
func (s *Server) Reconfigure(cfg config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer = render.NewClient(cfg.ServerURL, cfg.Timeout())
	if cfg.DefaultFormat != "" {
		s.defaultFormat = cfg.DefaultFormat
	}
}

// client returns the current rendering client under the lock.
func (s *Server) client() *render.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer
}

func (s *Server) format(requested string) string {
	if requested != "" {
		return requested
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultFormat
}

func (s *Server) recordAudit(tool, resource, decision, reason string) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(audit.Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		TraceID:   s.traceID,
		Tool:      tool,
		Resource:  resource,
		Decision:  decision,
		Reason:    reason,
	}); err != nil {
		// Audit failure must not take down the tool call.
		fmt.Fprintf(os.Stderr, "audit record failed: %v\n", err)
	}
}

// registerTools adds all plantviz tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "plantuml_render",
		Description: "Render a PlantUML diagram via the rendering service. " +
			"Returns the rendering URL plus machine-readable syntax diagnostics. " +
			"Optionally saves the image to a sandboxed local path (.svg or .png).",
	}, s.handleRender)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "plantuml_check",
		Description: "Validate PlantUML syntax without keeping the rendered image. " +
			"Returns the failing line and error message for automated correction.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "plantuml_encode",
		Description: "Encode PlantUML source into the compressed URL token and " +
			"rendering URL. No network access.",
	}, s.handleEncode)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "plantuml_decode",
		Description: "Decode a PlantUML URL token back into diagram source text.",
	}, s.handleDecode)
}
