package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/plantviz/plantviz/internal/audit"
	"github.com/plantviz/plantviz/internal/codec"
	"github.com/plantviz/plantviz/internal/sandbox"
)

const sampleDiagram = "@startuml\nBob -> Alice : hello\n@enduml"

// fakePlantUML serves svg/png bytes, or a syntax error for any source
// containing the string "bogus".
func fakePlantUML(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		if len(parts) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		source, err := codec.Decode(parts[1])
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.Contains(source, "bogus") {
			w.Header().Set("X-PlantUML-Diagram-Error", "Syntax Error?")
			w.Header().Set("X-PlantUML-Diagram-Error-Line", "2")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("error image"))
			return
		}
		w.Header().Set("Content-Type", "image/"+parts[0])
		w.Write([]byte("image bytes"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.ConfigPath == "" {
		// Point at a missing file so a developer's real config is
		// never picked up.
		cfg.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEncodeDecodeTools(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx := context.Background()

	_, encOut, err := s.handleEncode(ctx, &mcpsdk.CallToolRequest{}, EncodeInput{Source: sampleDiagram})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if encOut.Token == "" || len(encOut.Token)%4 != 0 {
		t.Fatalf("unexpected token: %q", encOut.Token)
	}
	if !strings.HasSuffix(encOut.URL, "/svg/"+encOut.Token) {
		t.Fatalf("URL should embed the token: %q", encOut.URL)
	}

	_, decOut, err := s.handleDecode(ctx, &mcpsdk.CallToolRequest{}, DecodeInput{Token: encOut.Token})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decOut.Source != sampleDiagram {
		t.Fatalf("decode mismatch: %q", decOut.Source)
	}
}

func TestDecodeToolRejectsGarbage(t *testing.T) {
	s := newTestServer(t, Config{})
	if _, _, err := s.handleDecode(context.Background(), &mcpsdk.CallToolRequest{}, DecodeInput{Token: "0000"}); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestRenderValid(t *testing.T) {
	ts := fakePlantUML(t)
	s := newTestServer(t, Config{ServerURL: ts.URL})

	result, out, err := s.handleRender(context.Background(), &mcpsdk.CallToolRequest{}, RenderInput{Source: sampleDiagram})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success result")
	}
	if !out.Valid {
		t.Fatalf("expected valid, got %+v", out)
	}
	if !strings.Contains(out.URL, "/svg/") {
		t.Fatalf("expected svg URL, got %q", out.URL)
	}
}

func TestRenderSyntaxError(t *testing.T) {
	ts := fakePlantUML(t)
	s := newTestServer(t, Config{ServerURL: ts.URL})

	result, out, err := s.handleRender(context.Background(), &mcpsdk.CallToolRequest{}, RenderInput{
		Source: "@startuml\nbogus\n@enduml",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for syntax error")
	}
	if out.Valid {
		t.Fatal("expected valid=false")
	}
	if out.Line != 2 || out.Error != "Syntax Error?" {
		t.Fatalf("unexpected diagnostic: %+v", out)
	}
}

func TestRenderSavesToAllowedPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(sandbox.EnvAllowedDirs, "")

	ts := fakePlantUML(t)
	s := newTestServer(t, Config{ServerURL: ts.URL})

	_, out, err := s.handleRender(context.Background(), &mcpsdk.CallToolRequest{}, RenderInput{
		Source:     sampleDiagram,
		Format:     "png",
		OutputPath: "diagram.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SavedPath != "diagram.png" {
		t.Fatalf("expected saved path, got %+v", out)
	}
	data, err := os.ReadFile("diagram.png")
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != "image bytes" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestRenderBlocksDisallowedPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(sandbox.EnvAllowedDirs, "")

	ts := fakePlantUML(t)
	s := newTestServer(t, Config{ServerURL: ts.URL})

	result, out, err := s.handleRender(context.Background(), &mcpsdk.CallToolRequest{}, RenderInput{
		Source:     sampleDiagram,
		OutputPath: "/etc/diagram.svg",
	})
	if err != nil {
		t.Fatalf("a sandbox denial must not be an error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for blocked save")
	}
	if !out.Blocked {
		t.Fatal("expected blocked=true")
	}
	if !strings.Contains(out.Reason, "outside allowed directories") {
		t.Fatalf("reason should name the failed rule, got %q", out.Reason)
	}
	if _, err := os.Stat("/etc/diagram.svg"); err == nil {
		t.Fatal("blocked save must not write the file")
	}
}

func TestRenderBlocksBadExtension(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(sandbox.EnvAllowedDirs, sandbox.Wildcard)

	ts := fakePlantUML(t)
	s := newTestServer(t, Config{ServerURL: ts.URL})

	result, out, err := s.handleRender(context.Background(), &mcpsdk.CallToolRequest{}, RenderInput{
		Source:     sampleDiagram,
		OutputPath: "diagram.exe",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError || !out.Blocked {
		t.Fatal("expected blocked result for bad extension even in wildcard mode")
	}
	if !strings.Contains(out.Reason, "invalid extension") {
		t.Fatalf("unexpected reason: %q", out.Reason)
	}
}

func TestCheckUsesCache(t *testing.T) {
	ts := fakePlantUML(t)
	dir := t.TempDir()
	s := newTestServer(t, Config{
		ServerURL: ts.URL,
		CachePath: filepath.Join(dir, "checks.db"),
	})
	ctx := context.Background()

	_, first, err := s.handleCheck(ctx, &mcpsdk.CallToolRequest{}, CheckInput{Source: sampleDiagram})
	if err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	if !first.Valid || first.Cached {
		t.Fatalf("expected uncached valid verdict, got %+v", first)
	}

	_, second, err := s.handleCheck(ctx, &mcpsdk.CallToolRequest{}, CheckInput{Source: sampleDiagram})
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if !second.Cached {
		t.Fatalf("expected cache hit, got %+v", second)
	}
	if !second.Valid {
		t.Fatal("cached verdict must match the original")
	}
}

func TestCheckSyntaxError(t *testing.T) {
	ts := fakePlantUML(t)
	s := newTestServer(t, Config{ServerURL: ts.URL})

	result, out, err := s.handleCheck(context.Background(), &mcpsdk.CallToolRequest{}, CheckInput{
		Source: "@startuml\nbogus\n@enduml",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result")
	}
	if out.Valid || out.Line != 2 {
		t.Fatalf("unexpected verdict: %+v", out)
	}
}

func TestAuditTrail(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(sandbox.EnvAllowedDirs, "")

	ts := fakePlantUML(t)
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	s := newTestServer(t, Config{ServerURL: ts.URL, AuditLogPath: logPath})
	ctx := context.Background()

	s.handleRender(ctx, &mcpsdk.CallToolRequest{}, RenderInput{Source: sampleDiagram, OutputPath: "ok.svg"})
	s.handleRender(ctx, &mcpsdk.CallToolRequest{}, RenderInput{Source: sampleDiagram, OutputPath: "/etc/no.svg"})

	count, err := audit.Verify(logPath)
	if err != nil {
		t.Fatalf("audit chain invalid: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 audit entries, got %d", count)
	}

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), `"decision":"deny"`) {
		t.Fatal("expected a deny entry in the audit log")
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t, Config{})
	if s.mcpServer == nil {
		t.Fatal("expected MCP server to be initialized")
	}
}
