package mcp

import (
	"context"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/plantviz/plantviz/internal/cache"
	"github.com/plantviz/plantviz/internal/codec"
	"github.com/plantviz/plantviz/internal/sandbox"
)

// --- Input/Output types ---

// RenderInput defines parameters for the plantuml_render tool.
type RenderInput struct {
	Source     string `json:"source" jsonschema:"PlantUML diagram source text"`
	Format     string `json:"format,omitempty" jsonschema:"output format: svg or png (default from config)"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"local path to save the image; must end in .svg or .png and sit inside an allowed directory"`
}

// RenderOutput contains the rendering URL, syntax diagnostics, and
// save result or block details.
type RenderOutput struct {
	URL         string `json:"url"`
	Valid       bool   `json:"valid"`
	Line        int    `json:"line,omitempty"`
	Error       string `json:"error,omitempty"`
	Description string `json:"description,omitempty"`
	SavedPath   string `json:"saved_path,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// CheckInput defines parameters for the plantuml_check tool.
type CheckInput struct {
	Source string `json:"source" jsonschema:"PlantUML diagram source text to validate"`
}

// CheckOutput contains the validation verdict.
type CheckOutput struct {
	Valid       bool   `json:"valid"`
	Line        int    `json:"line,omitempty"`
	Error       string `json:"error,omitempty"`
	Description string `json:"description,omitempty"`
	Cached      bool   `json:"cached,omitempty"`
}

// EncodeInput defines parameters for the plantuml_encode tool.
type EncodeInput struct {
	Source string `json:"source" jsonschema:"PlantUML diagram source text"`
	Format string `json:"format,omitempty" jsonschema:"format for the returned URL: svg or png"`
}

// EncodeOutput contains the token and rendering URL.
type EncodeOutput struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// DecodeInput defines parameters for the plantuml_decode tool.
type DecodeInput struct {
	Token string `json:"token" jsonschema:"encoded token from a PlantUML rendering URL"`
}

// DecodeOutput contains the recovered diagram source.
type DecodeOutput struct {
	Source string `json:"source"`
}

// --- Handlers ---

func (s *Server) handleRender(ctx context.Context, req *mcpsdk.CallToolRequest, input RenderInput) (*mcpsdk.CallToolResult, RenderOutput, error) {
	format := s.format(input.Format)
	client := s.client()

	result, err := client.Render(ctx, input.Source, format)
	if err != nil {
		return nil, RenderOutput{}, err
	}

	out := RenderOutput{
		URL:   client.URL(input.Source, format),
		Valid: result.Diagnostic == nil,
	}

	if diag := result.Diagnostic; diag != nil {
		out.Line = diag.Line
		out.Error = diag.Error
		out.Description = diag.Description
		s.recordAudit("plantuml_render", input.OutputPath, "syntax_error", diag.Error)
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	if input.OutputPath == "" {
		s.recordAudit("plantuml_render", "", "allow", "")
		return nil, out, nil
	}

	// Sandbox gates every local write. A denial is a structured
	// result, not a crash: the agent gets the failed rule back.
	decision := sandbox.IsPathAllowed(input.OutputPath)
	if !decision.Allowed {
		out.Blocked = true
		out.Reason = decision.Reason
		s.recordAudit("plantuml_render", input.OutputPath, "deny", decision.Reason)
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	if err := os.WriteFile(input.OutputPath, result.Data, 0644); err != nil {
		s.recordAudit("plantuml_render", input.OutputPath, "write_error", err.Error())
		return nil, RenderOutput{}, err
	}

	out.SavedPath = input.OutputPath
	s.recordAudit("plantuml_render", input.OutputPath, "allow", "")
	return nil, out, nil
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	key := cache.Key(input.Source)

	if s.store != nil {
		if entry, ok, err := s.store.Get(key); err == nil && ok {
			out := CheckOutput{
				Valid:       entry.Valid,
				Line:        entry.Line,
				Error:       entry.Error,
				Description: entry.Description,
				Cached:      true,
			}
			s.recordAudit("plantuml_check", key, verdict(out.Valid), out.Error)
			return checkResult(out), out, nil
		}
	}

	diag, err := s.client().Check(ctx, input.Source)
	if err != nil {
		return nil, CheckOutput{}, err
	}

	out := CheckOutput{Valid: diag == nil}
	if diag != nil {
		out.Line = diag.Line
		out.Error = diag.Error
		out.Description = diag.Description
	}

	if s.store != nil {
		// Cache write failures are non-fatal; the verdict stands.
		_ = s.store.Put(cache.Entry{
			Key:         key,
			Valid:       out.Valid,
			Line:        out.Line,
			Error:       out.Error,
			Description: out.Description,
		})
	}

	s.recordAudit("plantuml_check", key, verdict(out.Valid), out.Error)
	return checkResult(out), out, nil
}

func (s *Server) handleEncode(ctx context.Context, req *mcpsdk.CallToolRequest, input EncodeInput) (*mcpsdk.CallToolResult, EncodeOutput, error) {
	format := s.format(input.Format)
	return nil, EncodeOutput{
		Token: codec.Encode(input.Source),
		URL:   s.client().URL(input.Source, format),
	}, nil
}

func (s *Server) handleDecode(ctx context.Context, req *mcpsdk.CallToolRequest, input DecodeInput) (*mcpsdk.CallToolResult, DecodeOutput, error) {
	source, err := codec.Decode(input.Token)
	if err != nil {
		return nil, DecodeOutput{}, err
	}
	return nil, DecodeOutput{Source: source}, nil
}

// --- Helpers ---

func checkResult(out CheckOutput) *mcpsdk.CallToolResult {
	if out.Valid {
		return nil
	}
	return &mcpsdk.CallToolResult{IsError: true}
}

func verdict(valid bool) string {
	if valid {
		return "valid"
	}
	return "syntax_error"
}
