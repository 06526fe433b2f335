// Package render is the HTTP client for the PlantUML rendering
// service. It builds token URLs, fetches rendered images, and turns
// the service's error headers into machine-readable diagnostics an
// agent can act on.
package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plantviz/plantviz/internal/codec"
)

// DefaultBaseURL is the public PlantUML rendering service.
const DefaultBaseURL = "https://www.plantuml.com/plantuml"

// Output formats accepted by the rendering endpoint.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// DefaultTimeout bounds a single fetch when the caller supplies none.
const DefaultTimeout = 30 * time.Second

// maxImageBytes caps the response body read.
const maxImageBytes = 8 << 20

// Diagnostic is a syntax error reported by the rendering service,
// parsed from its response headers. Line is 1-based within the
// submitted diagram source.
type Diagnostic struct {
	Line        int    `json:"line"`
	Error       string `json:"error"`
	Description string `json:"description,omitempty"`
}

// Result is a completed fetch. Diagnostic is non-nil when the service
// reported a syntax error; the service still returns an image body in
// that case (the error rendered as a picture), which callers usually
// discard.
type Result struct {
	Data        []byte
	ContentType string
	Diagnostic  *Diagnostic
}

// Client fetches rendered diagrams from a PlantUML server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the given server. Empty baseURL
// selects the public service; zero timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// URL returns the rendering URL for a diagram source and format.
func (c *Client) URL(source, format string) string {
	return fmt.Sprintf("%s/%s/%s", c.BaseURL, format, codec.Encode(source))
}

// Render fetches the rendered image for source in the given format.
// A syntax error in the diagram is not a transport error: it comes
// back as Result.Diagnostic. No retries; cancellation via ctx.
func (c *Client) Render(ctx context.Context, source, format string) (*Result, error) {
	if format != FormatSVG && format != FormatPNG {
		return nil, fmt.Errorf("render: unsupported format %q (want %s or %s)", format, FormatSVG, FormatPNG)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(source, format), nil)
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("render: read response: %w", err)
	}

	diag := diagnosticFromHeaders(resp.Header)
	if resp.StatusCode != http.StatusOK && diag == nil {
		return nil, fmt.Errorf("render: server returned HTTP %d", resp.StatusCode)
	}

	return &Result{
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Diagnostic:  diag,
	}, nil
}

// Check validates diagram syntax by fetching a PNG render and keeping
// only the diagnostic. A nil diagnostic means the source is valid.
func (c *Client) Check(ctx context.Context, source string) (*Diagnostic, error) {
	result, err := c.Render(ctx, source, FormatPNG)
	if err != nil {
		return nil, err
	}
	return result.Diagnostic, nil
}

// diagnosticFromHeaders harvests the PlantUML error headers. The
// service sets X-PlantUML-Diagram-Error plus a 1-based line number
// when the submitted source fails to parse.
func diagnosticFromHeaders(h http.Header) *Diagnostic {
	msg := h.Get("X-PlantUML-Diagram-Error")
	if msg == "" {
		return nil
	}
	line, _ := strconv.Atoi(h.Get("X-PlantUML-Diagram-Error-Line"))
	return &Diagnostic{
		Line:        line,
		Error:       msg,
		Description: h.Get("X-PlantUML-Diagram-Description"),
	}
}
