package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plantviz/plantviz/internal/codec"
)

const sampleDiagram = "@startuml\nBob -> Alice : hello\n@enduml"

func TestRenderSuccess(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte("<svg/>"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 5*time.Second)
	result, err := c.Render(context.Background(), sampleDiagram, FormatSVG)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Diagnostic != nil {
		t.Fatalf("expected no diagnostic, got %+v", result.Diagnostic)
	}
	if string(result.Data) != "<svg/>" {
		t.Fatalf("unexpected body: %q", result.Data)
	}
	if result.ContentType != "image/svg+xml" {
		t.Fatalf("unexpected content type: %q", result.ContentType)
	}

	if !strings.HasPrefix(gotPath, "/svg/") {
		t.Fatalf("expected /svg/ path, got %q", gotPath)
	}
	// The token in the URL must decode back to the submitted source.
	token := strings.TrimPrefix(gotPath, "/svg/")
	source, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("URL token does not decode: %v", err)
	}
	if source != sampleDiagram {
		t.Fatalf("URL token decodes to %q, want %q", source, sampleDiagram)
	}
}

func TestRenderSyntaxError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PlantUML-Diagram-Error", "Syntax Error?")
		w.Header().Set("X-PlantUML-Diagram-Error-Line", "3")
		w.Header().Set("X-PlantUML-Diagram-Description", "(Error)")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("error image"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 5*time.Second)
	result, err := c.Render(context.Background(), "@startuml\nbogus\n@enduml", FormatPNG)
	if err != nil {
		t.Fatalf("syntax error must not be a transport error: %v", err)
	}
	diag := result.Diagnostic
	if diag == nil {
		t.Fatal("expected a diagnostic")
	}
	if diag.Line != 3 {
		t.Fatalf("expected line 3, got %d", diag.Line)
	}
	if diag.Error != "Syntax Error?" {
		t.Fatalf("unexpected error message: %q", diag.Error)
	}
	if diag.Description != "(Error)" {
		t.Fatalf("unexpected description: %q", diag.Description)
	}
}

func TestRenderServerFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 5*time.Second)
	if _, err := c.Render(context.Background(), sampleDiagram, FormatSVG); err == nil {
		t.Fatal("expected error for HTTP 500 without diagram headers")
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	c := NewClient("", 0)
	if _, err := c.Render(context.Background(), sampleDiagram, "pdf"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestCheckFetchesPNG(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("png bytes"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 5*time.Second)
	diag, err := c.Check(context.Background(), sampleDiagram)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diag != nil {
		t.Fatalf("expected valid verdict, got %+v", diag)
	}
	if !strings.HasPrefix(gotPath, "/png/") {
		t.Fatalf("check should fetch the png endpoint, got %q", gotPath)
	}
}

func TestURLJoinsBaseFormatToken(t *testing.T) {
	c := NewClient("http://plantuml.example/plantuml/", 0)
	url := c.URL(sampleDiagram, FormatSVG)
	want := "http://plantuml.example/plantuml/svg/" + codec.Encode(sampleDiagram)
	if url != want {
		t.Fatalf("URL = %q, want %q", url, want)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	c := NewClient("", 0)
	if c.BaseURL != DefaultBaseURL {
		t.Fatalf("expected default base URL, got %q", c.BaseURL)
	}
}
