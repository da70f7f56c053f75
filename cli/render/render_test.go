package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
		{"invalid with message", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

type sessionRow struct {
	Phase        string `json:"phase"`
	TokenPreview string `json:"token_preview,omitempty"`
	Pending      bool   `json:"pending_redirect"`
}

type healthRow struct {
	Status  string     `json:"status"`
	Session sessionRow `json:"session"`
	At      time.Time  `json:"at"`
	Count   *int       `json:"count"`
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	if err := r.Render(sessionRow{Phase: "authenticated", TokenPreview: "abc123"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, `"phase": "authenticated"`) || !strings.Contains(got, `"token_preview": "abc123"`) {
		t.Errorf("JSON output missing expected content: %s", got)
	}
}

func TestRenderer_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)

	if err := r.Render(map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if got := buf.String(); !strings.Contains(got, "status: ok") {
		t.Errorf("YAML output missing expected content: %s", got)
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := healthRow{
		Status:  "ok",
		Session: sessionRow{Phase: "unauthenticated"},
		At:      at,
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"status:",
		"session.phase:",
		"unauthenticated",
		"session.pending_redirect:",
		"no",
		"2026-03-01T12:00:00Z",
		"count:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "token_preview") {
		t.Errorf("empty omitempty field should be skipped:\n%s", got)
	}
}

func TestRenderer_Table_Pointer(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	if err := r.Render(&sessionRow{Phase: "error"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "error") {
		t.Errorf("expected phase in output: %s", buf.String())
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := []sessionRow{
		{Phase: "authenticated", TokenPreview: "abc"},
		{Phase: "error"},
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "PHASE") || !strings.Contains(lines[0], "TOKEN_PREVIEW") {
		t.Errorf("header row = %q", lines[0])
	}
	if !strings.Contains(lines[1], "abc") {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestRenderer_Table_Lines(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	if err := r.Render([]string{"newest", "older"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := buf.String(); got != "newest\nolder\n" {
		t.Errorf("got %q", got)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	if err := r.Render([]string{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("expected '(no results)', got: %s", buf.String())
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	var withColor, withoutColor bytes.Buffer
	data := map[string]int{"lines": 3}

	if err := NewRendererWithWriter(FormatJSON, false, &withColor).Render(data); err != nil {
		t.Fatal(err)
	}
	if err := NewRendererWithWriter(FormatJSON, true, &withoutColor).Render(data); err != nil {
		t.Fatal(err)
	}
	if withColor.String() != withoutColor.String() {
		t.Error("--no-color should not affect JSON output")
	}
}

func TestRenderer_Line(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)
	if err := r.Line("hello"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestRenderer_Record(t *testing.T) {
	type rec struct {
		Line string `json:"line" yaml:"line"`
	}
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "{\"line\":\"rpm=900\"}\n{\"line\":\"rpm=910\"}\n"},
		{FormatYAML, "---\nline: rpm=900\n---\nline: rpm=910\n"},
		{FormatTable, "rpm=900\nrpm=910\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRendererWithWriter(tt.format, false, &buf)
			for _, l := range []string{"rpm=900", "rpm=910"} {
				if err := r.Record(rec{Line: l}, l); err != nil {
					t.Fatal(err)
				}
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
