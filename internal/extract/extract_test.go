package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestForPath_Dispatch(t *testing.T) {
	cases := []struct {
		path     string
		modality Modality
	}{
		{"notes.txt", ModalityText},
		{"notes.TXT", ModalityText},
		{"README.md", ModalityText},
		{"index.html", ModalityText},
		{"table.csv", ModalityText},
		{"report.pdf", ModalityPDF},
		{"letter.docx", ModalityOffice},
		{"scan.png", ModalityImage},
		{"photo.JPEG", ModalityImage},
		{"clip.mp4", ModalityVideo},
	}
	for _, tc := range cases {
		ex, mod, err := ForPath(tc.path, Options{})
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.path, err)
			continue
		}
		if ex == nil {
			t.Errorf("%s: nil extractor", tc.path)
		}
		if mod != tc.modality {
			t.Errorf("%s: expected modality %s, got %s", tc.path, tc.modality, mod)
		}
	}
}

func TestForPath_UnsupportedExtension(t *testing.T) {
	if _, _, err := ForPath("archive.zip", Options{}); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if IsSupported("archive.zip") {
		t.Error("zip should not be supported")
	}
	if !IsSupported("doc.pdf") {
		t.Error("pdf should be supported")
	}
}

func TestParseModality(t *testing.T) {
	if m, err := ParseModality("Image"); err != nil || m != ModalityImage {
		t.Errorf("expected image modality, got %v %v", m, err)
	}
	if _, err := ParseModality("audio"); err == nil {
		t.Error("expected error for unknown modality")
	}
}

func TestTextExtractor_SingleVerbatimUnit(t *testing.T) {
	path := writeFile(t, "notes.txt", "hello world\n\nsecond paragraph\n")
	units, err := (&TextExtractor{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Text != "hello world\n\nsecond paragraph" {
		t.Errorf("unexpected text: %q", units[0].Text)
	}
	if units[0].Index != 0 {
		t.Errorf("expected index 0, got %d", units[0].Index)
	}
}

func TestTextExtractor_EmptyFileYieldsNoUnits(t *testing.T) {
	path := writeFile(t, "empty.txt", "   \n\t\n")
	units, err := (&TextExtractor{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected 0 units, got %d", len(units))
	}
}

func TestCSVExtractor_HeaderLabelledRows(t *testing.T) {
	path := writeFile(t, "table.csv", "name,age\nalice,30\nbob,25\n")
	units, err := (&CSVExtractor{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	text := units[0].Text
	if !strings.Contains(text, "Headers: name, age") {
		t.Errorf("missing header line in %q", text)
	}
	if !strings.Contains(text, "name: alice, age: 30") {
		t.Errorf("missing labelled row in %q", text)
	}
}

func TestMarkdownExtractor_FlattensHeadingsAndBody(t *testing.T) {
	path := writeFile(t, "doc.md", "# Title\n\nFirst paragraph.\n\n## Section\n\nSecond paragraph.\n")
	units, err := (&MarkdownExtractor{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	for _, want := range []string{"Title", "First paragraph.", "Section", "Second paragraph."} {
		if !strings.Contains(units[0].Text, want) {
			t.Errorf("expected %q in extracted text %q", want, units[0].Text)
		}
	}
}

func TestHTMLExtractor_SkipsScriptAndStyle(t *testing.T) {
	page := `<html><head><title>T</title><style>.x{}</style></head>
<body><nav>menu</nav><h1>Heading</h1><p>Body text.</p><script>alert(1)</script></body></html>`
	path := writeFile(t, "page.html", page)
	units, err := (&HTMLExtractor{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	text := units[0].Text
	if !strings.Contains(text, "Heading") || !strings.Contains(text, "Body text.") {
		t.Errorf("expected heading and body in %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "menu") {
		t.Errorf("script/nav content leaked into %q", text)
	}
}
