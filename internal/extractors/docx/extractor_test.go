package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
<w:p></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell text</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body>
</w:document>`

const coreXMLContent = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Quarterly Plan</dc:title>
</cp:coreProperties>`

func TestExtractor_Extract(t *testing.T) {
	content := buildDocx(t, map[string]string{
		"word/document.xml": documentXML,
		"docProps/core.xml": coreXMLContent,
	})

	result, err := New().Extract(context.Background(), &domain.RawFile{Filename: "plan.docx", Content: content})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Hello world\nCell text" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Title != "Quarterly Plan" {
		t.Errorf("unexpected title: %q", result.Title)
	}
	if result.Metadata["paragraph_count"] != 2 {
		t.Errorf("expected 2 paragraphs, got %v", result.Metadata["paragraph_count"])
	}
}

func TestExtractor_NotAZip(t *testing.T) {
	_, err := New().Extract(context.Background(), &domain.RawFile{Filename: "x.docx", Content: []byte("plain text")})
	if !errors.Is(err, domain.ErrCorruptFile) {
		t.Errorf("expected ErrCorruptFile, got %v", err)
	}
}

func TestExtractor_MissingDocument(t *testing.T) {
	content := buildDocx(t, map[string]string{"other.xml": "<a/>"})

	_, err := New().Extract(context.Background(), &domain.RawFile{Filename: "x.docx", Content: content})
	if !errors.Is(err, domain.ErrCorruptFile) {
		t.Errorf("expected ErrCorruptFile, got %v", err)
	}
}
