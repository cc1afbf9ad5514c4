// Package docx extracts text from Office Open XML word processing documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var errMissingDocument = errors.New("word/document.xml not found")

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeDOCX}
}

// Extract reads paragraph text from word/document.xml and the title from docProps/core.xml.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (*domain.Extraction, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, domain.CorruptFile(raw.Filename, err)
	}

	body, err := readFile(reader, "word/document.xml")
	if err != nil {
		return nil, domain.CorruptFile(raw.Filename, err)
	}
	text, paragraphs, err := parseDocumentXML(body)
	if err != nil {
		return nil, domain.CorruptFile(raw.Filename, err)
	}

	return &domain.Extraction{
		Text:  text,
		Title: extractTitle(reader),
		Metadata: map[string]any{
			"format":          "docx",
			"paragraph_count": paragraphs,
		},
	}, nil
}

func readFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errMissingDocument
}

// parseDocumentXML walks the WordprocessingML token stream. Text runs are
// joined, paragraphs end with a newline, and table cells are included.
func parseDocumentXML(content []byte) (string, int, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		result     strings.Builder
		paragraph  strings.Builder
		inText     bool
		paragraphs int
	)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteString("\t")
			case "br", "cr":
				paragraph.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(paragraph.String()); line != "" {
					if result.Len() > 0 {
						result.WriteString("\n")
					}
					result.WriteString(line)
					paragraphs++
				}
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	return result.String(), paragraphs, nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle reads the title from docProps/core.xml, or returns "".
func extractTitle(reader *zip.Reader) string {
	content, err := readFile(reader, "docProps/core.xml")
	if err != nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
