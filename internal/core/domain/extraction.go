package domain

import (
	"path/filepath"
	"strings"
)

// FileType identifies the format of an uploaded file.
type FileType string

// Recognised file types.
const (
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypeHTML     FileType = "html"
	FileTypeDOCX     FileType = "docx"
	FileTypeEPUB     FileType = "epub"
	FileTypePDF      FileType = "pdf"

	// FileTypeSpreadsheet is recognised so it can be reported as unsupported
	// rather than unknown.
	FileTypeSpreadsheet FileType = "spreadsheet"
)

// extensionTypes maps lowercase file extensions to file types.
var extensionTypes = map[string]FileType{
	".txt":      FileTypeText,
	".text":     FileTypeText,
	".log":      FileTypeText,
	".csv":      FileTypeText,
	".json":     FileTypeText,
	".md":       FileTypeMarkdown,
	".markdown": FileTypeMarkdown,
	".html":     FileTypeHTML,
	".htm":      FileTypeHTML,
	".docx":     FileTypeDOCX,
	".epub":     FileTypeEPUB,
	".pdf":      FileTypePDF,
	".xlsx":     FileTypeSpreadsheet,
	".xls":      FileTypeSpreadsheet,
}

// String returns the string representation.
func (t FileType) String() string {
	return string(t)
}

// IsValid returns true if the file type is recognised.
func (t FileType) IsValid() bool {
	for _, known := range extensionTypes {
		if known == t {
			return true
		}
	}
	return false
}

// DetectFileType returns the file type for a filename based on its extension.
// Unknown extensions return ErrUnsupportedFormat.
func DetectFileType(filename string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t, nil
	}
	if ext == "" {
		return "", ErrUnsupportedFormat
	}
	return "", &FormatError{Kind: ErrUnsupportedFormat, Detail: "extension " + ext}
}

// RawFile is the input to an extractor.
type RawFile struct {
	// Filename is the sanitised upload name.
	Filename string

	// FileType selects the extractor.
	FileType FileType

	// Content is the file bytes.
	Content []byte
}

// Extraction is the output of an extractor.
type Extraction struct {
	// Text is the plain text content.
	Text string

	// Title is a human-readable title when the format carries one.
	Title string

	// Metadata holds structural information such as page_count.
	Metadata map[string]any
}

// FormatError reports an extraction failure with detail.
// Kind is ErrUnsupportedFormat or ErrCorruptFile.
type FormatError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CorruptFile wraps err as an ErrCorruptFile for the named file.
func CorruptFile(filename string, err error) error {
	return &FormatError{Kind: ErrCorruptFile, Detail: filename, Err: err}
}

// TitleFromFilename derives a display title from a filename:
// the extension is dropped and separators become spaces.
func TitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
