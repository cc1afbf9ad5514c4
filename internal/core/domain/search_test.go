package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFilter_Matches(t *testing.T) {
	doc := &Document{FileType: FileTypePDF, Tags: []string{"finance"}}

	assert.True(t, ListFilter{}.Matches(doc))
	assert.True(t, ListFilter{FileType: FileTypePDF}.Matches(doc))
	assert.False(t, ListFilter{FileType: FileTypeHTML}.Matches(doc))
	assert.True(t, ListFilter{Tag: "FINANCE"}.Matches(doc))
	assert.False(t, ListFilter{FileType: FileTypePDF, Tag: "legal"}.Matches(doc))
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		filename string
		expected FileType
	}{
		{"notes.txt", FileTypeText},
		{"README.MD", FileTypeMarkdown},
		{"page.htm", FileTypeHTML},
		{"report.docx", FileTypeDOCX},
		{"book.epub", FileTypeEPUB},
		{"paper.pdf", FileTypePDF},
		{"sheet.xlsx", FileTypeSpreadsheet},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFileType(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestDetectFileType_Unknown(t *testing.T) {
	_, err := DetectFileType("archive.tar.gz")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = DetectFileType("Makefile")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}

func TestNormalise(t *testing.T) {
	v := []float32{3, 4}
	Normalise(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalise(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, CheckDimensions(0, 5))
	assert.NoError(t, CheckDimensions(5, 5))

	err := CheckDimensions(5, 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrVectorStore)
}

func TestCheckModel(t *testing.T) {
	assert.NoError(t, CheckModel("", "openai/text-embedding-3-small"))
	assert.NoError(t, CheckModel("ollama/nomic-embed-text", ""))
	assert.NoError(t, CheckModel("local/hashing-v1", "local/hashing-v1"))

	err := CheckModel("local/hashing-v1", "openai/text-embedding-3-small")
	assert.ErrorIs(t, err, ErrModelMismatch)
	assert.ErrorIs(t, err, ErrVectorStore)
	assert.ErrorContains(t, err, "local/hashing-v1")
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "annual report 2024", TitleFromFilename("annual_report-2024.pdf"))
	assert.Equal(t, "notes", TitleFromFilename("/tmp/notes.txt"))
}
