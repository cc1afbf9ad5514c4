package domain

// Stats summarises the knowledge base.
type Stats struct {
	TotalDocuments int
	TotalChunks    int

	// EmbeddingProvider is "provider/model".
	EmbeddingProvider string

	// LLMProvider is "provider/model".
	LLMProvider string

	EmbeddingDimensions int
	VectorBackend       string

	TotalBytes       int64
	FileTypes        map[FileType]int
	TopTags          []TagCount
	LargestDocuments []DocumentSize
}

// TagCount is a tag and the number of documents carrying it.
type TagCount struct {
	Tag   string
	Count int
}

// DocumentSize identifies a document by size.
type DocumentSize struct {
	DocumentID string
	Filename   string
	SizeBytes  int64
	ChunkCount int
}
