package domain

import "time"

// IngestRequest is the input to the ingestion pipeline.
type IngestRequest struct {
	// DocumentID is the id to (re)ingest under. Empty means a new id is generated.
	DocumentID string

	// Filename is the display name of the document.
	Filename string

	// FileType is the detected format.
	FileType FileType

	// Text is the extracted plain text.
	Text string

	// Title is the optional extracted title.
	Title string

	// Description is optional user-provided text.
	Description string

	// Tags are user labels.
	Tags []string

	// SizeBytes is the original upload size.
	SizeBytes int64

	// Metadata is structural information from the extractor.
	Metadata map[string]any
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	DocumentID string
	Filename   string
	ChunkCount int

	// Replaced is true when a previous version of the document was superseded.
	Replaced bool
}

// QueryOptions configures a question against the knowledge base.
type QueryOptions struct {
	// K is the number of chunks to retrieve, between 1 and the configured
	// maximum. Transports substitute the default when the client omits it.
	K int

	// DocumentIDs restricts retrieval to these documents when non-empty.
	DocumentIDs []string

	// ConversationID enables conversation memory when set.
	ConversationID string
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Snippet    string
	Score      float64
	Position   int

	// BelowThreshold marks informational sources that did not clear the
	// similarity threshold and were not given to the LLM.
	BelowThreshold bool
}

// QueryResult is the answer to a question.
type QueryResult struct {
	Answer  string
	Sources []Source

	// Grounded is true when the answer was generated from retrieved context.
	Grounded bool
}

// Canned answers returned without an LLM call.
const (
	NoContextAnswer    = "I could not find any relevant information in the uploaded documents to answer this question."
	LowRelevanceAnswer = "The uploaded documents do not appear to contain information relevant enough to answer this question."
)

// SearchOptions configures semantic retrieval without generation.
type SearchOptions struct {
	// K is the maximum number of results. Zero means the engine default.
	K int

	// FileType restricts results to documents of this type.
	FileType FileType

	// Tags restricts results to documents carrying all of these tags.
	Tags []string
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Chunk is the specific chunk that matched.
	Chunk Chunk

	// Score is the relevance score.
	Score float64
}

// ListFilter narrows document listings.
type ListFilter struct {
	FileType FileType
	Tag      string
}

// Matches reports whether doc passes the filter.
func (f ListFilter) Matches(doc *Document) bool {
	if f.FileType != "" && doc.FileType != f.FileType {
		return false
	}
	if f.Tag != "" && !doc.HasTag(f.Tag) {
		return false
	}
	return true
}

// Message is one turn of a conversation.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
