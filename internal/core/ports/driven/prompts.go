package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return an error.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptRAGAnswer answers a question from retrieved context.
	// The template expects {{context}}, {{history}} and {{question}} placeholders.
	PromptRAGAnswer = "rag_answer"

	// PromptSummarise creates summaries of document content.
	// The template expects {{filename}} and {{content}} placeholders.
	PromptSummarise = "summarise"

	// PromptSystem is the system instruction sent with every generation.
	// This prompt has no placeholders.
	PromptSystem = "system"
)
