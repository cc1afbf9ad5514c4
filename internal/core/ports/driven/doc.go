// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - Chunker: Splits extracted text into overlapping segments
//   - Extractor / ExtractorRegistry: Turns uploaded bytes into plain text
//   - EmbeddingService: Generates vector embeddings (openai, ollama, gemini, local)
//   - EmbeddingCache: Persists embeddings keyed by model and input
//   - LLMService: Generates answers and summaries
//   - VectorStore: Stores chunk vectors and ranks them by similarity
//   - DocumentStore: Document and chunk persistence
//   - ConfigStore: Application configuration
//   - PromptStore: User-editable prompt templates
//   - AIConfigValidator: Connectivity checks for provider settings
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
