// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentLoader: Walks a snapshot and yields decoded documents
//   - Chunker: Splits a document into ordered chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Stores records and answers similarity queries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SourceMaterializer: Fetches a remote repository. Without it, a local path is required.
//   - KeywordIndex: BM25 search (bleve). Without it, hybrid retrieval is unavailable.
//   - LLMService: Answer synthesis. Without it, only retrieval is available.
//   - Watcher: File change notifications for watch mode.
//   - ProgressReporter: Ingestion progress display.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
