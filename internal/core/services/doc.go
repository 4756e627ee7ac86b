// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IngestService runs the load, chunk, embed and upsert pipeline.
// RetrieveService and AnswerService serve queries over the index.
// SettingsService assembles the configuration handed to all of them.
package services
