// Package connectors provides the sources documents are read from.
//
//   - filesystem: walks a local snapshot and watches it for changes
//   - github: materializes a repository snapshot from GitHub
//
// Connectors yield documents over channels so ingestion can start before a
// walk finishes; see driven.DocumentLoader.
package connectors
