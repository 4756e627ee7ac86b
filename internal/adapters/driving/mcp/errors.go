// Package mcp provides an MCP (Model Context Protocol) server adapter for kimchi.
// It lets AI assistants retrieve passages from the index and ask questions
// about the indexed repository.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
