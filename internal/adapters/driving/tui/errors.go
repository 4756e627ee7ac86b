package tui

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("tui: retrieval service is required")

// ErrNoLLM is reported when an answer is requested without a language model.
var ErrNoLLM = errors.New("tui: no language model configured")
