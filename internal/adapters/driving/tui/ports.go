// Package tui provides an interactive terminal explorer for the index.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Retrieval answers queries with ranked passages.
	Retrieval driving.RetrievalService

	// Answer synthesizes answers. Optional.
	Answer driving.AnswerService

	// K is the number of passages per query.
	K int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
