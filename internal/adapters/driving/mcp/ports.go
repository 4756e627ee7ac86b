package mcp

import (
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server needs.
type Ports struct {
	// Retrieval serves the retrieve tool and the index resource.
	Retrieval driving.RetrievalService

	// Answer serves the ask tool. Optional: without it the tool is not offered.
	Answer driving.AnswerService

	// IndexName is reported by the index resource.
	IndexName string

	// DefaultK is used when a tool call omits k.
	DefaultK int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}

func (p *Ports) k(requested int) int {
	if requested > 0 {
		return requested
	}
	if p.DefaultK > 0 {
		return p.DefaultK
	}
	return 3
}
