package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for kimchi resources.
	uriScheme = "kimchi://"

	indexURI      = uriScheme + "index"
	strategiesURI = uriScheme + "strategies"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         indexURI,
		Name:        "index",
		Description: "Schema, record count and search mode of the index",
		MIMEType:    "application/json",
	}, s.handleIndexResource)

	s.server.AddResource(&mcp.Resource{
		URI:         strategiesURI,
		Name:        "strategies",
		Description: "Chunking strategy applied to each file extension",
		MIMEType:    "application/json",
	}, s.handleStrategiesResource)
}

// indexInfo is the JSON shape of the index resource.
type indexInfo struct {
	Name       string `json:"name"`
	Created    bool   `json:"created"`
	Records    int    `json:"records"`
	Dimensions int    `json:"dimensions,omitempty"`
	Model      string `json:"model,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// handleIndexResource describes the index.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Retrieval.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index stats: %w", err)
	}

	info := indexInfo{
		Name:    s.ports.IndexName,
		Records: stats.Records,
		Mode:    string(stats.Mode),
	}
	if stats.Schema != nil {
		info.Created = true
		info.Dimensions = stats.Schema.Dimensions
		info.Model = stats.Schema.Model
		if info.Name == "" {
			info.Name = stats.Schema.Name
		}
	}
	return jsonResource(req.Params.URI, info)
}

// handleStrategiesResource lists the extension table.
func (s *Server) handleStrategiesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type mapping struct {
		Extension string `json:"extension"`
		Strategy  string `json:"strategy"`
	}
	rows := domain.ExtensionTable()
	out := make([]mapping, len(rows))
	for i, r := range rows {
		out[i] = mapping{Extension: r.Extension, Strategy: string(r.Strategy)}
	}
	return jsonResource(req.Params.URI, out)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
