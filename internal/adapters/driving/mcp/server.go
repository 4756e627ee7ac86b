package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kimchi/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// shutdownTimeout bounds how long RunHTTP waits for in-flight sessions.
const shutdownTimeout = 5 * time.Second

// Server exposes an index to MCP clients.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a server over the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "kimchi",
		Version: Version,
	}
	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions(ports)}),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// instructions tells clients which tools the index offers.
func instructions(p *Ports) string {
	var b strings.Builder
	b.WriteString("Repository knowledge base. Use retrieve to fetch the passages closest to a question; ")
	b.WriteString("cite them as path#sequence.")
	if p.Answer != nil {
		b.WriteString(" Use ask for an answer synthesized from those passages.")
	}
	b.WriteString(" Read " + indexURI + " for the index schema and record count.")
	return b.String()
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("MCP server serving %s over stdio", s.ports.IndexName)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP server shutdown: %v", err)
		}
	}()

	logger.Debug("MCP server serving %s on %s", s.ports.IndexName, addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
