package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index over the Model Context Protocol",
	Long: `Start a Model Context Protocol server exposing the index to AI assistants.

Tools:
  retrieve   closest chunks for a query, with provenance
  ask        answer a question from the retrieved chunks

Resources:
  kimchi://index        index schema and record count
  kimchi://strategies   chunking strategy per extension

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead, e.g. for the MCP Inspector.

Examples:
  kimchi mcp
  kimchi mcp --port 8080`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(&mcp.Ports{
		Retrieval: a.Retrieval,
		Answer:    a.Answer,
		IndexName: a.Config.Index.Name,
		DefaultK:  a.Config.Retrieval.TopK,
	})
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		// stdout belongs to the protocol only in stdio mode
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
