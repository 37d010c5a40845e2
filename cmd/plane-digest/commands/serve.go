package commands

import (
	"plane-digest/internal/mcp"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcp.NewServer(newRunner(cfg), Version).Serve(cmd.Context())
		},
	}
}
