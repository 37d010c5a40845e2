package mcp

import (
	"context"
	"time"

	"plane-digest/internal/report"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Reporter runs one reporting pass.
type Reporter interface {
	Run(ctx context.Context, req report.Request) (*report.Result, error)
}

// Server exposes reporting runs as MCP tools.
type Server struct {
	reporter Reporter
	version  string
	now      func() time.Time
}

// NewServer creates a new MCP server.
func NewServer(reporter Reporter, version string) *Server {
	return &Server{reporter: reporter, version: version, now: time.Now}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP() (*sdk.Server, error) {
	server := sdk.NewServer(&sdk.Implementation{Name: "plane-digest", Version: s.version}, nil)
	if err := s.registerTools(server); err != nil {
		return nil, err
	}
	return server, nil
}

// Serve runs the server over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	server, err := s.MCP()
	if err != nil {
		return err
	}
	log.Info().Str("version", s.version).Msg("Serving MCP over stdio")
	return server.Run(ctx, &sdk.StdioTransport{})
}
