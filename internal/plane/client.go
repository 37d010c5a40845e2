package plane

import (
	"context"
	"time"
)

// Client is the interface for interacting with the Plane REST API.
// Every list method returns one page plus the cursor of the next page ("" when done).
type Client interface {
	ListProjects(ctx context.Context, cursor string) ([]ProjectDTO, string, error)
	ListWorkItems(ctx context.Context, projectID, cursor string) ([]WorkItemDTO, string, error)
	ListActivities(ctx context.Context, projectID, itemID, cursor string) ([]ActivityDTO, string, error)
	ListComments(ctx context.Context, projectID, itemID, cursor string) ([]CommentDTO, string, error)
	ListSubitems(ctx context.Context, projectID, itemID, cursor string) ([]WorkItemDTO, string, error)
	ListCycles(ctx context.Context, projectID, cursor string) ([]CycleDTO, string, error)
	ListProjectMembers(ctx context.Context, projectID, cursor string) ([]UserDTO, string, error)
	ListWorkspaceMembers(ctx context.Context, cursor string) ([]UserDTO, string, error)
}

// Config holds the connection settings for Plane.
type Config struct {
	BaseURL   string
	APIKey    string
	Workspace string

	// Performance Settings
	Timeout  time.Duration
	PageSize int
}

// NewClient creates a new Plane client based on the provided configuration.
// A client built from an incomplete Config fails every call with ErrNotInitialized.
func NewClient(cfg Config) Client {
	return NewHTTPClient(cfg)
}
