package plane

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultPageSize  = 100
	maxResponseBytes = 32 << 20
)

type httpClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient returns the net/http backed Client.
func NewHTTPClient(cfg Config) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &httpClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *httpClient) ready() error {
	switch {
	case c == nil:
		return ErrNotInitialized
	case c.cfg.BaseURL == "":
		return fmt.Errorf("%w: missing base URL", ErrNotInitialized)
	case c.cfg.APIKey == "":
		return fmt.Errorf("%w: missing API key", ErrNotInitialized)
	case c.cfg.Workspace == "":
		return fmt.Errorf("%w: missing workspace slug", ErrNotInitialized)
	}
	return nil
}

func (c *httpClient) authenticateRequest(req *http.Request) {
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
}

func (c *httpClient) workspacePath(parts ...string) string {
	segs := append([]string{"api", "v1", "workspaces", url.PathEscape(c.cfg.Workspace)}, parts...)
	return "/" + strings.Join(segs, "/") + "/"
}

func (c *httpClient) projectPath(projectID string, parts ...string) string {
	return c.workspacePath(append([]string{"projects", url.PathEscape(projectID)}, parts...)...)
}

// getPage performs one GET against a list endpoint and normalises the body.
func (c *httpClient) getPage(ctx context.Context, op, path string, params url.Values, cursor string) (Page, error) {
	if err := c.ready(); err != nil {
		return Page{}, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("per_page", strconv.Itoa(c.cfg.PageSize))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.cfg.BaseURL, path, params.Encode())
	log.Debug().Str("op", op).Str("url", reqURL).Msg("Plane request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, &APIError{Op: op, Kind: ErrUpstream, Cause: err}
	}
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, &APIError{Op: op, Kind: ErrUpstream, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Page{}, errorForStatus(op, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Page{}, &APIError{Op: op, Kind: ErrUpstream, Cause: err}
	}

	page, err := NormalizePage(body)
	if err != nil {
		return Page{}, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

func listPage[T any](ctx context.Context, c *httpClient, op, path string, params url.Values, cursor string) ([]T, string, error) {
	page, err := c.getPage(ctx, op, path, params, cursor)
	if err != nil {
		return nil, "", err
	}
	items, err := DecodeItems[T](page.Items)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return items, page.NextCursor, nil
}

func (c *httpClient) ListProjects(ctx context.Context, cursor string) ([]ProjectDTO, string, error) {
	return listPage[ProjectDTO](ctx, c, "list projects", c.workspacePath("projects"), nil, cursor)
}

func (c *httpClient) ListWorkItems(ctx context.Context, projectID, cursor string) ([]WorkItemDTO, string, error) {
	params := url.Values{}
	params.Set("expand", "assignees,state")
	params.Set("order_by", "-updated_at")
	return listPage[WorkItemDTO](ctx, c, "list work items", c.projectPath(projectID, "issues"), params, cursor)
}

func (c *httpClient) ListActivities(ctx context.Context, projectID, itemID, cursor string) ([]ActivityDTO, string, error) {
	return listPage[ActivityDTO](ctx, c, "list activities", c.projectPath(projectID, "issues", url.PathEscape(itemID), "activities"), nil, cursor)
}

func (c *httpClient) ListComments(ctx context.Context, projectID, itemID, cursor string) ([]CommentDTO, string, error) {
	return listPage[CommentDTO](ctx, c, "list comments", c.projectPath(projectID, "issues", url.PathEscape(itemID), "comments"), nil, cursor)
}

func (c *httpClient) ListSubitems(ctx context.Context, projectID, itemID, cursor string) ([]WorkItemDTO, string, error) {
	params := url.Values{}
	params.Set("parent", itemID)
	params.Set("expand", "assignees,state")
	return listPage[WorkItemDTO](ctx, c, "list subitems", c.projectPath(projectID, "issues"), params, cursor)
}

func (c *httpClient) ListCycles(ctx context.Context, projectID, cursor string) ([]CycleDTO, string, error) {
	return listPage[CycleDTO](ctx, c, "list cycles", c.projectPath(projectID, "cycles"), nil, cursor)
}

func (c *httpClient) ListProjectMembers(ctx context.Context, projectID, cursor string) ([]UserDTO, string, error) {
	return listPage[UserDTO](ctx, c, "list project members", c.projectPath(projectID, "members"), nil, cursor)
}

func (c *httpClient) ListWorkspaceMembers(ctx context.Context, cursor string) ([]UserDTO, string, error) {
	return listPage[UserDTO](ctx, c, "list workspace members", c.workspacePath("members"), nil, cursor)
}
