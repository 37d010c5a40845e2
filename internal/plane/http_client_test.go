package plane_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"plane-digest/internal/plane"
	"plane-digest/internal/plane/planetest"
)

func TestHTTPClient_ListProjectsFollowsCursor(t *testing.T) {
	srv := planetest.NewServer("acme", "key")
	defer srv.Close()
	srv.PageSize = 2
	srv.Projects = []plane.ProjectDTO{
		{ID: "p1", Name: "Web", Identifier: "WEB"},
		{ID: "p2", Name: "Mobile", Identifier: "MOB"},
		{ID: "p3", Name: "Infra", Identifier: "INF"},
	}

	client := plane.NewClient(srv.Config())
	ctx := context.Background()

	first, cursor, err := client.ListProjects(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || cursor == "" {
		t.Fatalf("expected 2 items and a cursor, got %d items, cursor %q", len(first), cursor)
	}

	second, cursor, err := client.ListProjects(ctx, cursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 || cursor != "" {
		t.Fatalf("expected final page of 1, got %d items, cursor %q", len(second), cursor)
	}
	if second[0].Identifier != "INF" {
		t.Errorf("unexpected project: %+v", second[0])
	}
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	srv := planetest.NewServer("acme", "key")
	defer srv.Close()
	client := plane.NewClient(srv.Config())

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, plane.ErrRateLimited},
		{http.StatusForbidden, plane.ErrAccessDenied},
		{http.StatusInternalServerError, plane.ErrUpstream},
		{http.StatusNotFound, plane.ErrUpstream},
	}

	for _, tt := range tests {
		srv.FailNext("projects", tt.status)
		_, _, err := client.ListProjects(context.Background(), "")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		var apiErr *plane.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
			t.Errorf("status %d: expected APIError with status, got %v", tt.status, err)
		}
	}
}

func TestHTTPClient_RetryAfterHint(t *testing.T) {
	srv := planetest.NewServer("acme", "key")
	defer srv.Close()
	client := plane.NewClient(srv.Config())

	srv.FailNext("projects", http.StatusTooManyRequests)
	_, _, err := client.ListProjects(context.Background(), "")

	d, ok := plane.RetryAfterHint(err)
	if !ok || d != 0 {
		t.Errorf("expected a zero Retry-After hint, got %v, %v", d, ok)
	}
}

func TestHTTPClient_NotInitialized(t *testing.T) {
	client := plane.NewClient(plane.Config{BaseURL: "http://localhost"})
	_, _, err := client.ListProjects(context.Background(), "")
	if !errors.Is(err, plane.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestHTTPClient_WrongKeyIsAccessDenied(t *testing.T) {
	srv := planetest.NewServer("acme", "key")
	defer srv.Close()
	cfg := srv.Config()
	cfg.APIKey = "wrong"

	_, _, err := plane.NewClient(cfg).ListProjects(context.Background(), "")
	if !errors.Is(err, plane.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

func TestHTTPClient_SubitemsByParent(t *testing.T) {
	srv := planetest.NewServer("acme", "key")
	defer srv.Close()
	srv.WorkItems["p1"] = []plane.WorkItemDTO{
		{ID: "i1", Name: "Parent"},
		{ID: "i2", Name: "Child", Parent: "i1"},
		{ID: "i3", Name: "Other child", Parent: "i9"},
	}

	subs, _, err := plane.NewClient(srv.Config()).ListSubitems(context.Background(), "p1", "i1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "i2" {
		t.Errorf("expected only i2, got %+v", subs)
	}
	if srv.Hits("subitems:i1") != 1 {
		t.Errorf("expected one subitems request, got %d", srv.Hits("subitems:i1"))
	}
}
