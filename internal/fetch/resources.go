package fetch

import (
	"context"
	"fmt"

	"plane-digest/internal/plane"

	"github.com/rs/zerolog/log"
)

const workspaceKey = "workspace"

func itemKey(projectID, itemID string) string {
	return projectID + "/" + itemID
}

// Projects lists the workspace's projects.
func (s *Service) Projects(ctx context.Context) ([]plane.ProjectDTO, error) {
	return s.projects.GetOrFetch(ctx, workspaceKey, func(ctx context.Context) ([]plane.ProjectDTO, error) {
		return collect(ctx, s, "list projects", s.client.ListProjects)
	})
}

// WorkItems lists a project's work items.
func (s *Service) WorkItems(ctx context.Context, projectID string) ([]plane.WorkItemDTO, error) {
	return s.workItems.GetOrFetch(ctx, projectID, func(ctx context.Context) ([]plane.WorkItemDTO, error) {
		return collect(ctx, s, "list work items", func(ctx context.Context, cursor string) ([]plane.WorkItemDTO, string, error) {
			return s.client.ListWorkItems(ctx, projectID, cursor)
		})
	})
}

// Activities lists a work item's change log.
func (s *Service) Activities(ctx context.Context, projectID, itemID string) ([]plane.ActivityDTO, error) {
	return s.activities.GetOrFetch(ctx, itemKey(projectID, itemID), func(ctx context.Context) ([]plane.ActivityDTO, error) {
		return collect(ctx, s, "list activities", func(ctx context.Context, cursor string) ([]plane.ActivityDTO, string, error) {
			return s.client.ListActivities(ctx, projectID, itemID, cursor)
		})
	})
}

// Comments lists a work item's comments.
func (s *Service) Comments(ctx context.Context, projectID, itemID string) ([]plane.CommentDTO, error) {
	return s.comments.GetOrFetch(ctx, itemKey(projectID, itemID), func(ctx context.Context) ([]plane.CommentDTO, error) {
		return collect(ctx, s, "list comments", func(ctx context.Context, cursor string) ([]plane.CommentDTO, string, error) {
			return s.client.ListComments(ctx, projectID, itemID, cursor)
		})
	})
}

// Subitems lists the children of a work item.
func (s *Service) Subitems(ctx context.Context, projectID, itemID string) ([]plane.WorkItemDTO, error) {
	return s.subitems.GetOrFetch(ctx, itemKey(projectID, itemID), func(ctx context.Context) ([]plane.WorkItemDTO, error) {
		return collect(ctx, s, "list subitems", func(ctx context.Context, cursor string) ([]plane.WorkItemDTO, string, error) {
			return s.client.ListSubitems(ctx, projectID, itemID, cursor)
		})
	})
}

// Cycles lists a project's cycles.
func (s *Service) Cycles(ctx context.Context, projectID string) ([]plane.CycleDTO, error) {
	return s.cycles.GetOrFetch(ctx, projectID, func(ctx context.Context) ([]plane.CycleDTO, error) {
		return collect(ctx, s, "list cycles", func(ctx context.Context, cursor string) ([]plane.CycleDTO, string, error) {
			return s.client.ListCycles(ctx, projectID, cursor)
		})
	})
}

// Members lists a project's members, flattened to user records.
func (s *Service) Members(ctx context.Context, projectID string) ([]plane.UserDTO, error) {
	return s.members.GetOrFetch(ctx, projectID, func(ctx context.Context) ([]plane.UserDTO, error) {
		raw, err := collect(ctx, s, "list project members", func(ctx context.Context, cursor string) ([]plane.UserDTO, string, error) {
			return s.client.ListProjectMembers(ctx, projectID, cursor)
		})
		if err != nil {
			return nil, err
		}
		users := make([]plane.UserDTO, 0, len(raw))
		for _, u := range raw {
			users = append(users, u.Normalize())
		}
		return users, nil
	})
}

// PreloadAllUsers loads the workspace member directory (id -> display label) once
// per session. Plane has no single-user lookup, so names are always resolved from it.
func (s *Service) PreloadAllUsers(ctx context.Context) (map[string]string, error) {
	return s.users.GetOrFetch(ctx, workspaceKey, func(ctx context.Context) (map[string]string, error) {
		raw, err := collect(ctx, s, "list workspace members", s.client.ListWorkspaceMembers)
		if err != nil {
			return nil, fmt.Errorf("preload users: %w", err)
		}
		dir := make(map[string]string, len(raw))
		for _, u := range raw {
			u = u.Normalize()
			if u.ID != "" {
				dir[u.ID] = u.Label()
			}
		}
		log.Debug().Int("users", len(dir)).Msg("Preloaded workspace members")
		return dir, nil
	})
}

// UserName resolves a user id through the preloaded directory, falling back to the id.
func (s *Service) UserName(ctx context.Context, id string) (string, error) {
	dir, err := s.PreloadAllUsers(ctx)
	if err != nil {
		return "", err
	}
	if name, ok := dir[id]; ok {
		return name, nil
	}
	return id, nil
}
