package activity

import (
	"fmt"
	"time"

	"plane-digest/internal/plane"
)

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.IsZero() && !t.Before(w.Start) && !t.After(w.End)
}

// Overlaps reports whether [start, end] intersects the window.
func (w Window) Overlaps(start, end time.Time) bool {
	return !start.After(w.End) && !end.Before(w.Start)
}

// Task is a work item selected for fan-out, with everything the record builders need.
type Task struct {
	ProjectID          string
	ProjectIdentifier  string
	WorkItemID         string
	WorkItemIdentifier string
	WorkItemName       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Assignees          []string
	State              string
	Priority           string
}

func newTask(p plane.ProjectDTO, wi plane.WorkItemDTO, users map[string]string) Task {
	t := Task{
		ProjectID:          p.ID,
		ProjectIdentifier:  p.Identifier,
		WorkItemID:         wi.ID,
		WorkItemIdentifier: fmt.Sprintf("%s-%d", p.Identifier, wi.SequenceID),
		WorkItemName:       wi.Name,
		State:              wi.StateName(),
		Priority:           wi.Priority,
	}
	t.CreatedAt, _ = plane.ParseTime(wi.CreatedAt)
	t.UpdatedAt, _ = plane.ParseTime(wi.UpdatedAt)
	for _, a := range wi.Assignees {
		t.Assignees = append(t.Assignees, userLabel(a, users))
	}
	return t
}

// base returns a record of the given kind carrying the task's identity.
func (t Task) base(kind Kind) Record {
	return Record{
		Kind:         kind,
		WorkItemID:   t.WorkItemID,
		WorkItem:     t.WorkItemIdentifier,
		WorkItemName: t.WorkItemName,
		ProjectID:    t.ProjectID,
		Project:      t.ProjectIdentifier,
		ItemState:    t.State,
	}
}

// touchedIn reports whether the item was created or updated inside the window.
func touchedIn(wi plane.WorkItemDTO, w Window) bool {
	created, _ := plane.ParseTime(wi.CreatedAt)
	updated, _ := plane.ParseTime(wi.UpdatedAt)
	return w.Contains(created) || w.Contains(updated)
}

// relevantTo reports whether any assignee, the creator or the last updater is a member.
func relevantTo(wi plane.WorkItemDTO, members map[string]bool) bool {
	if members[wi.CreatedBy] || members[wi.UpdatedBy] {
		return true
	}
	for _, id := range wi.Assignees.IDs() {
		if members[id] {
			return true
		}
	}
	return false
}

// userLabel prefers the workspace directory over whatever the embedded object carries.
func userLabel(u plane.UserDTO, users map[string]string) string {
	if name, ok := users[u.ID]; ok {
		return name
	}
	return u.Label()
}

func resolveActor(id string, detail *plane.UserDTO, users map[string]string) string {
	if name, ok := users[id]; ok {
		return name
	}
	if detail != nil {
		return detail.Label()
	}
	return id
}
