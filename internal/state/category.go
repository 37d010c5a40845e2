// Package state buckets free-form workflow state names into coarse categories.
package state

import "strings"

// Category is the coarse bucket of a workflow state.
type Category string

const (
	// Completed covers finished work, including cancelled items.
	Completed Category = "completed"
	// Blocked is work waiting on something else.
	Blocked Category = "blocked"
	// InProgress is work someone has started, review included.
	InProgress Category = "inProgress"
	// Backlog is everything not yet started. Unknown names land here.
	Backlog Category = "backlog"
)

type rule struct {
	category Category
	keywords []string
}

// rules are checked in order; the first category with a matching keyword wins.
var rules = []rule{
	{Completed, []string{"done", "closed", "complete", "completed"}},
	{Blocked, []string{"block", "blocked", "blocking"}},
	{InProgress, []string{"progress", "review", "active", "working", "started"}},
	{Backlog, []string{"backlog", "todo", "open", "new"}},
}

// Categorize maps a state name to its category by case-insensitive substring match.
// Unrecognised names fall back to Backlog.
func Categorize(name string) Category {
	lower := strings.ToLower(name)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return Backlog
}

// CategorizeGroup prefers Plane's own state group and falls back to the name.
func CategorizeGroup(group, name string) Category {
	switch strings.ToLower(group) {
	case "completed", "cancelled":
		return Completed
	case "started":
		if Categorize(name) == Blocked {
			return Blocked
		}
		return InProgress
	case "backlog", "unstarted":
		return Backlog
	}
	return Categorize(name)
}
