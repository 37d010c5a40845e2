// Package summary groups activity records into per-person and per-project digests.
package summary

import (
	"slices"
	"sort"
	"time"

	"plane-digest/internal/activity"
	"plane-digest/internal/state"
)

// maxCommentRunes bounds the comment text carried into a summary.
const maxCommentRunes = 150

// WorkItemRef is a work item as it appears in a summary bucket.
type WorkItemRef struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Project   string            `json:"project" yaml:"project"`
	State     string            `json:"state,omitempty" yaml:"state,omitempty"`
	Relations map[string]string `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// CommentRef is a comment as it appears in a summary.
type CommentRef struct {
	WorkItem     string    `json:"workItem" yaml:"workItem"`
	WorkItemName string    `json:"workItemName" yaml:"workItemName"`
	Author       string    `json:"author" yaml:"author"`
	Text         string    `json:"text" yaml:"text"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// Classification buckets a set of records by the current state of their work items.
// Each work item lands in exactly one of Completed, InProgress and Todo.
type Classification struct {
	Completed     []WorkItemRef                `json:"completed" yaml:"completed"`
	InProgress    []WorkItemRef                `json:"inProgress" yaml:"inProgress"`
	Todo          []WorkItemRef                `json:"todo" yaml:"todo"`
	Comments      []CommentRef                 `json:"comments,omitempty" yaml:"comments,omitempty"`
	Relationships map[string]map[string]string `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// itemView is the latest known state of one work item.
type itemView struct {
	ref       WorkItemRef
	category  state.Category
	firstSeen int
}

// Classify buckets records by the latest state of each work item.
func Classify(records []activity.Record) Classification {
	return classify(records, latestStates(records))
}

// latestStates resolves each work item's state from its most recent record.
func latestStates(records []activity.Record) map[string]itemView {
	ordered := slices.Clone(records)
	activity.SortRecords(ordered)

	views := make(map[string]itemView)
	for i, r := range ordered {
		v, ok := views[r.WorkItemID]
		if !ok {
			v = itemView{
				ref:       WorkItemRef{ID: r.WorkItem, Name: r.WorkItemName, Project: r.Project},
				category:  state.Backlog,
				firstSeen: i,
			}
		}
		if s := r.DisplayState(); s != "" {
			v.ref.State = s
			v.category = state.Categorize(s)
		}
		if r.Relations != nil {
			v.ref.Relations = r.Relations
		}
		views[r.WorkItemID] = v
	}
	return views
}

// classify buckets the work items touched by records using views resolved over a
// possibly larger record set.
func classify(records []activity.Record, views map[string]itemView) Classification {
	var c Classification

	var touched []itemView
	seen := make(map[string]bool)
	for _, r := range records {
		if r.Kind == activity.KindComment && r.Comment != nil {
			c.Comments = append(c.Comments, CommentRef{
				WorkItem:     r.WorkItem,
				WorkItemName: r.WorkItemName,
				Author:       r.Actor,
				Text:         truncate(r.Comment.Text, maxCommentRunes),
				Timestamp:    r.Timestamp,
			})
		}
		if seen[r.WorkItemID] {
			continue
		}
		seen[r.WorkItemID] = true
		if v, ok := views[r.WorkItemID]; ok {
			touched = append(touched, v)
		}
	}

	sort.SliceStable(touched, func(i, j int) bool { return touched[i].firstSeen < touched[j].firstSeen })
	for _, v := range touched {
		switch v.category {
		case state.Completed:
			c.Completed = append(c.Completed, v.ref)
		case state.InProgress, state.Blocked:
			c.InProgress = append(c.InProgress, v.ref)
		default:
			c.Todo = append(c.Todo, v.ref)
		}
		if len(v.ref.Relations) > 0 {
			if c.Relationships == nil {
				c.Relationships = make(map[string]map[string]string)
			}
			c.Relationships[v.ref.ID] = v.ref.Relations
		}
	}

	sort.SliceStable(c.Comments, func(i, j int) bool { return c.Comments[i].Timestamp.Before(c.Comments[j].Timestamp) })
	return c
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
