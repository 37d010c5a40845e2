package activity

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags the variant of a Record.
type Kind string

const (
	// KindActivity is a field change from the work item's change log.
	KindActivity Kind = "activity"
	// KindComment is a comment posted on the work item.
	KindComment Kind = "comment"
	// KindSubitem is an update to one of the work item's children.
	KindSubitem Kind = "subitem"
	// KindSnapshot is synthesised for relevant items with nothing in the window.
	KindSnapshot Kind = "snapshot"
)

// Change is the payload of a KindActivity record.
type Change struct {
	Field    string `json:"field" yaml:"field"`
	OldValue string `json:"oldValue,omitempty" yaml:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty" yaml:"newValue,omitempty"`
}

// IsStateChange reports whether the change moved the item to another workflow state.
func (c Change) IsStateChange() bool {
	return strings.EqualFold(c.Field, "state")
}

// CommentBody is the payload of a KindComment record.
type CommentBody struct {
	Text string `json:"text" yaml:"text"`
}

// SubitemProgress is the payload of a KindSubitem record.
type SubitemProgress struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Name       string `json:"name" yaml:"name"`
	State      string `json:"state,omitempty" yaml:"state,omitempty"`
	Total      int    `json:"total" yaml:"total"`
	Completed  int    `json:"completed" yaml:"completed"`
}

// SnapshotState is the payload of a KindSnapshot record.
type SnapshotState struct {
	Assignees []string `json:"assignees,omitempty" yaml:"assignees,omitempty"`
	State     string   `json:"state,omitempty" yaml:"state,omitempty"`
	Priority  string   `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Record is one unit of activity on a work item. Exactly one payload pointer,
// the one matching Kind, is set.
type Record struct {
	Kind         Kind      `json:"kind" yaml:"kind"`
	WorkItemID   string    `json:"workItemId" yaml:"workItemId"`
	WorkItem     string    `json:"workItem" yaml:"workItem"`
	WorkItemName string    `json:"workItemName" yaml:"workItemName"`
	ProjectID    string    `json:"projectId" yaml:"projectId"`
	Project      string    `json:"project" yaml:"project"`
	Actor        string    `json:"actor,omitempty" yaml:"actor,omitempty"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`

	// ItemState is the work item's state when it was fetched.
	ItemState string `json:"itemState,omitempty" yaml:"itemState,omitempty"`
	// Relations holds the current value of each relationship field of the work item.
	Relations map[string]string `json:"relations,omitempty" yaml:"relations,omitempty"`

	Change   *Change          `json:"change,omitempty" yaml:"change,omitempty"`
	Comment  *CommentBody     `json:"comment,omitempty" yaml:"comment,omitempty"`
	Subitem  *SubitemProgress `json:"subitem,omitempty" yaml:"subitem,omitempty"`
	Snapshot *SnapshotState   `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

// DisplayState is the work item state this record vouches for: the new value of a
// state change, the snapshot state, or the item state observed at fetch time.
func (r Record) DisplayState() string {
	switch {
	case r.Change != nil && r.Change.IsStateChange():
		return r.Change.NewValue
	case r.Snapshot != nil:
		return r.Snapshot.State
	}
	return r.ItemState
}

// People returns the names this record should be attributed to: the actor, or the
// assignees for a snapshot.
func (r Record) People() []string {
	if r.Kind == KindSnapshot && r.Snapshot != nil {
		return r.Snapshot.Assignees
	}
	if r.Actor == "" {
		return nil
	}
	return []string{r.Actor}
}

// identity computes a unique string identifier for a record to aid deduplication.
func (r Record) identity() string {
	var detail string
	switch {
	case r.Change != nil:
		detail = r.Change.Field + "=" + r.Change.NewValue
	case r.Comment != nil:
		detail = r.Comment.Text
	case r.Subitem != nil:
		detail = r.Subitem.Identifier + "=" + r.Subitem.State
	}
	return fmt.Sprintf("%s|%s|%d|%s|%s", r.WorkItemID, r.Kind, r.Timestamp.UnixMicro(), r.Actor, detail)
}
