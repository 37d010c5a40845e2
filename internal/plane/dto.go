package plane

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ProjectDTO is a Plane project.
type ProjectDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	ArchivedAt string `json:"archived_at,omitempty"`
}

// WorkItemDTO is a Plane issue as returned by the issues endpoint with
// expand=assignees,state. Subitems use the same shape.
type WorkItemDTO struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	SequenceID int          `json:"sequence_id"`
	Project    string       `json:"project"`
	Parent     string       `json:"parent,omitempty"`
	Priority   string       `json:"priority"`
	State      StateRef     `json:"state"`
	Assignees  UserRefs     `json:"assignees"`
	CreatedAt  string       `json:"created_at"`
	UpdatedAt  string       `json:"updated_at"`
	CreatedBy  string       `json:"created_by"`
	UpdatedBy  string       `json:"updated_by"`
	Detail     *StateDetail `json:"state_detail,omitempty"`
}

// StateName returns the display name of the item's state, falling back to the legacy
// state_detail object some Plane versions still send.
func (w WorkItemDTO) StateName() string {
	if w.State.Name != "" {
		return w.State.Name
	}
	if w.Detail != nil {
		return w.Detail.Name
	}
	return ""
}

// StateGroup returns Plane's coarse state group (backlog, unstarted, started, completed, cancelled).
func (w WorkItemDTO) StateGroup() string {
	if w.State.Group != "" {
		return w.State.Group
	}
	if w.Detail != nil {
		return w.Detail.Group
	}
	return ""
}

// StateDetail is the expanded state object.
type StateDetail struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// StateRef accepts either a bare state id or an expanded state object.
type StateRef StateDetail

func (s *StateRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = StateRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*s = StateRef{ID: id}
		return nil
	}
	var detail StateDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return err
	}
	*s = StateRef(detail)
	return nil
}

// UserDTO is a workspace or project member. The project members endpoint nests the
// user under "member"; Normalize flattens that.
type UserDTO struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Member      *UserDTO `json:"member,omitempty"`
}

// Normalize returns the user record, unwrapping a nested member object.
func (u UserDTO) Normalize() UserDTO {
	if u.Member != nil {
		return u.Member.Normalize()
	}
	return u
}

// Label is the human-facing name: display name, then full name, then email local part.
func (u UserDTO) Label() string {
	u = u.Normalize()
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.ID
}

// UserRefs accepts a list of user ids or expanded user objects.
type UserRefs []UserDTO

func (r *UserRefs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(UserRefs, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var id string
			if err := json.Unmarshal(item, &id); err != nil {
				return err
			}
			out = append(out, UserDTO{ID: id})
			continue
		}
		var u UserDTO
		if err := json.Unmarshal(item, &u); err != nil {
			return err
		}
		out = append(out, u.Normalize())
	}
	*r = out
	return nil
}

// IDs returns the referenced user ids.
func (r UserRefs) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, u := range r {
		if u.ID != "" {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

// ActivityDTO is one entry in a work item's change log.
type ActivityDTO struct {
	ID          string   `json:"id"`
	CreatedAt   string   `json:"created_at"`
	Verb        string   `json:"verb"`
	Field       string   `json:"field"`
	OldValue    string   `json:"old_value"`
	NewValue    string   `json:"new_value"`
	Comment     string   `json:"comment"`
	Actor       string   `json:"actor"`
	ActorDetail *UserDTO `json:"actor_detail,omitempty"`
	Issue       string   `json:"issue"`
}

// CommentDTO is a comment on a work item.
type CommentDTO struct {
	ID              string   `json:"id"`
	CreatedAt       string   `json:"created_at"`
	CommentStripped string   `json:"comment_stripped"`
	CommentHTML     string   `json:"comment_html"`
	Actor           string   `json:"actor"`
	CreatedBy       string   `json:"created_by"`
	ActorDetail     *UserDTO `json:"actor_detail,omitempty"`
}

// AuthorID returns the commenting user's id.
func (c CommentDTO) AuthorID() string {
	if c.Actor != "" {
		return c.Actor
	}
	return c.CreatedBy
}

// CycleDTO is a Plane cycle (sprint) with its aggregate counters.
type CycleDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	TotalIssues     int    `json:"total_issues"`
	CompletedIssues int    `json:"completed_issues"`
	StartedIssues   int    `json:"started_issues"`
	UnstartedIssues int    `json:"unstarted_issues"`
	BacklogIssues   int    `json:"backlog_issues"`
	CancelledIssues int    `json:"cancelled_issues"`
}

// ParseTime parses Plane timestamps (RFC 3339 with optional fraction) and plain dates.
func ParseTime(s string) (time.Time, error) {
	if len(s) == len("2006-01-02") {
		return time.Parse(time.DateOnly, s)
	}
	return time.Parse(time.RFC3339Nano, s)
}
