package summary

import (
	"strings"
	"testing"
	"time"

	"plane-digest/internal/activity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func stateChange(item, actor, to string, at time.Time) activity.Record {
	return activity.Record{
		Kind:         activity.KindActivity,
		WorkItemID:   "id-" + item,
		WorkItem:     item,
		WorkItemName: "Name " + item,
		Project:      strings.Split(item, "-")[0],
		Actor:        actor,
		Timestamp:    at,
		Change:       &activity.Change{Field: "state", NewValue: to},
	}
}

func comment(item, actor, text string, at time.Time) activity.Record {
	return activity.Record{
		Kind:         activity.KindComment,
		WorkItemID:   "id-" + item,
		WorkItem:     item,
		WorkItemName: "Name " + item,
		Project:      strings.Split(item, "-")[0],
		Actor:        actor,
		Timestamp:    at,
		Comment:      &activity.CommentBody{Text: text},
	}
}

func TestClassify_StatePatterns(t *testing.T) {
	tests := []struct {
		state  string
		bucket string
	}{
		{"In Review", "inProgress"},
		{"Closed", "completed"},
		{"Triage", "todo"},
		{"Blocked by vendor", "inProgress"},
		{"Todo", "todo"},
		{"Done", "completed"},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			c := Classify([]activity.Record{stateChange("WEB-1", "Ravi", tt.state, t0)})
			got := map[string]int{
				"completed":  len(c.Completed),
				"inProgress": len(c.InProgress),
				"todo":       len(c.Todo),
			}
			assert.Equal(t, 1, got[tt.bucket], "%+v", c)
			assert.Equal(t, 1, got["completed"]+got["inProgress"]+got["todo"])
		})
	}
}

func TestClassify_LatestWins(t *testing.T) {
	records := []activity.Record{
		stateChange("WEB-1", "Ravi", "Done", t0.Add(time.Hour)),
		stateChange("WEB-1", "Ravi", "Todo", t0),
	}
	c := Classify(records)
	require.Len(t, c.Completed, 1)
	assert.Empty(t, c.Todo)
	assert.Equal(t, "Done", c.Completed[0].State)
}

func TestClassify_CommentsTruncatedAndRelations(t *testing.T) {
	long := strings.Repeat("é", 200)
	rec := stateChange("WEB-2", "Ravi", "In Progress", t0)
	rec.Relations = map[string]string{"blocked_by": "WEB-9"}

	c := Classify([]activity.Record{rec, comment("WEB-2", "Ravi", long, t0.Add(time.Minute))})
	require.Len(t, c.Comments, 1)
	assert.Equal(t, maxCommentRunes+1, len([]rune(c.Comments[0].Text)))
	assert.True(t, strings.HasSuffix(c.Comments[0].Text, "…"))

	require.Len(t, c.InProgress, 1)
	assert.Equal(t, map[string]map[string]string{"WEB-2": {"blocked_by": "WEB-9"}}, c.Relationships)
}

func TestBuildPersonSummaries(t *testing.T) {
	records := []activity.Record{
		stateChange("WEB-1", "Shruti Dhasmana", "In Progress", t0),
		// someone else finishes it later; Shruti's view still shows it completed
		stateChange("WEB-1", "Ravi Kumar", "Done", t0.Add(2*time.Hour)),
		comment("WEB-3", "shruti.dhasmana", "lgtm", t0.Add(time.Hour)),
		{
			Kind:       activity.KindSnapshot,
			WorkItemID: "id-WEB-4",
			WorkItem:   "WEB-4",
			Project:    "WEB",
			Timestamp:  t0,
			Snapshot:   &activity.SnapshotState{Assignees: []string{"Ravi Kumar"}, State: "Backlog"},
		},
	}

	people := BuildPersonSummaries(records)
	require.Len(t, people, 2)

	assert.Equal(t, "Ravi Kumar", people[0].Name)
	assert.Len(t, people[0].Completed, 1)
	assert.Len(t, people[0].Todo, 1)

	assert.Equal(t, "Shruti Dhasmana", people[1].Name)
	require.Len(t, people[1].Completed, 1)
	assert.Equal(t, "WEB-1", people[1].Completed[0].ID)
	assert.Len(t, people[1].Comments, 1)
	// WEB-3 has no state at all
	assert.Len(t, people[1].Todo, 1)
}

func TestBuildProjectSummaries(t *testing.T) {
	records := []activity.Record{
		stateChange("WEB-1", "Ravi", "Done", t0),
		stateChange("MOB-1", "Ravi", "In Progress", t0),
		comment("MOB-1", "Ana", "on it", t0.Add(time.Minute)),
	}
	cycles := map[string][]activity.CycleProgress{
		"MOB": {{Name: "Sprint 4", TotalItems: 8, CompletedItems: 3}},
	}

	got := BuildProjectSummaries(records, cycles)
	require.Len(t, got, 2)

	assert.Equal(t, "MOB", got[0].Project)
	assert.Equal(t, Totals{Records: 2, WorkItems: 1, InProgress: 1, Comments: 1}, got[0].Totals)
	assert.Len(t, got[0].People, 2)
	assert.Equal(t, "Sprint 4", got[0].Cycles[0].Name)

	assert.Equal(t, "WEB", got[1].Project)
	assert.Equal(t, 1, got[1].Totals.Completed)
	assert.Empty(t, got[1].Cycles)
}
