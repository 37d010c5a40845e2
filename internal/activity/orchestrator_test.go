package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"plane-digest/internal/plane"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu sync.Mutex

	projects   []plane.ProjectDTO
	members    map[string][]plane.UserDTO
	items      map[string][]plane.WorkItemDTO
	activities map[string][]plane.ActivityDTO
	comments   map[string][]plane.CommentDTO
	subitems   map[string][]plane.WorkItemDTO
	cycles     map[string][]plane.CycleDTO
	users      map[string]string

	// failures keyed by "kind:id"
	errs  map[string]error
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		members:    map[string][]plane.UserDTO{},
		items:      map[string][]plane.WorkItemDTO{},
		activities: map[string][]plane.ActivityDTO{},
		comments:   map[string][]plane.CommentDTO{},
		subitems:   map[string][]plane.WorkItemDTO{},
		cycles:     map[string][]plane.CycleDTO{},
		users:      map[string]string{},
		errs:       map[string]error{},
		calls:      map[string]int{},
	}
}

func (f *fakeSource) hit(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	return f.errs[key]
}

func (f *fakeSource) Projects(context.Context) ([]plane.ProjectDTO, error) {
	return f.projects, f.hit("projects")
}

func (f *fakeSource) Members(_ context.Context, pid string) ([]plane.UserDTO, error) {
	return f.members[pid], f.hit("members:" + pid)
}

func (f *fakeSource) WorkItems(_ context.Context, pid string) ([]plane.WorkItemDTO, error) {
	return f.items[pid], f.hit("items:" + pid)
}

func (f *fakeSource) Activities(_ context.Context, _, iid string) ([]plane.ActivityDTO, error) {
	return f.activities[iid], f.hit("activities:" + iid)
}

func (f *fakeSource) Comments(_ context.Context, _, iid string) ([]plane.CommentDTO, error) {
	return f.comments[iid], f.hit("comments:" + iid)
}

func (f *fakeSource) Subitems(_ context.Context, _, iid string) ([]plane.WorkItemDTO, error) {
	return f.subitems[iid], f.hit("subitems:" + iid)
}

func (f *fakeSource) Cycles(_ context.Context, pid string) ([]plane.CycleDTO, error) {
	return f.cycles[pid], f.hit("cycles:" + pid)
}

func (f *fakeSource) PreloadAllUsers(context.Context) (map[string]string, error) {
	return f.users, f.hit("users")
}

var (
	windowStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 3, 8, 23, 59, 59, 0, time.UTC)
)

func ts(day, hour int) string {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func testQuery() Query {
	return Query{Window: Window{Start: windowStart, End: windowEnd}}
}

// seed builds one project "WEB" with two members and the given work items.
func seed(items ...plane.WorkItemDTO) *fakeSource {
	f := newFakeSource()
	f.projects = []plane.ProjectDTO{{ID: "p1", Name: "Website", Identifier: "WEB"}}
	f.users = map[string]string{
		"u1":   "Shruti Dhasmana",
		"u2":   "Ravi Kumar",
		"ubot": "Plane Bot",
	}
	f.members["p1"] = []plane.UserDTO{{ID: "u1"}, {ID: "u2"}, {ID: "ubot"}}
	f.items["p1"] = items
	return f
}

func item(id string, seq int, assignee string, created, updated string) plane.WorkItemDTO {
	wi := plane.WorkItemDTO{
		ID:         id,
		Name:       "Item " + id,
		SequenceID: seq,
		CreatedAt:  created,
		UpdatedAt:  updated,
		CreatedBy:  assignee,
		UpdatedBy:  assignee,
		Priority:   "medium",
		State:      plane.StateRef{ID: "s1", Name: "In Progress", Group: "started"},
	}
	if assignee != "" {
		wi.Assignees = plane.UserRefs{{ID: assignee}}
	}
	return wi
}

func newTestOrchestrator(src Source) *Orchestrator {
	return NewOrchestrator(src, plane.NewLimiter(2), Config{ProjectConcurrency: 2, IgnoredMembers: []string{"bot"}})
}

func TestGetTeamActivities_EmitsActivitiesAndComments(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(1, 9), ts(5, 10)))
	src.activities["i1"] = []plane.ActivityDTO{
		{ID: "a1", CreatedAt: ts(5, 10), Verb: "updated", Field: "state", OldValue: "Todo", NewValue: "In Progress", Actor: "u1"},
		{ID: "a2", CreatedAt: ts(1, 9), Verb: "created", Actor: "u1"},
		{ID: "a3", CreatedAt: ts(5, 11), Verb: "created", Field: "comment", Actor: "u1"},
	}
	src.comments["i1"] = []plane.CommentDTO{
		{ID: "c1", CreatedAt: ts(6, 8), CommentHTML: "<p>Looks <b>good</b></p>", Actor: "u2"},
	}

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, KindActivity, recs[0].Kind)
	assert.Equal(t, "WEB-1", recs[0].WorkItem)
	assert.Equal(t, "Shruti Dhasmana", recs[0].Actor)
	assert.Equal(t, "In Progress", recs[0].Change.NewValue)

	assert.Equal(t, KindComment, recs[1].Kind)
	assert.Equal(t, "Ravi Kumar", recs[1].Actor)
	assert.Equal(t, "Looks good", recs[1].Comment.Text)
}

func TestGetTeamActivities_CreatedVerbWithoutField(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(4, 9), ts(4, 9)))
	src.activities["i1"] = []plane.ActivityDTO{
		{ID: "a1", CreatedAt: ts(4, 9), Verb: "created", Actor: "u1"},
	}

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "created", recs[0].Change.Field)
}

func TestGetTeamActivities_SnapshotFallback(t *testing.T) {
	// updated in the window, but every activity predates it
	src := seed(item("i1", 7, "u1", ts(1, 9), ts(5, 10)))
	src.activities["i1"] = []plane.ActivityDTO{
		{ID: "a1", CreatedAt: ts(1, 9), Verb: "created", Actor: "u1"},
	}

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	snap := recs[0]
	assert.Equal(t, KindSnapshot, snap.Kind)
	assert.Equal(t, "WEB-7", snap.WorkItem)
	require.NotNil(t, snap.Snapshot)
	assert.Equal(t, []string{"Shruti Dhasmana"}, snap.Snapshot.Assignees)
	assert.Equal(t, "In Progress", snap.Snapshot.State)
	assert.Equal(t, "medium", snap.Snapshot.Priority)
}

func TestGetTeamActivities_SnapshotRespectsActorFilter(t *testing.T) {
	tests := []struct {
		name  string
		actor string
		want  int
	}{
		{name: "assignee matches", actor: "shruti.dhasmana", want: 1},
		{name: "assignee matches with spacing", actor: "Shruti  Dhasmana", want: 1},
		{name: "different person", actor: "Ravi Kumar", want: 0},
		{name: "partial name", actor: "Shruti D", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := seed(item("i1", 1, "u1", ts(1, 9), ts(5, 10)))
			q := testQuery()
			q.Actor = tt.actor

			recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), q)
			require.NoError(t, err)
			assert.Len(t, recs, tt.want)
		})
	}
}

func TestGetTeamActivities_ActorFilterOnActivities(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(1, 9), ts(5, 10)))
	src.activities["i1"] = []plane.ActivityDTO{
		{ID: "a1", CreatedAt: ts(5, 10), Field: "priority", NewValue: "high", Actor: "u2"},
		{ID: "a2", CreatedAt: ts(5, 11), Field: "state", NewValue: "Done", Actor: "u1"},
	}
	q := testQuery()
	q.Actor = "ravi_kumar"

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "priority", recs[0].Change.Field)
}

func TestGetTeamActivities_Prefilter(t *testing.T) {
	src := seed(
		// outside the window entirely
		item("old", 1, "u1", ts(1, 9), ts(2, 9)),
		// only the bot is involved
		item("bot", 2, "ubot", ts(5, 9), ts(5, 9)),
		// nobody from the project
		item("stranger", 3, "u9", ts(5, 9), ts(5, 9)),
		item("ok", 4, "u2", ts(5, 9), ts(5, 9)),
	)

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "WEB-4", recs[0].WorkItem)

	assert.Zero(t, src.calls["activities:old"])
	assert.Zero(t, src.calls["activities:bot"])
	assert.Zero(t, src.calls["activities:stranger"])
	assert.Equal(t, 1, src.calls["activities:ok"])
}

func TestGetTeamActivities_ItemFailureFallsBackToSnapshot(t *testing.T) {
	src := seed(
		item("i1", 1, "u1", ts(5, 9), ts(5, 9)),
		item("i2", 2, "u2", ts(5, 9), ts(6, 9)),
	)
	src.errs["comments:i1"] = fmt.Errorf("list comments: %w", plane.ErrUpstream)
	src.activities["i2"] = []plane.ActivityDTO{
		{ID: "a1", CreatedAt: ts(6, 9), Field: "state", NewValue: "Done", Actor: "u2"},
	}

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, KindSnapshot, recs[0].Kind)
	assert.Equal(t, "WEB-1", recs[0].WorkItem)
	assert.Equal(t, KindActivity, recs[1].Kind)
}

func TestGetTeamActivities_SkipsDeniedProject(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(5, 9), ts(5, 9)))
	src.projects = append(src.projects, plane.ProjectDTO{ID: "p2", Name: "Secret", Identifier: "SEC"})
	src.errs["members:p2"] = &plane.APIError{Op: "list members", Status: 403, Kind: plane.ErrAccessDenied}

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "WEB", recs[0].Project)
}

func TestGetTeamActivities_ProjectFailureFailsRun(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(5, 9), ts(5, 9)))
	src.errs["items:p1"] = fmt.Errorf("list work items: %w", plane.ErrUpstream)

	_, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, plane.ErrUpstream))
}

func TestGetTeamActivities_ProjectFilter(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(5, 9), ts(5, 9)))
	src.projects = append(src.projects,
		plane.ProjectDTO{ID: "p2", Name: "Mobile", Identifier: "MOB"},
		plane.ProjectDTO{ID: "p3", Name: "Legacy", Identifier: "OLD", ArchivedAt: "2023-01-01"},
	)

	o := newTestOrchestrator(src)

	q := testQuery()
	q.Project = "website"
	_, err := o.GetTeamActivities(context.Background(), q)
	require.NoError(t, err)
	assert.Zero(t, src.calls["members:p2"])

	q.Project = "nope"
	_, err = o.GetTeamActivities(context.Background(), q)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	q.Project = ""
	_, err = o.GetTeamActivities(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls["members:p2"])
	assert.Zero(t, src.calls["members:p3"], "archived projects are skipped when unfiltered")
}

func TestGetTeamActivities_InvalidWindow(t *testing.T) {
	q := Query{Window: Window{Start: windowEnd, End: windowStart}}
	_, err := newTestOrchestrator(seed()).GetTeamActivities(context.Background(), q)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestGetTeamActivities_RelationsAndSubitems(t *testing.T) {
	src := seed(item("i1", 1, "u1", ts(1, 9), ts(5, 9)))
	src.activities["i1"] = []plane.ActivityDTO{
		{ID: "a1", CreatedAt: ts(2, 9), Field: "blocked_by", NewValue: "WEB-9", Actor: "u1"},
		{ID: "a2", CreatedAt: ts(3, 9), Field: "blocked_by", NewValue: "", Actor: "u1"},
		{ID: "a3", CreatedAt: ts(3, 10), Field: "relates_to", NewValue: "WEB-3", Actor: "u1"},
	}
	src.subitems["i1"] = []plane.WorkItemDTO{
		{ID: "s1", Name: "Child one", SequenceID: 11, UpdatedAt: ts(5, 9), UpdatedBy: "u2",
			State: plane.StateRef{Name: "Done", Group: "completed"}},
		{ID: "s2", Name: "Child two", SequenceID: 12, UpdatedAt: ts(1, 9), UpdatedBy: "u2",
			State: plane.StateRef{Name: "Todo", Group: "unstarted"}},
	}

	recs, err := newTestOrchestrator(src).GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, KindSubitem, r.Kind)
	assert.Equal(t, map[string]string{"relates_to": "WEB-3"}, r.Relations)
	require.NotNil(t, r.Subitem)
	assert.Equal(t, "WEB-11", r.Subitem.Identifier)
	assert.Equal(t, 2, r.Subitem.Total)
	assert.Equal(t, 1, r.Subitem.Completed)
}

func TestProjectCycles(t *testing.T) {
	src := seed()
	src.cycles["p1"] = []plane.CycleDTO{
		{ID: "c1", Name: "Sprint 9", StartDate: "2024-02-19", EndDate: "2024-03-03"},
		{ID: "c2", Name: "Sprint 10", StartDate: "2024-03-04", EndDate: "2024-03-17", TotalIssues: 10, CompletedIssues: 4},
		{ID: "c3", Name: "Draft"},
	}
	src.errs["cycles:p2"] = errors.New("boom")

	records := []Record{
		{ProjectID: "p1", Project: "WEB"},
		{ProjectID: "p2", Project: "MOB"},
	}
	got := newTestOrchestrator(src).ProjectCycles(context.Background(), records, Window{Start: windowStart, End: windowEnd})

	require.Len(t, got, 1)
	require.Len(t, got["WEB"], 1)
	assert.Equal(t, "Sprint 10", got["WEB"][0].Name)
	assert.Equal(t, 4, got["WEB"][0].CompletedItems)
}

// slowSource delays activity fetches and tracks how many run at once.
type slowSource struct {
	*fakeSource
	delay         time.Duration
	current, peak atomic.Int32
}

func (s *slowSource) Activities(ctx context.Context, pid, iid string) ([]plane.ActivityDTO, error) {
	n := s.current.Add(1)
	defer s.current.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return s.fakeSource.Activities(ctx, pid, iid)
}

func TestGetTeamActivities_FanOutBoundedByLimiter(t *testing.T) {
	var items []plane.WorkItemDTO
	for i := 1; i <= 12; i++ {
		items = append(items, item(fmt.Sprintf("i%d", i), i, "u1", ts(1, 9), ts(5, 10)))
	}
	src := &slowSource{fakeSource: seed(items...), delay: 20 * time.Millisecond}
	limiter := plane.NewLimiter(2)
	o := NewOrchestrator(src, limiter, Config{ProjectConcurrency: 2, IgnoredMembers: []string{"bot"}})

	records, err := o.GetTeamActivities(context.Background(), testQuery())
	require.NoError(t, err)

	// one snapshot per item
	assert.Len(t, records, 12)
	assert.LessOrEqual(t, int(src.peak.Load()), limiter.Width())
	assert.Greater(t, int(src.peak.Load()), 1, "items should be fetched concurrently")
}
