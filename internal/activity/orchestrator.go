// Package activity turns a date window into a flat list of work-item activity records.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"plane-digest/internal/plane"
	"plane-digest/internal/state"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrProjectNotFound is returned when the project filter matches nothing.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidWindow is returned when the window ends before it starts.
	ErrInvalidWindow = errors.New("invalid date window")
)

// Source is the cached upstream the orchestrator reads from.
type Source interface {
	Projects(ctx context.Context) ([]plane.ProjectDTO, error)
	Members(ctx context.Context, projectID string) ([]plane.UserDTO, error)
	WorkItems(ctx context.Context, projectID string) ([]plane.WorkItemDTO, error)
	Activities(ctx context.Context, projectID, itemID string) ([]plane.ActivityDTO, error)
	Comments(ctx context.Context, projectID, itemID string) ([]plane.CommentDTO, error)
	Subitems(ctx context.Context, projectID, itemID string) ([]plane.WorkItemDTO, error)
	Cycles(ctx context.Context, projectID string) ([]plane.CycleDTO, error)
	PreloadAllUsers(ctx context.Context) (map[string]string, error)
}

// Query selects what GetTeamActivities returns. Project and Actor are optional.
type Query struct {
	Window
	Project string
	Actor   string
}

// Config tunes an Orchestrator.
type Config struct {
	// ProjectConcurrency bounds how many projects are scanned at once.
	ProjectConcurrency int
	// IgnoredMembers are case-insensitive substrings of member names that never make
	// a work item relevant (bots, integrations).
	IgnoredMembers []string
}

// Orchestrator fans per-work-item fetches out under a shared Limiter.
type Orchestrator struct {
	src     Source
	limiter *plane.Limiter
	cfg     Config
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(src Source, limiter *plane.Limiter, cfg Config) *Orchestrator {
	if cfg.ProjectConcurrency < 1 {
		cfg.ProjectConcurrency = 2
	}
	return &Orchestrator{src: src, limiter: limiter, cfg: cfg}
}

// GetTeamActivities returns every relevant record in the query window, ordered by
// timestamp. Items that failed to load or had nothing in the window appear as a
// single snapshot record.
func (o *Orchestrator) GetTeamActivities(ctx context.Context, q Query) ([]Record, error) {
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, q.End, q.Start)
	}

	users, err := o.src.PreloadAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	projects, err := o.resolveProjects(ctx, q.Project)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		records []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ProjectConcurrency)
	for _, p := range projects {
		g.Go(func() error {
			recs, err := o.projectRecords(gctx, p, q, users)
			if err != nil {
				if errors.Is(err, plane.ErrAccessDenied) {
					log.Ctx(ctx).Warn().Err(err).Str("project", p.Identifier).Msg("Skipping project without access")
					return nil
				}
				return fmt.Errorf("project %s: %w", p.Identifier, err)
			}
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortRecords(records)
	records = Dedupe(records)

	log.Ctx(ctx).Info().
		Int("projects", len(projects)).
		Int("records", len(records)).
		Int("concurrency", o.limiter.Width()).
		Time("start", q.Start).
		Time("end", q.End).
		Msg("Collected team activities")
	return records, nil
}

func (o *Orchestrator) resolveProjects(ctx context.Context, filter string) ([]plane.ProjectDTO, error) {
	projects, err := o.src.Projects(ctx)
	if err != nil {
		return nil, err
	}

	filter = strings.TrimSpace(filter)
	var out []plane.ProjectDTO
	for _, p := range projects {
		if filter == "" {
			if p.ArchivedAt == "" {
				out = append(out, p)
			}
			continue
		}
		if strings.EqualFold(p.Name, filter) || strings.EqualFold(p.Identifier, filter) {
			out = append(out, p)
		}
	}
	if filter != "" && len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, filter)
	}
	return out, nil
}

// projectRecords pre-filters a project's work items and fans out over the survivors.
func (o *Orchestrator) projectRecords(ctx context.Context, p plane.ProjectDTO, q Query, users map[string]string) ([]Record, error) {
	members, err := o.src.Members(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	items, err := o.src.WorkItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	memberIDs := make(map[string]bool, len(members))
	for _, m := range members {
		if containsAny(userLabel(m, users), o.cfg.IgnoredMembers) {
			continue
		}
		memberIDs[m.ID] = true
	}

	var tasks []Task
	for _, wi := range items {
		if touchedIn(wi, q.Window) && relevantTo(wi, memberIDs) {
			tasks = append(tasks, newTask(p, wi, users))
		}
	}
	log.Ctx(ctx).Debug().
		Str("project", p.Identifier).
		Int("items", len(items)).
		Int("tasks", len(tasks)).
		Msg("Pre-filtered work items")

	var (
		mu      sync.Mutex
		records []Record
	)
	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			return o.limiter.Do(ctx, func(ctx context.Context) error {
				recs := o.taskRecords(ctx, t, q, users)
				mu.Lock()
				records = append(records, recs...)
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// taskRecords fetches one work item's activities, comments and subitems concurrently.
// A fetch failure degrades to a snapshot instead of failing the run.
func (o *Orchestrator) taskRecords(ctx context.Context, t Task, q Query, users map[string]string) []Record {
	var (
		acts     []plane.ActivityDTO
		comments []plane.CommentDTO
		subs     []plane.WorkItemDTO
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		acts, err = o.src.Activities(gctx, t.ProjectID, t.WorkItemID)
		return err
	})
	g.Go(func() (err error) {
		comments, err = o.src.Comments(gctx, t.ProjectID, t.WorkItemID)
		return err
	})
	g.Go(func() (err error) {
		subs, err = o.src.Subitems(gctx, t.ProjectID, t.WorkItemID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("workItem", t.WorkItemIdentifier).Msg("Work item fetch failed, falling back to snapshot")
		if snap, ok := snapshot(t, q, nil); ok {
			return []Record{snap}
		}
		return nil
	}

	relations := CurrentRelations(acts)

	var records []Record
	records = append(records, changeRecords(t, acts, q, users, relations)...)
	records = append(records, commentRecords(t, comments, q, users, relations)...)
	records = append(records, subitemRecords(t, subs, q, users, relations)...)

	if len(records) == 0 {
		if snap, ok := snapshot(t, q, relations); ok {
			return []Record{snap}
		}
	}
	return records
}

func actorAllowed(q Query, actor string) bool {
	return q.Actor == "" || NamesMatch(q.Actor, actor)
}

func changeRecords(t Task, acts []plane.ActivityDTO, q Query, users map[string]string, relations map[string]string) []Record {
	var out []Record
	for _, a := range acts {
		field := a.Field
		switch {
		case strings.EqualFold(field, "comment"):
			// comments are read from their own endpoint
			continue
		case field == "" && strings.EqualFold(a.Verb, "created"):
			field = "created"
		case field == "":
			continue
		}

		ts, err := plane.ParseTime(a.CreatedAt)
		if err != nil || !q.Contains(ts) {
			continue
		}
		actor := resolveActor(a.Actor, a.ActorDetail, users)
		if !actorAllowed(q, actor) {
			continue
		}

		r := t.base(KindActivity)
		r.Actor = actor
		r.Timestamp = ts
		r.Relations = relations
		r.Change = &Change{Field: field, OldValue: a.OldValue, NewValue: a.NewValue}
		out = append(out, r)
	}
	return out
}

func commentRecords(t Task, comments []plane.CommentDTO, q Query, users map[string]string, relations map[string]string) []Record {
	var out []Record
	for _, c := range comments {
		ts, err := plane.ParseTime(c.CreatedAt)
		if err != nil || !q.Contains(ts) {
			continue
		}
		actor := resolveActor(c.AuthorID(), c.ActorDetail, users)
		if !actorAllowed(q, actor) {
			continue
		}

		text := strings.TrimSpace(c.CommentStripped)
		if text == "" {
			text = stripTags(c.CommentHTML)
		}

		r := t.base(KindComment)
		r.Actor = actor
		r.Timestamp = ts
		r.Relations = relations
		r.Comment = &CommentBody{Text: text}
		out = append(out, r)
	}
	return out
}

func subitemRecords(t Task, subs []plane.WorkItemDTO, q Query, users map[string]string, relations map[string]string) []Record {
	if len(subs) == 0 {
		return nil
	}
	completed := 0
	for _, s := range subs {
		if state.CategorizeGroup(s.StateGroup(), s.StateName()) == state.Completed {
			completed++
		}
	}

	var out []Record
	for _, s := range subs {
		ts, err := plane.ParseTime(s.UpdatedAt)
		if err != nil || !q.Contains(ts) {
			continue
		}
		actor := resolveActor(s.UpdatedBy, nil, users)
		if !actorAllowed(q, actor) {
			continue
		}

		r := t.base(KindSubitem)
		r.Actor = actor
		r.Timestamp = ts
		r.Relations = relations
		r.Subitem = &SubitemProgress{
			Identifier: fmt.Sprintf("%s-%d", t.ProjectIdentifier, s.SequenceID),
			Name:       s.Name,
			State:      s.StateName(),
			Total:      len(subs),
			Completed:  completed,
		}
		out = append(out, r)
	}
	return out
}

// snapshot builds the fallback record for an item, unless an actor filter is set and
// none of the item's assignees match it.
func snapshot(t Task, q Query, relations map[string]string) (Record, bool) {
	if q.Actor != "" && !MatchesAny(q.Actor, t.Assignees) {
		return Record{}, false
	}
	r := t.base(KindSnapshot)
	r.Timestamp = t.UpdatedAt
	r.Relations = relations
	r.Snapshot = &SnapshotState{
		Assignees: t.Assignees,
		State:     t.State,
		Priority:  t.Priority,
	}
	return r, true
}

// stripTags drops HTML tags from a comment body.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
