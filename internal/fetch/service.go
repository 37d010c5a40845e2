// Package fetch exposes cached, session-scoped accessors for Plane resources.
package fetch

import (
	"context"
	"time"

	"plane-digest/internal/cache"
	"plane-digest/internal/plane"

	"github.com/rs/zerolog/log"
)

// TTLs holds the per-resource cache lifetimes.
type TTLs struct {
	Projects   time.Duration
	Users      time.Duration
	Members    time.Duration
	WorkItems  time.Duration
	Activities time.Duration
	Comments   time.Duration
	Subitems   time.Duration
	Cycles     time.Duration
}

// DefaultTTLs keeps people and cycles longer than per-item data.
func DefaultTTLs() TTLs {
	return TTLs{
		Projects:   5 * time.Minute,
		Users:      30 * time.Minute,
		Members:    30 * time.Minute,
		WorkItems:  5 * time.Minute,
		Activities: 5 * time.Minute,
		Comments:   5 * time.Minute,
		Subitems:   5 * time.Minute,
		Cycles:     10 * time.Minute,
	}
}

// DefaultMaxPages caps how many pages a single list fetch follows.
const DefaultMaxPages = 50

// Options tunes a Service.
type Options struct {
	TTLs     TTLs
	MaxPages int
	// Clock overrides time.Now in every cache.
	Clock func() time.Time
}

// Service composes the Plane client, the retrying executor and one cache per resource.
type Service struct {
	client   plane.Client
	exec     *plane.Executor
	sessions *cache.Sessions
	maxPages int

	projects   *cache.Store[[]plane.ProjectDTO]
	users      *cache.Store[map[string]string]
	members    *cache.Store[[]plane.UserDTO]
	workItems  *cache.Store[[]plane.WorkItemDTO]
	activities *cache.Store[[]plane.ActivityDTO]
	comments   *cache.Store[[]plane.CommentDTO]
	subitems   *cache.Store[[]plane.WorkItemDTO]
	cycles     *cache.Store[[]plane.CycleDTO]
}

// NewService wires the caches. Zero-valued TTLs fall back to DefaultTTLs.
func NewService(client plane.Client, exec *plane.Executor, sessions *cache.Sessions, opts Options) *Service {
	ttls := withDefaults(opts.TTLs)
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	var storeOpts []cache.Option
	if opts.Clock != nil {
		storeOpts = append(storeOpts, cache.WithClock(opts.Clock))
	}

	s := &Service{
		client:   client,
		exec:     exec,
		sessions: sessions,
		maxPages: opts.MaxPages,

		projects:   cache.NewStore[[]plane.ProjectDTO]("projects", ttls.Projects, sessions, storeOpts...),
		users:      cache.NewStore[map[string]string]("users", ttls.Users, sessions, storeOpts...),
		members:    cache.NewStore[[]plane.UserDTO]("members", ttls.Members, sessions, storeOpts...),
		workItems:  cache.NewStore[[]plane.WorkItemDTO]("work_items", ttls.WorkItems, sessions, storeOpts...),
		activities: cache.NewStore[[]plane.ActivityDTO]("activities", ttls.Activities, sessions, storeOpts...),
		comments:   cache.NewStore[[]plane.CommentDTO]("comments", ttls.Comments, sessions, storeOpts...),
		subitems:   cache.NewStore[[]plane.WorkItemDTO]("subitems", ttls.Subitems, sessions, storeOpts...),
		cycles:     cache.NewStore[[]plane.CycleDTO]("cycles", ttls.Cycles, sessions, storeOpts...),
	}

	ev := log.Debug().Int("maxPages", s.maxPages).Int("maxAttempts", exec.Policy().MaxAttempts)
	for _, st := range []interface {
		Name() string
		TTL() time.Duration
	}{s.projects, s.users, s.members, s.workItems, s.activities, s.comments, s.subitems, s.cycles} {
		ev = ev.Dur(st.Name(), st.TTL())
	}
	ev.Msg("Configured fetch caches")
	return s
}

func withDefaults(t TTLs) TTLs {
	d := DefaultTTLs()
	pick := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	return TTLs{
		Projects:   pick(t.Projects, d.Projects),
		Users:      pick(t.Users, d.Users),
		Members:    pick(t.Members, d.Members),
		WorkItems:  pick(t.WorkItems, d.WorkItems),
		Activities: pick(t.Activities, d.Activities),
		Comments:   pick(t.Comments, d.Comments),
		Subitems:   pick(t.Subitems, d.Subitems),
		Cycles:     pick(t.Cycles, d.Cycles),
	}
}

// StartSession begins a new reporting run; everything cached before becomes a miss.
func (s *Service) StartSession(scopeID string) cache.Session {
	sess := s.sessions.Start(scopeID)
	log.Info().Str("session", sess.Token).Msg("Started fetch session")
	return sess
}

// ClearAll drops every cached resource.
func (s *Service) ClearAll() {
	s.projects.Clear()
	s.users.Clear()
	s.members.Clear()
	s.workItems.Clear()
	s.activities.Clear()
	s.comments.Clear()
	s.subitems.Clear()
	s.cycles.Clear()
}

// collect follows next-page cursors, running each page through the executor.
// Reaching maxPages is logged and the items gathered so far are returned.
func collect[T any](ctx context.Context, s *Service, op string, page func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	type pageResult struct {
		items []T
		next  string
	}

	var all []T
	cursor := ""
	for i := 0; i < s.maxPages; i++ {
		res, err := plane.Execute(ctx, s.exec, op, func(ctx context.Context) (pageResult, error) {
			items, next, err := page(ctx, cursor)
			return pageResult{items: items, next: next}, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, res.items...)
		if res.next == "" {
			return all, nil
		}
		cursor = res.next
	}

	log.Ctx(ctx).Warn().
		Err(plane.ErrPaginationExhausted).
		Str("op", op).
		Int("pages", s.maxPages).
		Int("items", len(all)).
		Msg("Pagination cap reached, returning partial result")
	return all, nil
}
