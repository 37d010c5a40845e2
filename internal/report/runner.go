// Package report runs one reporting pass: it starts a cache session, collects
// activity for a window and builds the summaries shown to users.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plane-digest/internal/activity"
	"plane-digest/internal/cache"
	"plane-digest/internal/logging"
	"plane-digest/internal/summary"

	"github.com/rs/zerolog/log"
)

// NoActivityMessage is shown when a run finds nothing.
const NoActivityMessage = "No activity found for the selected period."

// Sessioner starts cache sessions.
type Sessioner interface {
	StartSession(scopeID string) cache.Session
}

// Collector produces activity records and the cycles around them.
type Collector interface {
	GetTeamActivities(ctx context.Context, q activity.Query) ([]activity.Record, error)
	ProjectCycles(ctx context.Context, records []activity.Record, w activity.Window) map[string][]activity.CycleProgress
}

// Request describes one run.
type Request struct {
	Window  activity.Window
	Project string
	Actor   string
	// Scope names the caller in the session token (a CLI invocation, an MCP tool).
	Scope string
	// WithCycles loads cycle progress for the projects in the result.
	WithCycles bool
}

// Result is everything a run produced.
type Result struct {
	Session  string                   `json:"session" yaml:"session"`
	Start    time.Time                `json:"start" yaml:"start"`
	End      time.Time                `json:"end" yaml:"end"`
	Records  []activity.Record        `json:"records,omitempty" yaml:"records,omitempty"`
	People   []summary.PersonSummary  `json:"people,omitempty" yaml:"people,omitempty"`
	Projects []summary.ProjectSummary `json:"projects,omitempty" yaml:"projects,omitempty"`
}

// Empty reports whether the run found no activity at all.
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}

// Runner executes reporting runs. Each run starts a fresh session so no cached
// upstream data from an earlier run is reused.
type Runner struct {
	sessions  Sessioner
	collector Collector
}

// NewRunner creates a Runner.
func NewRunner(sessions Sessioner, collector Collector) *Runner {
	return &Runner{sessions: sessions, collector: collector}
}

// Run collects and summarises activity for req.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	scope := req.Scope
	if scope == "" {
		scope = "report"
	}
	session := r.sessions.StartSession(scope)
	ctx = logging.WithSessionID(ctx, session.Token)

	started := time.Now()
	records, err := r.collector.GetTeamActivities(ctx, activity.Query{
		Window:  req.Window,
		Project: req.Project,
		Actor:   req.Actor,
	})
	if err != nil {
		return nil, fmt.Errorf("collect activities: %w", err)
	}

	res := &Result{
		Session: session.Token,
		Start:   req.Window.Start,
		End:     req.Window.End,
		Records: records,
		People:  summary.BuildPersonSummaries(records),
	}
	var cycles map[string][]activity.CycleProgress
	if req.WithCycles && len(records) > 0 {
		cycles = r.collector.ProjectCycles(ctx, records, req.Window)
	}
	res.Projects = summary.BuildProjectSummaries(records, cycles)

	log.Ctx(ctx).Info().
		Int("records", len(records)).
		Int("people", len(res.People)).
		Dur("elapsed", time.Since(started)).
		Msg("Report run finished")
	return res, nil
}

// ParseWindow parses the from/to bounds of a report. Both accept YYYY-MM-DD or
// RFC 3339. A date-only "to" covers that whole day. Empty bounds default to the
// last seven days ending now.
func ParseWindow(from, to string, now time.Time) (activity.Window, error) {
	var w activity.Window

	end := now
	if s := strings.TrimSpace(to); s != "" {
		t, dateOnly, err := parseBound(s, now.Location())
		if err != nil {
			return w, fmt.Errorf("invalid --to %q: %w", to, err)
		}
		end = t
		if dateOnly {
			end = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}

	start := end.AddDate(0, 0, -7)
	if s := strings.TrimSpace(from); s != "" {
		t, _, err := parseBound(s, now.Location())
		if err != nil {
			return w, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		start = t
	}

	if end.Before(start) {
		return w, fmt.Errorf("%w: %s is after %s", activity.ErrInvalidWindow, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return activity.Window{Start: start, End: end}, nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}
