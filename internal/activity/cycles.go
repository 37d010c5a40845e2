package activity

import (
	"context"
	"sort"

	"plane-digest/internal/plane"

	"github.com/rs/zerolog/log"
)

// CycleProgress is a sprint that overlaps the query window.
type CycleProgress struct {
	Name           string `json:"name" yaml:"name"`
	Start          string `json:"start,omitempty" yaml:"start,omitempty"`
	End            string `json:"end,omitempty" yaml:"end,omitempty"`
	TotalItems     int    `json:"totalItems" yaml:"totalItems"`
	CompletedItems int    `json:"completedItems" yaml:"completedItems"`
	StartedItems   int    `json:"startedItems" yaml:"startedItems"`
	UnstartedItems int    `json:"unstartedItems" yaml:"unstartedItems"`
	BacklogItems   int    `json:"backlogItems" yaml:"backlogItems"`
	CancelledItems int    `json:"cancelledItems" yaml:"cancelledItems"`
}

// ProjectCycles returns the cycles overlapping the window for every project present
// in records, keyed by project identifier. Projects whose cycles cannot be loaded are
// left out.
func (o *Orchestrator) ProjectCycles(ctx context.Context, records []Record, w Window) map[string][]CycleProgress {
	projects := make(map[string]string)
	for _, r := range records {
		projects[r.Project] = r.ProjectID
	}

	out := make(map[string][]CycleProgress, len(projects))
	for identifier, id := range projects {
		cycles, err := o.src.Cycles(ctx, id)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("project", identifier).Msg("Failed to load cycles")
			continue
		}
		var active []CycleProgress
		for _, c := range cycles {
			if !cycleOverlaps(c, w) {
				continue
			}
			active = append(active, CycleProgress{
				Name:           c.Name,
				Start:          c.StartDate,
				End:            c.EndDate,
				TotalItems:     c.TotalIssues,
				CompletedItems: c.CompletedIssues,
				StartedItems:   c.StartedIssues,
				UnstartedItems: c.UnstartedIssues,
				BacklogItems:   c.BacklogIssues,
				CancelledItems: c.CancelledIssues,
			})
		}
		sort.SliceStable(active, func(i, j int) bool { return active[i].Start < active[j].Start })
		if len(active) > 0 {
			out[identifier] = active
		}
	}
	return out
}

// cycleOverlaps treats a missing bound as open-ended. Cycles without dates are drafts
// and never overlap.
func cycleOverlaps(c plane.CycleDTO, w Window) bool {
	if c.StartDate == "" && c.EndDate == "" {
		return false
	}
	start, end := w.Start, w.End
	if c.StartDate != "" {
		t, err := plane.ParseTime(c.StartDate)
		if err != nil {
			return false
		}
		start = t
	}
	if c.EndDate != "" {
		t, err := plane.ParseTime(c.EndDate)
		if err != nil {
			return false
		}
		// date-only end dates cover the whole day
		if len(c.EndDate) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1).Add(-1)
		}
		end = t
	}
	return w.Overlaps(start, end)
}
