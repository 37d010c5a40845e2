package summary

import (
	"sort"

	"plane-digest/internal/activity"
)

// PersonSummary is one person's share of a reporting window.
type PersonSummary struct {
	Name           string `json:"name" yaml:"name"`
	Classification `yaml:",inline"`
}

// Totals counts what a project summary covers.
type Totals struct {
	Records    int `json:"records" yaml:"records"`
	WorkItems  int `json:"workItems" yaml:"workItems"`
	Completed  int `json:"completed" yaml:"completed"`
	InProgress int `json:"inProgress" yaml:"inProgress"`
	Todo       int `json:"todo" yaml:"todo"`
	Comments   int `json:"comments" yaml:"comments"`
}

// ProjectSummary is one project's digest.
type ProjectSummary struct {
	Project string                   `json:"project" yaml:"project"`
	People  []PersonSummary          `json:"people" yaml:"people"`
	Cycles  []activity.CycleProgress `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Totals  Totals                   `json:"totals" yaml:"totals"`
}

// BuildPersonSummaries groups records by the people they are attributed to. Spelling
// variants of a name are merged; the first spelling seen is kept. A work item's bucket
// reflects its latest state across all records, not only the person's own.
func BuildPersonSummaries(records []activity.Record) []PersonSummary {
	return personSummaries(records, latestStates(records))
}

func personSummaries(records []activity.Record, views map[string]itemView) []PersonSummary {
	type group struct {
		name    string
		records []activity.Record
	}
	groups := make(map[string]*group)
	var order []string
	for _, r := range records {
		for _, name := range r.People() {
			key := activity.NormalizeName(name)
			if key == "" {
				continue
			}
			g, ok := groups[key]
			if !ok {
				g = &group{name: name}
				groups[key] = g
				order = append(order, key)
			}
			g.records = append(g.records, r)
		}
	}

	out := make([]PersonSummary, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, PersonSummary{Name: g.name, Classification: classify(g.records, views)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuildProjectSummaries splits records by project and summarises each, attaching the
// cycles keyed by project identifier.
func BuildProjectSummaries(records []activity.Record, cycles map[string][]activity.CycleProgress) []ProjectSummary {
	views := latestStates(records)

	byProject := make(map[string][]activity.Record)
	for _, r := range records {
		byProject[r.Project] = append(byProject[r.Project], r)
	}

	out := make([]ProjectSummary, 0, len(byProject))
	for project, recs := range byProject {
		all := classify(recs, views)
		out = append(out, ProjectSummary{
			Project: project,
			People:  personSummaries(recs, views),
			Cycles:  cycles[project],
			Totals: Totals{
				Records:    len(recs),
				WorkItems:  len(all.Completed) + len(all.InProgress) + len(all.Todo),
				Completed:  len(all.Completed),
				InProgress: len(all.InProgress),
				Todo:       len(all.Todo),
				Comments:   len(all.Comments),
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out
}
