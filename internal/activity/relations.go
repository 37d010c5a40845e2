package activity

import (
	"sort"
	"strings"

	"plane-digest/internal/plane"
)

// RelationFields are the activity fields that describe links between work items.
var RelationFields = []string{"relates_to", "blocked_by", "blocking", "duplicate", "parent"}

// CurrentRelations scans a work item's history newest-first and keeps the first
// value seen per relationship field. Fields whose latest change cleared them are
// left out.
func CurrentRelations(acts []plane.ActivityDTO) map[string]string {
	type dated struct {
		act plane.ActivityDTO
		ts  int64
	}

	history := make([]dated, 0, len(acts))
	for _, a := range acts {
		if !isRelationField(a.Field) {
			continue
		}
		ts, err := plane.ParseTime(a.CreatedAt)
		if err != nil {
			continue
		}
		history = append(history, dated{act: a, ts: ts.UnixMicro()})
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].ts > history[j].ts
	})

	seen := make(map[string]bool)
	relations := make(map[string]string)
	for _, h := range history {
		field := strings.ToLower(h.act.Field)
		if seen[field] {
			continue
		}
		seen[field] = true
		if v := strings.TrimSpace(h.act.NewValue); v != "" {
			relations[field] = v
		}
	}
	if len(relations) == 0 {
		return nil
	}
	return relations
}

func isRelationField(field string) bool {
	for _, f := range RelationFields {
		if strings.EqualFold(field, f) {
			return true
		}
	}
	return false
}
