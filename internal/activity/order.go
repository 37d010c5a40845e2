package activity

import (
	"sort"
)

// kindRank orders records that share a timestamp. Explicit changes outrank
// derived ones, so a state change wins a tie against a comment or snapshot.
var kindRank = map[Kind]int{
	KindSnapshot: 0,
	KindSubitem:  1,
	KindComment:  2,
	KindActivity: 3,
}

// SortRecords orders records by timestamp, then kind rank, then identity, so the
// result does not depend on the order concurrent fetches finished in.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		if ri, rj := kindRank[records[i].Kind], kindRank[records[j].Kind]; ri != rj {
			return ri < rj
		}
		return records[i].identity() < records[j].identity()
	})
}

// Dedupe drops records whose identity was already seen, keeping the first.
func Dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		id := r.identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}
