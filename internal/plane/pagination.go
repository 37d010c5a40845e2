package plane

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Page is one normalised page of a list endpoint.
type Page struct {
	Items      []json.RawMessage
	NextCursor string
}

type envelope struct {
	Results         json.RawMessage `json:"results"`
	GroupedBy       *string         `json:"grouped_by"`
	NextCursor      string          `json:"next_cursor"`
	NextPageResults *bool           `json:"next_page_results"`
}

// NormalizePage flattens the three list shapes Plane returns: a bare array,
// a {results, next_cursor} envelope and a {grouped_by, results: {group: [...]}} envelope.
// Anything else is ErrParse.
func NormalizePage(body []byte) (Page, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Page{}, fmt.Errorf("%w: empty body", ErrParse)
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return Page{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return Page{Items: items}, nil
	case '{':
	default:
		return Page{}, fmt.Errorf("%w: unexpected leading byte %q", ErrParse, body[0])
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	results := bytes.TrimSpace(env.Results)
	if len(results) == 0 || bytes.Equal(results, []byte("null")) {
		return Page{}, fmt.Errorf("%w: object without results", ErrParse)
	}

	var page Page
	switch {
	case env.GroupedBy != nil:
		items, err := flattenGroups(results)
		if err != nil {
			return Page{}, err
		}
		page.Items = items
	case results[0] == '[':
		if err := json.Unmarshal(results, &page.Items); err != nil {
			return Page{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
	default:
		return Page{}, fmt.Errorf("%w: results is not a list", ErrParse)
	}

	if len(page.Items) > 0 && env.NextCursor != "" && (env.NextPageResults == nil || *env.NextPageResults) {
		page.NextCursor = env.NextCursor
	}
	return page, nil
}

// flattenGroups merges grouped results in group-key order. A group is either a list
// or an object carrying its own results list.
func flattenGroups(results []byte) ([]json.RawMessage, error) {
	var groups map[string]json.RawMessage
	if err := json.Unmarshal(results, &groups); err != nil {
		return nil, fmt.Errorf("%w: grouped results: %v", ErrParse, err)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items []json.RawMessage
	for _, k := range keys {
		group := bytes.TrimSpace(groups[k])
		if len(group) == 0 || bytes.Equal(group, []byte("null")) {
			continue
		}
		if group[0] == '{' {
			var nested struct {
				Results []json.RawMessage `json:"results"`
			}
			if err := json.Unmarshal(group, &nested); err != nil {
				return nil, fmt.Errorf("%w: group %q: %v", ErrParse, k, err)
			}
			items = append(items, nested.Results...)
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(group, &list); err != nil {
			return nil, fmt.Errorf("%w: group %q: %v", ErrParse, k, err)
		}
		items = append(items, list...)
	}
	return items, nil
}

// DecodeItems decodes raw page items into T.
func DecodeItems[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrParse, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
