package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Search runs a faceted query. An empty query term matches everything;
// highlighting is only enabled for a real term.
func (c *Client) Search(ctx context.Context, query Query) (*Result, error) {
	params := url.Values{}
	params.Set("df", "statement")
	params.Set("hl.fragsize", "0")

	term := query.QueryTerm
	if term == "" {
		term = "*:*"
		params.Set("hl", "false")
	} else {
		params.Set("hl", "true")
	}
	params.Set("q", term)

	if len(query.FacetFields) > 0 {
		params.Set("facet", "true")
		for _, field := range query.FacetFields {
			params.Add("facet.field", field)
		}
	}

	for _, fq := range buildFilters(query.FacetFilters) {
		params.Add("fq", fq)
	}

	if query.SortBy != "" {
		params.Set("sort", query.SortBy)
	}

	rows := query.Rows
	if rows <= 0 {
		rows = 10
	}
	params.Set("rows", strconv.Itoa(rows))
	params.Set("start", strconv.Itoa(query.Start))

	resp, err := c.doSelect(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Docs:         resp.Response.Docs,
		Total:        resp.Response.NumFound,
		Facets:       reshapeFacets(resp.FacetCounts.FacetFields),
		Highlighting: resp.Highlighting,
	}
	if result.Docs == nil {
		result.Docs = []Document{}
	}
	if result.Highlighting == nil {
		result.Highlighting = map[string]Highlight{}
	}
	return result, nil
}

// buildFilters renders facet filters as Solr fq clauses. Date-like fields
// expand a date-only value into the full day's inclusive range.
func buildFilters(filters []FacetFilter) []string {
	queries := make([]string, 0, len(filters))
	for _, f := range filters {
		if isDateField(f.Field) && len(f.Value) >= 10 {
			day := f.Value[:10]
			queries = append(queries, fmt.Sprintf("%s:[%sT00:00:00Z TO %sT23:59:59Z]", f.Field, day, day))
			continue
		}
		queries = append(queries, fmt.Sprintf("%s:%q", f.Field, f.Value))
	}
	return queries
}

func isDateField(field string) bool {
	return field == "debate_schedule" || strings.HasSuffix(field, "_date")
}

// reshapeFacets turns Solr's flat [label, count, label, count, ...] lists
// into per-field value lists, dropping zero counts and empty fields.
func reshapeFacets(raw map[string][]json.RawMessage) []FacetField {
	facets := make([]FacetField, 0, len(raw))
	for field, flat := range raw {
		values := make([]FacetValue, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			var label string
			if err := json.Unmarshal(flat[i], &label); err != nil {
				// numeric facet labels arrive unquoted
				label = string(flat[i])
			}
			var count int
			if err := json.Unmarshal(flat[i+1], &count); err != nil {
				continue
			}
			if count > 0 {
				values = append(values, FacetValue{Label: label, Count: count})
			}
		}
		if len(values) > 0 {
			facets = append(facets, FacetField{FieldName: field, Values: values})
		}
	}
	sort.Slice(facets, func(i, j int) bool {
		return facets[i].FieldName < facets[j].FieldName
	})
	return facets
}
