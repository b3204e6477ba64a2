package search

// FacetFilter is one exact-match (or, for date fields, day-range) filter.
type FacetFilter struct {
	Field string `json:"facetField"`
	Value string `json:"facetValue"`
}

// Query describes one search request. An empty QueryTerm matches all
// documents.
type Query struct {
	QueryTerm    string        `json:"queryTerm"`
	SortBy       string        `json:"sortBy"`
	FacetFields  []string      `json:"facetFields"`
	FacetFilters []FacetFilter `json:"facetFilters"`
	Start        int           `json:"start"`
	Rows         int           `json:"rows"`
}

// FacetValue is one (label, count) pair of a facet field.
type FacetValue struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FacetField groups the non-zero facet values of one field.
type FacetField struct {
	FieldName string       `json:"field_name"`
	Values    []FacetValue `json:"values"`
}

// Highlight carries the highlighted statement snippets for one document.
type Highlight struct {
	Statement []string `json:"statement,omitempty"`
}

// Document is the denormalized record the index hands back. It is a derived
// projection; the metadata store stays authoritative.
type Document struct {
	ID                string   `json:"id"`
	MediaID           string   `json:"media_id"`
	SegmentNr         int      `json:"segment_nr"`
	SpeakerID         string   `json:"speaker_id"`
	SpeakerName       string   `json:"speaker_name,omitempty"`
	SpeakerRoleTag    string   `json:"speaker_role_tag,omitempty"`
	Statement         []string `json:"statement"`
	StatementType     string   `json:"statement_type"`
	StatementLanguage string   `json:"statement_language,omitempty"`
	Start             float64  `json:"start"`
	End               float64  `json:"end"`
	DebateSession     string   `json:"debate_session,omitempty"`
	DebateType        string   `json:"debate_type,omitempty"`
	DebateSchedule    string   `json:"debate_schedule,omitempty"`
}

// Result is the reshaped search response.
type Result struct {
	Docs         []Document           `json:"docs"`
	Total        int                  `json:"total"`
	Facets       []FacetField         `json:"facets"`
	Highlighting map[string]Highlight `json:"highlighting"`
}
