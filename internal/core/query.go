package core

// TenantMember is the query member every tenant-scoping filter targets.
const TenantMember = "tenant_id"

type Filter struct {
	Member   string   `json:"member"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

type TimeDimension struct {
	Dimension   string   `json:"dimension"`
	Granularity string   `json:"granularity,omitempty"`
	DateRange   []string `json:"dateRange,omitempty"`
}

// SemanticQuery is the engine-agnostic analytics query shape exchanged with
// the external query-execution engine. It stays JSON-compatible with that
// engine's contract; the rewriter only ever appends to Filters.
type SemanticQuery struct {
	Measures       []string        `json:"measures"`
	Dimensions     []string        `json:"dimensions"`
	TimeDimensions []TimeDimension `json:"timeDimensions,omitempty"`
	Filters        []Filter        `json:"filters"`
	Limit          int             `json:"limit,omitempty"`
}

// Clone returns a deep copy so rewriting never mutates the caller's query.
func (q *SemanticQuery) Clone() *SemanticQuery {
	out := &SemanticQuery{
		Measures:   append([]string(nil), q.Measures...),
		Dimensions: append([]string(nil), q.Dimensions...),
		Limit:      q.Limit,
	}
	if q.TimeDimensions != nil {
		out.TimeDimensions = make([]TimeDimension, len(q.TimeDimensions))
		for i, td := range q.TimeDimensions {
			out.TimeDimensions[i] = TimeDimension{
				Dimension:   td.Dimension,
				Granularity: td.Granularity,
				DateRange:   append([]string(nil), td.DateRange...),
			}
		}
	}
	if q.Filters != nil {
		out.Filters = make([]Filter, len(q.Filters))
		for i, f := range q.Filters {
			out.Filters[i] = Filter{
				Member:   f.Member,
				Operator: f.Operator,
				Values:   append([]string(nil), f.Values...),
			}
		}
	}
	return out
}

// HasTenantFilter reports whether any filter already targets the
// tenant-scoping member.
func (q *SemanticQuery) HasTenantFilter() bool {
	for _, f := range q.Filters {
		if f.Member == TenantMember {
			return true
		}
	}
	return false
}
