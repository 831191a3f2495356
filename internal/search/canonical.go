package search

import (
	"github.com/roach88/devbridge/internal/scalar"
)

// Fingerprint identifies a query for cursor validation. Two requests share
// a fingerprint iff they address the same entity type with structurally
// equal queries after default normalization.
func Fingerprint(entityType string, q Query) (string, error) {
	return scalar.Fingerprint(scalar.DomainSearchQuery, map[string]any{
		"entity_type": entityType,
		"query":       canonicalQuery(q),
	})
}

func canonicalQuery(q Query) map[string]any {
	text := make([]any, len(q.Text))
	for i, clause := range q.Text {
		fields := make([]any, len(clause.Fields))
		for j, f := range clause.Fields {
			fields[j] = f
		}
		text[i] = map[string]any{
			"value":    clause.Value,
			"fields":   fields,
			"operator": string(clause.Operator),
		}
	}

	out := map[string]any{
		"text": text,
		"sort": map[string]any{"by": string(q.Sort.By), "order": string(q.Sort.Order)},
	}
	if q.Filter != nil {
		out["filter"] = canonicalFilter(q.Filter)
	}
	return out
}

func canonicalFilter(f Filter) any {
	switch n := f.(type) {
	case All:
		return map[string]any{"all": map[string]any{}}
	case And:
		return map[string]any{"and": canonicalFilters(n.Filters)}
	case Or:
		return map[string]any{"or": canonicalFilters(n.Filters)}
	case Not:
		return map[string]any{"not": canonicalFilter(n.Filter)}
	case Eq:
		return map[string]any{"eq": map[string]any{"field": n.Field, "value": n.Value}}
	case In:
		return map[string]any{"in": map[string]any{"field": n.Field, "values": n.Values}}
	case Range:
		body := map[string]any{"field": n.Field}
		for name, v := range map[string]scalar.Value{"gt": n.Gt, "gte": n.Gte, "lt": n.Lt, "lte": n.Lte} {
			if v != nil {
				body[name] = v
			}
		}
		return map[string]any{"range": body}
	case IsNull:
		return map[string]any{"is_null": map[string]any{"field": n.Field}}
	case Regex:
		return map[string]any{"regex": map[string]any{"field": n.Field, "pattern": n.Pattern}}
	default:
		return nil
	}
}

func canonicalFilters(fs []Filter) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = canonicalFilter(f)
	}
	return out
}
