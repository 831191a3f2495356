package search

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/devbridge/internal/scalar"
)

// Filter is a structured predicate over indexed fields.
//
// This is a sealed interface - only types in this package implement it.
// The marker method enables exhaustive type switches in the translator.
type Filter interface {
	filterNode()
}

// All matches every record.
type All struct{}

// And matches records matching every filter. Must not be empty.
type And struct{ Filters []Filter }

// Or matches records matching at least one filter. Must not be empty.
type Or struct{ Filters []Filter }

// Not matches records not matching Filter.
type Not struct{ Filter Filter }

// Eq matches records whose field equals Value exactly.
// A Null value is equivalent to IsNull.
type Eq struct {
	Field string
	Value scalar.Value
}

// In matches records whose field equals one of Values. Must not be empty.
type In struct {
	Field  string
	Values []scalar.Value
}

// Range matches records whose field lies within the given bounds.
// At least one bound is required; Gt/Gte and Lt/Lte are exclusive pairs.
type Range struct {
	Field string
	Gt    scalar.Value
	Gte   scalar.Value
	Lt    scalar.Value
	Lte   scalar.Value
}

// IsNull matches records whose field is null or absent.
type IsNull struct{ Field string }

// Regex matches records whose whole field value matches Pattern.
type Regex struct {
	Field   string
	Pattern string
}

func (All) filterNode()    {}
func (And) filterNode()    {}
func (Or) filterNode()     {}
func (Not) filterNode()    {}
func (Eq) filterNode()     {}
func (In) filterNode()     {}
func (Range) filterNode()  {}
func (IsNull) filterNode() {}
func (Regex) filterNode()  {}

// TextOperator combines the tokens of a text clause.
type TextOperator string

const (
	OperatorOr  TextOperator = "or"
	OperatorAnd TextOperator = "and"
)

// TextClause is a full-text match against tokenized fields.
// Empty Fields means every tokenized field of the entity.
type TextClause struct {
	Value    string       `json:"value"`
	Fields   []string     `json:"fields,omitempty"`
	Operator TextOperator `json:"operator,omitempty"`
}

// SortBy names the primary ordering key.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortOrdinal   SortBy = "ordinal"
)

// SortOrder is the direction of the primary ordering key.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Sort selects the hit ordering. The zero value is relevance, descending.
type Sort struct {
	By    SortBy    `json:"by,omitempty"`
	Order SortOrder `json:"order,omitempty"`
}

// Query is a structured search query. Filter nil means match all.
type Query struct {
	Filter Filter
	Text   []TextClause
	Sort   Sort
}

// UnmarshalJSON decodes {filter?, text?, sort?} and normalizes defaults.
func (q *Query) UnmarshalJSON(data []byte) error {
	var raw struct {
		Filter json.RawMessage `json:"filter"`
		Text   []TextClause    `json:"text"`
		Sort   *Sort           `json:"sort"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Query{Text: raw.Text}
	if len(raw.Filter) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Filter), []byte("null")) {
		f, err := ParseFilter(raw.Filter)
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		out.Filter = f
	}
	if raw.Sort != nil {
		out.Sort = *raw.Sort
	}
	for i := range out.Text {
		if out.Text[i].Operator == "" {
			out.Text[i].Operator = OperatorOr
		}
	}
	if out.Sort.By == "" {
		out.Sort.By = SortRelevance
	}
	if out.Sort.Order == "" {
		out.Sort.Order = defaultOrder(out.Sort.By)
	}

	*q = out
	return nil
}

func defaultOrder(by SortBy) SortOrder {
	if by == SortOrdinal {
		return OrderAsc
	}
	return OrderDesc
}

// ParseFilter decodes a filter object with exactly one operator key.
func ParseFilter(data []byte) (Filter, error) {
	var node map[string]json.RawMessage
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node) != 1 {
		return nil, fmt.Errorf("filter must have exactly one operator, got %d", len(node))
	}

	var op string
	var body json.RawMessage
	for k, v := range node {
		op, body = k, v
	}

	switch op {
	case "all":
		return All{}, nil
	case "and":
		fs, err := parseFilterList(body)
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}
		return And{Filters: fs}, nil
	case "or":
		fs, err := parseFilterList(body)
		if err != nil {
			return nil, fmt.Errorf("or: %w", err)
		}
		return Or{Filters: fs}, nil
	case "not":
		f, err := ParseFilter(body)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Filter: f}, nil
	case "eq":
		var raw struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("eq: %w", err)
		}
		v, err := scalar.Decode(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("eq: value: %w", err)
		}
		return Eq{Field: raw.Field, Value: v}, nil
	case "in":
		var raw struct {
			Field  string        `json:"field"`
			Values scalar.Values `json:"values"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("in: %w", err)
		}
		return In{Field: raw.Field, Values: raw.Values}, nil
	case "range":
		return parseRange(body)
	case "is_null":
		var raw struct {
			Field string `json:"field"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("is_null: %w", err)
		}
		return IsNull{Field: raw.Field}, nil
	case "regex":
		var raw struct {
			Field   string `json:"field"`
			Pattern string `json:"pattern"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("regex: %w", err)
		}
		return Regex{Field: raw.Field, Pattern: raw.Pattern}, nil
	default:
		return nil, fmt.Errorf("unsupported filter operator %q", op)
	}
}

func parseFilterList(data []byte) ([]Filter, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := make([]Filter, len(items))
	for i, item := range items {
		f, err := ParseFilter(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

func parseRange(data []byte) (Filter, error) {
	var raw struct {
		Field string          `json:"field"`
		Gt    json.RawMessage `json:"gt"`
		Gte   json.RawMessage `json:"gte"`
		Lt    json.RawMessage `json:"lt"`
		Lte   json.RawMessage `json:"lte"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}

	r := Range{Field: raw.Field}
	bounds := []struct {
		name string
		raw  json.RawMessage
		dst  *scalar.Value
	}{
		{"gt", raw.Gt, &r.Gt},
		{"gte", raw.Gte, &r.Gte},
		{"lt", raw.Lt, &r.Lt},
		{"lte", raw.Lte, &r.Lte},
	}
	for _, b := range bounds {
		if len(b.raw) == 0 {
			continue
		}
		v, err := scalar.Decode(b.raw)
		if err != nil {
			return nil, fmt.Errorf("range: %s: %w", b.name, err)
		}
		if !scalar.IsNull(v) {
			*b.dst = v
		}
	}
	return r, nil
}
