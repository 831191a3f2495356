package search

import (
	"fmt"
	"regexp"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/scalar"
)

// translator converts structured queries into bleve queries against one
// schema. Every unsupported or malformed construct is a *SearchError.
type translator struct {
	schema *Schema
}

// translate builds the bleve query for q: the filter and every text clause
// must all match.
func (t translator) translate(q Query) (query.Query, error) {
	var conjuncts []query.Query

	if q.Filter != nil {
		fq, err := t.filter(q.Filter)
		if err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, fq)
	}
	for i, clause := range q.Text {
		tq, err := t.text(clause)
		if err != nil {
			return nil, fmt.Errorf("text[%d]: %w", i, err)
		}
		conjuncts = append(conjuncts, tq)
	}

	switch len(conjuncts) {
	case 0:
		return bleve.NewMatchAllQuery(), nil
	case 1:
		return conjuncts[0], nil
	default:
		return bleve.NewConjunctionQuery(conjuncts...), nil
	}
}

func (t translator) filter(f Filter) (query.Query, error) {
	switch n := f.(type) {
	case All:
		return bleve.NewMatchAllQuery(), nil
	case And:
		qs, err := t.filters("and", n.Filters)
		if err != nil {
			return nil, err
		}
		return bleve.NewConjunctionQuery(qs...), nil
	case Or:
		qs, err := t.filters("or", n.Filters)
		if err != nil {
			return nil, err
		}
		return bleve.NewDisjunctionQuery(qs...), nil
	case Not:
		inner, err := t.filter(n.Filter)
		if err != nil {
			return nil, err
		}
		return negate(inner), nil
	case Eq:
		return t.eq(n.Field, n.Value)
	case In:
		if len(n.Values) == 0 {
			return nil, searchErrorf("in on %q needs at least one value", n.Field)
		}
		qs := make([]query.Query, len(n.Values))
		for i, v := range n.Values {
			q, err := t.eq(n.Field, v)
			if err != nil {
				return nil, err
			}
			qs[i] = q
		}
		return bleve.NewDisjunctionQuery(qs...), nil
	case Range:
		return t.rangeQuery(n)
	case IsNull:
		if _, err := t.field(n.Field); err != nil {
			return nil, err
		}
		return isNullQuery(n.Field), nil
	case Regex:
		field, err := t.field(n.Field)
		if err != nil {
			return nil, err
		}
		if field.Type.IsNumeric() || field.Type == registry.FieldBoolean {
			return nil, searchErrorf("regex is not supported on %s field %q", field.Type, field.Name)
		}
		pattern := normalizeKeyword(n.Pattern)
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, &SearchError{Message: fmt.Sprintf("invalid regex for %q", field.Name), Err: err}
		}
		// The engine keeps the leftmost-first match, so an alternation whose
		// first branch is a prefix of the term would never span all of it.
		rq := bleve.NewRegexpQuery("(?:" + pattern + ")$")
		rq.SetField(field.DocKey)
		return rq, nil
	default:
		return nil, searchErrorf("unsupported filter %T", f)
	}
}

func (t translator) filters(op string, fs []Filter) ([]query.Query, error) {
	if len(fs) == 0 {
		return nil, searchErrorf("%s needs at least one filter", op)
	}
	out := make([]query.Query, len(fs))
	for i, f := range fs {
		q, err := t.filter(f)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func (t translator) field(name string) (IndexedField, error) {
	f, ok := t.schema.Field(name)
	if !ok {
		return IndexedField{}, searchErrorf("unknown field %q on %s", name, t.schema.EntityType)
	}
	return f, nil
}

// eq targets the exact-match field, never the tokenized companion.
func (t translator) eq(name string, v scalar.Value) (query.Query, error) {
	field, err := t.field(name)
	if err != nil {
		return nil, err
	}
	if scalar.IsNull(v) {
		return isNullQuery(field.Name), nil
	}

	switch {
	case field.Type.IsNumeric():
		f, ok := scalar.AsFloat(v)
		if !ok {
			return nil, mismatch(field, v)
		}
		inclusive := true
		q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &inclusive, &inclusive)
		q.SetField(field.DocKey)
		return q, nil
	case field.Type == registry.FieldBoolean:
		b, ok := v.(scalar.Bool)
		if !ok {
			return nil, mismatch(field, v)
		}
		q := bleve.NewBoolFieldQuery(bool(b))
		q.SetField(field.DocKey)
		return q, nil
	default:
		s, ok := v.(scalar.String)
		if !ok {
			return nil, mismatch(field, v)
		}
		q := bleve.NewTermQuery(normalizeKeyword(string(s)))
		q.SetField(field.DocKey)
		return q, nil
	}
}

func (t translator) rangeQuery(r Range) (query.Query, error) {
	field, err := t.field(r.Field)
	if err != nil {
		return nil, err
	}
	if r.Gt != nil && r.Gte != nil {
		return nil, searchErrorf("range on %q sets both gt and gte", field.Name)
	}
	if r.Lt != nil && r.Lte != nil {
		return nil, searchErrorf("range on %q sets both lt and lte", field.Name)
	}

	lower, lowerInclusive := r.Gt, false
	if r.Gte != nil {
		lower, lowerInclusive = r.Gte, true
	}
	upper, upperInclusive := r.Lt, false
	if r.Lte != nil {
		upper, upperInclusive = r.Lte, true
	}
	if lower == nil && upper == nil {
		return nil, searchErrorf("range on %q needs at least one bound", field.Name)
	}

	switch {
	case field.Type.IsNumeric():
		var minp, maxp *float64
		if lower != nil {
			f, ok := scalar.AsFloat(lower)
			if !ok {
				return nil, mismatch(field, lower)
			}
			minp = &f
		}
		if upper != nil {
			f, ok := scalar.AsFloat(upper)
			if !ok {
				return nil, mismatch(field, upper)
			}
			maxp = &f
		}
		q := bleve.NewNumericRangeInclusiveQuery(minp, maxp, &lowerInclusive, &upperInclusive)
		q.SetField(field.DocKey)
		return q, nil
	case field.Type == registry.FieldBoolean:
		return nil, searchErrorf("range is not supported on Boolean field %q", field.Name)
	default:
		var minTerm, maxTerm string
		if lower != nil {
			s, ok := lower.(scalar.String)
			if !ok {
				return nil, mismatch(field, lower)
			}
			minTerm = normalizeKeyword(string(s))
		}
		if upper != nil {
			s, ok := upper.(scalar.String)
			if !ok {
				return nil, mismatch(field, upper)
			}
			maxTerm = normalizeKeyword(string(s))
		}
		q := bleve.NewTermRangeInclusiveQuery(minTerm, maxTerm, &lowerInclusive, &upperInclusive)
		q.SetField(field.DocKey)
		return q, nil
	}
}

// text matches normalized tokens against tokenized companion fields.
// A clause without tokens matches nothing.
func (t translator) text(clause TextClause) (query.Query, error) {
	var fields []IndexedField
	if len(clause.Fields) == 0 {
		fields = t.schema.TokenizedFields()
		if len(fields) == 0 {
			return nil, searchErrorf("%s has no full-text fields", t.schema.EntityType)
		}
	} else {
		for _, name := range clause.Fields {
			f, err := t.field(name)
			if err != nil {
				return nil, err
			}
			if f.TokenizedDocKey == "" {
				return nil, searchErrorf("field %q of type %s is not full-text searchable", f.Name, f.Type)
			}
			fields = append(fields, f)
		}
	}

	if clause.Operator != OperatorOr && clause.Operator != OperatorAnd {
		return nil, searchErrorf("unsupported text operator %q", clause.Operator)
	}

	tokens := Tokenize(clause.Value)
	if len(tokens) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}

	perToken := make([]query.Query, len(tokens))
	for i, token := range tokens {
		alternatives := make([]query.Query, len(fields))
		for j, f := range fields {
			tq := bleve.NewTermQuery(token)
			tq.SetField(f.TokenizedDocKey)
			alternatives[j] = tq
		}
		perToken[i] = bleve.NewDisjunctionQuery(alternatives...)
	}

	if clause.Operator == OperatorAnd {
		return bleve.NewConjunctionQuery(perToken...), nil
	}
	return bleve.NewDisjunctionQuery(perToken...), nil
}

func isNullQuery(field string) query.Query {
	q := bleve.NewTermQuery(field)
	q.SetField(nullField)
	return q
}

func negate(q query.Query) query.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMustNot(q)
	return bq
}

func mismatch(f IndexedField, v scalar.Value) *SearchError {
	return searchErrorf("%s field %q cannot be compared with a %s value", f.Type, f.Name, scalar.TypeName(v))
}
