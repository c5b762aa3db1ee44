package types

import (
	"bytes"
	"encoding/json"
)

// Field names double as request parameter names and meta keys.
type Field string

const (
	FieldTitle        Field = "rank_math_title"
	FieldDescription  Field = "rank_math_description"
	FieldCanonicalURL Field = "rank_math_canonical_url"
)

// Fields lists the managed fields in processing order.
var Fields = [...]Field{FieldTitle, FieldDescription, FieldCanonicalURL}

type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
)

// OptionalString distinguishes "not supplied" from "supplied as empty".
type OptionalString struct {
	Value string
	Set   bool
}

func Some(v string) OptionalString { return OptionalString{Value: v, Set: true} }

type FieldValues struct {
	Title        OptionalString
	Description  OptionalString
	CanonicalURL OptionalString
}

func (v FieldValues) Get(f Field) OptionalString {
	switch f {
	case FieldTitle:
		return v.Title
	case FieldDescription:
		return v.Description
	case FieldCanonicalURL:
		return v.CanonicalURL
	default:
		return OptionalString{}
	}
}

func (v *FieldValues) Set(f Field, value string) {
	switch f {
	case FieldTitle:
		v.Title = Some(value)
	case FieldDescription:
		v.Description = Some(value)
	case FieldCanonicalURL:
		v.CanonicalURL = Some(value)
	}
}

// Empty reports that no field was supplied at all.
func (v FieldValues) Empty() bool {
	return !v.Title.Set && !v.Description.Set && !v.CanonicalURL.Set
}

type UpdateRequest struct {
	ItemID int64
	Fields FieldValues
}

type FieldOutcome struct {
	Field   Field
	Outcome Outcome
}

// UpdateResult keeps outcomes in processing order; it encodes as a JSON
// object keyed by field name.
type UpdateResult struct {
	outcomes []FieldOutcome
}

func (r *UpdateResult) Record(f Field, o Outcome) {
	for i := range r.outcomes {
		if r.outcomes[i].Field == f {
			r.outcomes[i].Outcome = o
			return
		}
	}
	r.outcomes = append(r.outcomes, FieldOutcome{Field: f, Outcome: o})
}

func (r UpdateResult) Get(f Field) (Outcome, bool) {
	for _, fo := range r.outcomes {
		if fo.Field == f {
			return fo.Outcome, true
		}
	}
	return "", false
}

func (r UpdateResult) Len() int { return len(r.outcomes) }

func (r UpdateResult) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, fo := range r.outcomes {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(string(fo.Field))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(string(fo.Outcome))
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
