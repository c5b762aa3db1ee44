// Package policy evaluates the rego policy that maps "edit this item" to the
// primitive capabilities the caller must hold.
package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed item.rego
var defaultItemPolicy string

const requiredQuery = "data.seometa.item.required"

type ItemPolicy struct {
	query rego.PreparedEvalQuery
}

// NewItemPolicy prepares the policy at path, or the built-in policy when
// path is empty.
func NewItemPolicy(ctx context.Context, path string) (*ItemPolicy, error) {
	name, src := "item.rego", defaultItemPolicy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("policy: read %s: %w", path, err)
		}
		name, src = path, string(b)
	}
	return newItemPolicyFromSource(ctx, name, src)
}

func newItemPolicyFromSource(ctx context.Context, name, src string) (*ItemPolicy, error) {
	q, err := rego.New(
		rego.Query(requiredQuery),
		rego.Module(name, src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare: %w", err)
	}
	return &ItemPolicy{query: q}, nil
}

func (p *ItemPolicy) RequiredCapabilities(ctx context.Context, principal types.Principal, item types.ContentItem) ([]authz.Capability, error) {
	input := map[string]any{
		"principal": map[string]any{
			"id":   principal.ID,
			"role": principal.Role,
		},
		"item": map[string]any{
			"id":        item.ID,
			"kind":      item.Kind,
			"author_id": item.AuthorID,
			"status":    item.Status,
		},
		"object": authz.ObjectForKind(item.Kind),
	}
	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy: eval: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}
	return decodeCapabilities(rs[0].Expressions[0].Value)
}

func decodeCapabilities(v any) ([]authz.Capability, error) {
	elems, ok := v.([]any)
	if !ok {
		return nil, errors.New("policy: required is not a set")
	}
	out := make([]authz.Capability, 0, len(elems))
	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, errors.New("policy: capability is not an object")
		}
		obj, _ := m["object"].(string)
		act, _ := m["action"].(string)
		if obj == "" || act == "" {
			return nil, errors.New("policy: capability missing object or action")
		}
		out = append(out, authz.Capability{Object: obj, Action: act})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Object != out[j].Object {
			return out[i].Object < out[j].Object
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}
