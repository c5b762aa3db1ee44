package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/ports"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
)

const CompanionWooCommerce = "woocommerce"

const DefaultEligibilityExpression = types.DefaultEligibilityExpression

// KindRegistry lists the base content kinds and the kinds each companion
// module contributes while active.
type KindRegistry struct {
	base       []string
	companions map[string][]string
	order      []string
}

func NewKindRegistry(base ...string) *KindRegistry {
	return &KindRegistry{base: slices.Clone(base), companions: map[string][]string{}}
}

func DefaultKindRegistry() *KindRegistry {
	return NewKindRegistry(types.KindPost).WithCompanion(CompanionWooCommerce, types.KindProduct)
}

func (r *KindRegistry) WithCompanion(name string, kinds ...string) *KindRegistry {
	if _, ok := r.companions[name]; !ok {
		r.order = append(r.order, name)
	}
	r.companions[name] = append(r.companions[name], kinds...)
	return r
}

// EligibleKinds returns base kinds plus those of every active companion.
func (r *KindRegistry) EligibleKinds(ctx context.Context, flags ports.CompanionFlags) []string {
	out := slices.Clone(r.base)
	if flags == nil {
		return out
	}
	for _, name := range r.order {
		if !flags.Active(ctx, name) {
			continue
		}
		for _, k := range r.companions[name] {
			if !slices.Contains(out, k) {
				out = append(out, k)
			}
		}
	}
	return out
}

var newEligibilityCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("eligible_kinds", cel.ListType(cel.StringType)),
	)
}

var eligibilityProgramCache sync.Map

// Eligibility decides whether an item may be targeted at all. The kind list
// is recomputed on every call so a companion toggled at runtime takes effect
// on the next request.
type Eligibility struct {
	program cel.Program
	kinds   *KindRegistry
	flags   ports.CompanionFlags
}

func NewEligibility(expr string, kinds *KindRegistry, flags ports.CompanionFlags) (*Eligibility, error) {
	if kinds == nil {
		kinds = DefaultKindRegistry()
	}
	program, err := loadOrCompileEligibilityProgram(expr)
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	return &Eligibility{program: program, kinds: kinds, flags: flags}, nil
}

func (e *Eligibility) EligibleKinds(ctx context.Context) []string {
	return e.kinds.EligibleKinds(ctx, e.flags)
}

func (e *Eligibility) Allows(ctx context.Context, item types.ContentItem) (bool, error) {
	out, _, err := e.program.ContextEval(ctx, map[string]any{
		"item": map[string]any{
			"id":        item.ID,
			"kind":      item.Kind,
			"status":    item.Status,
			"author_id": item.AuthorID,
		},
		"eligible_kinds": e.EligibleKinds(ctx),
	})
	if err != nil {
		return false, fmt.Errorf("eligibility: eval: %w", err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("eligibility: non-bool result")
	}
	return v, nil
}

func loadOrCompileEligibilityProgram(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := eligibilityProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newEligibilityCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	eligibilityProgramCache.Store(expr, program)
	return program, nil
}
