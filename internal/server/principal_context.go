package server

import (
	"context"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
)

type principalContextKey struct{}

func withPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func currentPrincipal(ctx context.Context) (types.Principal, bool) {
	v := ctx.Value(principalContextKey{})
	if v == nil {
		return types.Principal{}, false
	}
	p, ok := v.(types.Principal)
	return p, ok
}

// principalOrAnonymous is the controller's view: no principal means anonymous.
func principalOrAnonymous(ctx context.Context) types.Principal {
	p, _ := currentPrincipal(ctx)
	return p
}
