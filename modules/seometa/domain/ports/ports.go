package ports

import (
	"context"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
)

// ContentStore reads items and reads/writes their metadata. GetMeta returns
// "" for an unset key. SetMeta reports false when nothing was written.
type ContentStore interface {
	GetItem(ctx context.Context, id int64) (types.ContentItem, bool, error)
	GetMeta(ctx context.Context, id int64, key string) (string, error)
	SetMeta(ctx context.Context, id int64, key string, value string) (bool, error)
}

// ItemPolicy maps a caller and an item to the primitive capabilities that
// must all be held to edit it.
type ItemPolicy interface {
	RequiredCapabilities(ctx context.Context, p types.Principal, item types.ContentItem) ([]authz.Capability, error)
}

// CapabilityChecker decides one capability for a subject. A decision that is
// not enforced passes even when it is not allowed.
type CapabilityChecker interface {
	Decide(subject string, domain string, c authz.Capability) (authz.Decision, error)
}

// CompanionFlags answers whether an optional companion module is active.
type CompanionFlags interface {
	Active(ctx context.Context, companion string) bool
}

type OutcomeObserver interface {
	ObserveField(field string, outcome string)
}
