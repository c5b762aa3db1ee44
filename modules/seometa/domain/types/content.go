package types

// DefaultEligibilityExpression is the CEL predicate that admits any item whose
// kind is currently eligible.
const DefaultEligibilityExpression = "item.kind in eligible_kinds"

const (
	KindPost    = "post"
	KindProduct = "product"
)

const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusPrivate = "private"
	StatusFuture  = "future"
	StatusTrash   = "trash"
)

type ContentItem struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	AuthorID int64  `json:"author_id"`
	Status   string `json:"status"`
}

// Principal is the authenticated caller. ID 0 is anonymous.
type Principal struct {
	ID     int64  `json:"id"`
	Login  string `json:"login"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func (p Principal) IsAnonymous() bool { return p.ID == 0 }
