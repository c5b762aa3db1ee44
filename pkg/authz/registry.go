package authz

import "strings"

const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
	RoleShopManager   = "shop-manager"
	RoleAnonymous     = "anonymous"
)

const (
	ActionEdit          = "edit"
	ActionEditOthers    = "edit_others"
	ActionEditPublished = "edit_published"
	ActionEditPrivate   = "edit_private"
	ActionDoNotAllow    = "do_not_allow"
)

const DomainGlobal = "global"

const (
	ObjectContentPosts    = "content.posts"
	ObjectContentProducts = "content.products"
)

// Capability is one primitive grant, e.g. edit_others_posts is
// {content.posts, edit_others}.
type Capability struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

// CapEditPosts is the coarse gate for every metadata write.
var CapEditPosts = Capability{Object: ObjectContentPosts, Action: ActionEdit}

func ObjectForKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "product":
		return ObjectContentProducts
	default:
		return ObjectContentPosts
	}
}

func (c Capability) String() string {
	plural := strings.TrimPrefix(c.Object, "content.")
	if c.Action == ActionDoNotAllow {
		return ActionDoNotAllow
	}
	return c.Action + "_" + plural
}
