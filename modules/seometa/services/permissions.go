package services

import (
	"context"
	"fmt"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/ports"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"go.uber.org/zap"
)

// Permissions answers the coarse and the per-item edit questions.
type Permissions struct {
	policy ports.ItemPolicy
	caps   ports.CapabilityChecker
	domain string
}

func NewPermissions(policy ports.ItemPolicy, caps ports.CapabilityChecker, site string) Permissions {
	return Permissions{policy: policy, caps: caps, domain: authz.DomainFromSite(site)}
}

func (p Permissions) CanEditPosts(ctx context.Context, principal types.Principal) (bool, error) {
	return p.check(ctx, authz.SubjectFromRoleSlug(roleOf(principal)), authz.CapEditPosts)
}

// CanEditItem holds only when every capability the item policy requires is
// granted.
func (p Permissions) CanEditItem(ctx context.Context, principal types.Principal, item types.ContentItem) (bool, error) {
	required, err := p.policy.RequiredCapabilities(ctx, principal, item)
	if err != nil {
		return false, fmt.Errorf("item policy: %w", err)
	}
	if len(required) == 0 {
		return false, nil
	}
	subject := authz.SubjectFromRoleSlug(roleOf(principal))
	for _, c := range required {
		ok, err := p.check(ctx, subject, c)
		if err != nil {
			return false, fmt.Errorf("capability %s: %w", c, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// check passes unenforced decisions and logs the ones the policy would deny.
func (p Permissions) check(ctx context.Context, subject string, c authz.Capability) (bool, error) {
	d, err := p.caps.Decide(subject, p.domain, c)
	if err != nil {
		return false, err
	}
	if !d.Allowed && !d.Enforced {
		logger.FromContext(ctx, nil).Warn("authz shadow deny",
			zap.String("subject", subject),
			zap.String("domain", p.domain),
			zap.String("capability", c.String()),
		)
	}
	return d.Passes(), nil
}

func roleOf(p types.Principal) string {
	if p.IsAnonymous() {
		return authz.RoleAnonymous
	}
	return p.Role
}
