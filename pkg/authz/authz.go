package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode accepts the AUTHZ_MODE value; disabled requires the explicit
// unsafe opt-in.
func ParseMode(raw string, allowDisabled bool) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if !allowDisabled {
			return "", errors.New("authz: AUTHZ_MODE=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")
		}
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid AUTHZ_MODE (expected enforce|shadow|disabled)")
	}
}

// Authorizer answers capability checks from a casbin model and policy file.
type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

func NewAuthorizer(modelPath string, policyPath string, mode Mode) (*Authorizer, error) {
	switch mode {
	case ModeEnforce, ModeShadow, ModeDisabled:
	default:
		return nil, fmt.Errorf("authz: unknown mode %q", mode)
	}
	enforcer, err := casbin.NewEnforcer(modelPath, fileadapter.NewAdapter(policyPath))
	if err != nil {
		return nil, fmt.Errorf("authz: load %s: %w", policyPath, err)
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

// Decision is the outcome of one check. A decision that is not enforced
// never blocks the caller.
type Decision struct {
	Allowed  bool
	Enforced bool
}

func (d Decision) Passes() bool { return d.Allowed || !d.Enforced }

// Decide evaluates c for subject in domain. Shadow mode still consults the
// policy; callers log decisions that are neither allowed nor enforced.
func (a *Authorizer) Decide(subject string, domain string, c Capability) (Decision, error) {
	enforced := a.mode == ModeEnforce
	switch {
	case a.mode == ModeDisabled:
		return Decision{Allowed: true}, nil
	case c.Action == ActionDoNotAllow:
		return Decision{Enforced: enforced}, nil
	case a.enforcer == nil:
		return Decision{Enforced: enforced}, errors.New("authz: no policy loaded")
	}
	ok, err := a.enforcer.Enforce(subject, domain, c.Object, c.Action)
	if err != nil {
		return Decision{Enforced: enforced}, err
	}
	return Decision{Allowed: ok, Enforced: enforced}, nil
}

func SubjectFromRoleSlug(roleSlug string) string {
	roleSlug = strings.TrimSpace(strings.ToLower(roleSlug))
	if roleSlug == "" {
		roleSlug = RoleAnonymous
	}
	return "role:" + roleSlug
}

func DomainFromSite(site string) string {
	if site = strings.ToLower(strings.TrimSpace(site)); site != "" {
		return site
	}
	return DomainGlobal
}
