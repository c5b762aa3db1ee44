package routing

import (
	"fmt"
	"strings"
)

type RouteClass string

const (
	RouteClassPublicAPI RouteClass = "public_api"
	RouteClassOps       RouteClass = "ops"
	RouteClassOther     RouteClass = "other"
)

func (rc RouteClass) valid() bool {
	switch rc {
	case RouteClassPublicAPI, RouteClassOps, RouteClassOther:
		return true
	}
	return false
}

// Classifier maps request paths to route classes using an entrypoint's
// allowlist, falling back to path shape for unlisted paths.
type Classifier struct {
	entrypoint string
	exact      map[string]RouteClass
	patterns   []pathPatternRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, fmt.Errorf("allowlist: missing entrypoint %q", entrypoint)
	}
	if len(ep.Routes) == 0 {
		return nil, fmt.Errorf("allowlist: entrypoint %q has no routes", entrypoint)
	}

	c := &Classifier{entrypoint: entrypoint, exact: make(map[string]RouteClass, len(ep.Routes))}
	for i, r := range ep.Routes {
		rc := RouteClass(r.RouteClass)
		if r.Path == "" || !rc.valid() {
			return nil, fmt.Errorf("allowlist: %s route #%d invalid (path=%q class=%q)", entrypoint, i, r.Path, r.RouteClass)
		}
		if p, ok := parsePathPattern(r.Path); ok {
			c.patterns = append(c.patterns, pathPatternRoute{pattern: p, rc: rc})
			continue
		}
		c.exact[r.Path] = rc
	}
	return c, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.exact[path]; ok {
		return rc
	}
	for _, p := range c.patterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, RESTPrefix), isRESTNamespace(path):
		return RouteClassPublicAPI
	case path == "/metrics" || path == "/health" || path == "/healthz":
		return RouteClassOps
	default:
		return RouteClassOther
	}
}

// RESTPrefix is where WordPress REST clients expect namespaced routes.
const RESTPrefix = "/wp-json"

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// isRESTNamespace matches /{vendor}/v{N}[/...].
func isRESTNamespace(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	rest := strings.TrimPrefix(path, "/")
	vendor, after, ok := strings.Cut(rest, "/")
	if !ok || vendor == "" {
		return false
	}
	version, _, _ := strings.Cut(after, "/")
	if len(version) < 2 || version[0] != 'v' {
		return false
	}
	for i := 1; i < len(version); i++ {
		if version[i] < '0' || version[i] > '9' {
			return false
		}
	}
	return true
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}
