package routing

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, fmt.Errorf("allowlist: unsupported version %d", a.Version)
	}
	if a.Entrypoints == nil {
		return Allowlist{}, fmt.Errorf("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		for _, r := range ep.Routes {
			if !RouteClass(r.RouteClass).valid() {
				return Allowlist{}, fmt.Errorf("allowlist: %s %s: unknown route_class %q", name, r.Path, r.RouteClass)
			}
			for _, m := range r.Methods {
				if !isHTTPMethod(m) {
					return Allowlist{}, fmt.Errorf("allowlist: %s %s: invalid method %q", name, r.Path, m)
				}
			}
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

// Allows reports whether the entrypoint declares method on path, matching
// exact paths first and then {param} patterns.
func (a Allowlist) Allows(entrypoint, method, path string) bool {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return false
	}
	for _, r := range ep.Routes {
		matched := r.Path == path
		if !matched {
			if p, ok := parsePathPattern(r.Path); ok {
				matched = p.Match(path)
			}
		}
		if !matched {
			continue
		}
		for _, m := range r.Methods {
			if m == method {
				return true
			}
		}
	}
	return false
}

func isHTTPMethod(m string) bool {
	switch strings.TrimSpace(m) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}
