package routing

import "strings"

// PathPattern matches allowlist paths with {param} segments. A final
// {name...} segment swallows one or more trailing segments, which is how
// REST namespaces under /wp-json are declared.
type PathPattern struct {
	raw      string
	segments []string
	tail     bool
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	tail := false
	for i, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if !strings.Contains(s, "{") && !strings.Contains(s, "}") {
			continue
		}
		if isTailSegment(s) {
			if i != len(parts)-1 {
				return PathPattern{}, false
			}
			tail = true
			continue
		}
		if !isParamSegment(s) {
			return PathPattern{}, false
		}
	}
	return PathPattern{raw: raw, segments: parts, tail: tail}, true
}

func (p PathPattern) Match(path string) bool {
	if p.raw == "" {
		return false
	}
	in := splitPathSegments(path)
	fixed := p.segments
	if p.tail {
		fixed = p.segments[:len(p.segments)-1]
		if len(in) <= len(fixed) {
			return false
		}
	} else if len(in) != len(p.segments) {
		return false
	}
	for i, got := range in {
		if got == "" {
			return false
		}
		if i >= len(fixed) {
			continue
		}
		want := fixed[i]
		if isParamSegment(want) {
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func splitPathSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 && !strings.HasSuffix(s, "...}")
}

func isTailSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "...}") && len(s) > len("{...}")
}
