package attribute

import "strings"

// FilterOut returns a copy of m without the entries whose key matches one
// of patterns. Nested mappings are filtered as well. A pattern may be an
// exact key, "prefix*", "*suffix" or "*substring*". A pattern containing a
// dot is matched against the dotted path from m instead of the bare key.
func FilterOut(m map[string]any, patterns []string) map[string]any {
	if len(patterns) == 0 {
		return clone(m).(map[string]any)
	}
	return filterMap(m, nil, patterns)
}

func filterMap(m map[string]any, prefix Path, patterns []string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		p := prefix.Child(k)
		if omitted(p, patterns) {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = filterMap(nested, p, patterns)
			continue
		}
		out[k] = clone(v)
	}
	return out
}

func omitted(p Path, patterns []string) bool {
	for _, pattern := range patterns {
		subject := p[len(p)-1]
		if strings.Contains(pattern, ".") {
			subject = p.String()
		}
		if matchesPattern(subject, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(s, pattern string) bool {
	lead := strings.HasPrefix(pattern, "*")
	trail := len(pattern) > 1 && strings.HasSuffix(pattern, "*")
	core := strings.Trim(pattern, "*")

	switch {
	case pattern == "*":
		return true
	case lead && trail:
		return strings.Contains(s, core)
	case lead:
		return strings.HasSuffix(s, core)
	case trail:
		return strings.HasPrefix(s, core)
	default:
		return s == pattern
	}
}
