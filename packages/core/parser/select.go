package parser

import "strings"

// Select returns the runnable cases in sheet order. A case is runnable when
// its Run flag is on, its ID matches one of ids (globs with a leading or
// trailing * allowed) and it carries one of tags. Empty filters match all.
func (s *Suite) Select(ids, tags []string) []*TestCase {
	var out []*TestCase
	for _, tc := range s.Cases {
		if !tc.Run {
			continue
		}
		if len(ids) > 0 && !matchesAnyPattern(tc.TCID, ids) {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(tc.Tags, tags) {
			continue
		}
		out = append(out, tc)
	}
	return out
}

func matchesAnyPattern(name string, patterns []string) bool {
	for _, p := range patterns {
		if matchesPattern(name, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if len(pattern) > 1 && pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if strings.EqualFold(tag, strings.TrimSpace(filter)) {
				return true
			}
		}
	}
	return false
}
