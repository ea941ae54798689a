package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath reports a malformed path expression.
var ErrInvalidPath = errors.New("invalid path")

// IsPath reports whether s starts at a response root ($ or response).
func IsPath(s string) bool {
	s = strings.TrimSpace(s)
	return hasRoot(s, "$") || hasRoot(s, "response")
}

func hasRoot(s, root string) bool {
	if !strings.HasPrefix(s, root) {
		return false
	}
	rest := s[len(root):]
	return rest == "" || rest[0] == '.' || rest[0] == '['
}

// Segments splits a root-relative path into field names and indices.
// Indices are returned as their decimal text.
func Segments(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	var rest string
	switch {
	case hasRoot(path, "$"):
		rest = path[1:]
	case hasRoot(path, "response"):
		rest = path[len("response"):]
	default:
		return nil, fmt.Errorf("%w: %q must start with $ or response", ErrInvalidPath, path)
	}

	var segs []string
	for i := 0; i < len(rest); {
		switch rest[i] {
		case '.':
			j := i + 1
			for j < len(rest) && rest[j] != '.' && rest[j] != '[' {
				j++
			}
			name := rest[i+1 : j]
			if name == "" {
				return nil, fmt.Errorf("%w: empty field name in %q", ErrInvalidPath, path)
			}
			segs = append(segs, name)
			i = j
		case '[':
			end := strings.IndexByte(rest[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket in %q", ErrInvalidPath, path)
			}
			inner := strings.TrimSpace(rest[i+1 : i+end])
			seg, err := bracketSegment(inner)
			if err != nil {
				return nil, fmt.Errorf("%w: %v in %q", ErrInvalidPath, err, path)
			}
			segs = append(segs, seg)
			i += end + 1
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidPath, rest[i], path)
		}
	}
	return segs, nil
}

func bracketSegment(inner string) (string, error) {
	if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
		return inner[1 : len(inner)-1], nil
	}
	if inner == "" {
		return "", errors.New("empty index")
	}
	for _, c := range inner {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("index %q is not a non-negative integer", inner)
		}
	}
	return inner, nil
}

// CompilePath converts a path expression to gjson syntax. The root path
// compiles to the empty string.
func CompilePath(path string) (string, error) {
	segs, err := Segments(path)
	if err != nil {
		return "", err
	}
	escaped := make([]string, len(segs))
	for i, s := range segs {
		escaped[i] = escapeComponent(s)
	}
	return strings.Join(escaped, "."), nil
}

const gjsonSpecial = `.*?|#@\!=<>%,[]{}():"`

func escapeComponent(s string) string {
	if !strings.ContainsAny(s, gjsonSpecial) {
		return s
	}
	var b strings.Builder
	for _, c := range s {
		if strings.ContainsRune(gjsonSpecial, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
