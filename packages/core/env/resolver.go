package env

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/sheetspec/packages/builtin"
)

// placeholderPattern matches {{token}} and ${saved.key}. Group 1 holds the
// dynamic token, group 2 the saved-field key.
var (
	placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}|\$\{([^}]+)\}`)
	singlePattern      = regexp.MustCompile(`^(?:\{\{[^}]+\}\}|\$\{[^}]+\})$`)
	fieldPattern       = regexp.MustCompile(`\$\{[^}]+\}`)
)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Generator produces values for dynamic tokens.
type Generator interface {
	Generate(token string) (any, bool)
}

// Lookup reads saved fields. *fields.Store satisfies it.
type Lookup interface {
	Get(key string) (any, bool)
}

// Resolver substitutes placeholders in strings and nested documents.
// {{$NAME}} reads the OS environment, {{name}} reads environment variables
// then the generator, and ${key} reads saved fields. Resolution is a single
// pass: substituted text is never rescanned.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	generator Generator
	fields    Lookup
	warnFunc  WarnFunc
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

func WithGenerator(g Generator) ResolverOption {
	return func(r *Resolver) {
		r.generator = g
	}
}

func WithFields(l Lookup) ResolverOption {
	return func(r *Resolver) {
		r.fields = l
	}
}

func WithWarnFunc(fn WarnFunc) ResolverOption {
	return func(r *Resolver) {
		r.warnFunc = fn
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		variables: make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.generator == nil {
		r.generator = builtin.NewRegistry()
	}
	return r
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// Resolve substitutes every placeholder in input with its string form.
func (r *Resolver) Resolve(input string) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		val, ok := r.lookup(match)
		if !ok {
			return match
		}
		return Stringify(val)
	})
}

// ResolveFields substitutes only the ${key} placeholders whose saved field
// exists. Dynamic tokens and unknown keys are left in place.
func (r *Resolver) ResolveFields(input string) string {
	if r.fields == nil {
		return input
	}
	return fieldPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-1])
		if val, ok := r.fields.Get(key); ok {
			return Stringify(val)
		}
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// ResolveValue walks maps and slices and resolves every string leaf. A leaf
// that is exactly one placeholder takes the raw value, so numbers stay numbers.
// The input is never modified.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		if singlePattern.MatchString(val) {
			if raw, ok := r.lookup(val); ok {
				return raw
			}
			return val
		}
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

// lookup resolves a single placeholder match. The bool is false when the
// match must be left untouched.
func (r *Resolver) lookup(match string) (any, bool) {
	if strings.HasPrefix(match, "${") {
		key := strings.TrimSpace(match[2 : len(match)-1])
		if r.fields != nil {
			if val, ok := r.fields.Get(key); ok {
				return val, true
			}
		}
		r.warn("unresolved saved field: %s", key)
		return nil, false
	}

	expr := strings.TrimSpace(match[2 : len(match)-2])

	if strings.HasPrefix(expr, "$") {
		envVar := expr[1:]
		if val := os.Getenv(envVar); val != "" {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", envVar)
		return nil, false
	}

	if val, ok := r.GetVariable(expr); ok {
		return val, true
	}

	if val, ok := r.generator.Generate(expr); ok {
		return val, true
	}

	r.warn("unsupported dynamic token: %s", expr)
	return builtin.UnsupportedMarker(expr), true
}

// Stringify renders a resolved value for interpolation into text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
