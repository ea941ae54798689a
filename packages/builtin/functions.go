package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphanumeric = lowerLetters + upperLetters + "0123456789"
)

// Func computes a value from call arguments. Bare tokens are invoked with nil args.
type Func func(args []string) any

// Registry generates dynamic values for {{token}} and {{name(args)}} placeholders.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]Func
	tokens map[string]Func
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the time source used by date and timestamp generators.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		funcs:  make(map[string]Func),
		tokens: make(map[string]Func),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	r.registerTokens()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = r.funcNow
	r.funcs["timestamp"] = r.funcTimestamp
	r.funcs["timestampMs"] = r.funcTimestampMs
	r.funcs["date"] = r.funcDate
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["sha256"] = funcSHA256
	r.funcs["upper"] = funcUpper
}

// Register adds or replaces a call-style function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// RegisterToken adds or replaces a bare token such as {{uetr}}.
func (r *Registry) RegisterToken(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates a call expression like random(1, 10).
func (r *Registry) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false
	}

	name := matches[1]
	argsStr := matches[2]

	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var args []string
	if argsStr != "" {
		args = parseArgs(argsStr)
	}

	return fn(args), true
}

// Generate resolves either a call expression or a bare token.
func (r *Registry) Generate(token string) (any, bool) {
	token = strings.TrimSpace(token)
	if strings.Contains(token, "(") {
		return r.Call(token)
	}

	r.mu.RLock()
	fn, ok := r.tokens[token]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return fn(nil), true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func (r *Registry) funcNow(_ []string) any {
	return r.now().UTC().Format(time.RFC3339)
}

func (r *Registry) funcTimestamp(_ []string) any {
	return r.now().Unix()
}

func (r *Registry) funcTimestampMs(_ []string) any {
	return r.now().UnixMilli()
}

func (r *Registry) funcDate(args []string) any {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return r.now().UTC().Format(format)
}

func funcUUID(_ []string) any {
	return uuid.New().String()
}

func funcRandom(args []string) any {
	min, max := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			min = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: random() min argument %q is not a valid integer\n", args[0])
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			max = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: random() max argument %q is not a valid integer\n", args[1])
		}
	}
	if max < min {
		min, max = max, min
	}
	return rand.Intn(max-min+1) + min
}

func funcRandomString(args []string) any {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v >= 0 {
			length = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: randomString() length argument %q is not a valid integer\n", args[0])
		}
	}
	return randomString(length, alphanumeric)
}

func funcBase64(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcSHA256(args []string) any {
	if len(args) < 1 {
		return ""
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:])
}

func funcUpper(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return strings.ToUpper(args[0])
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
