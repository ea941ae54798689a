package mock

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"gopkg.in/yaml.v3"
)

// RouteFile is the YAML document describing a mock API.
type RouteFile struct {
	Routes []*Route `yaml:"routes"`
}

// Route answers one method and path. Path parameters use chi syntax, e.g.
// /accounts/{id}. Successive calls walk through Responses; once the last
// one is reached it keeps being served unless Cycle is set.
type Route struct {
	Name      string      `yaml:"name"`
	Method    string      `yaml:"method"`
	Path      string      `yaml:"path"`
	Cycle     bool        `yaml:"cycle"`
	Responses []*Response `yaml:"responses"`

	mu    sync.Mutex
	calls int
}

// Response is one canned reply. Body is either text or a YAML value that is
// encoded as JSON.
type Response struct {
	Status  int               `yaml:"status"`
	Format  string            `yaml:"format"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`
}

// LoadRoutes reads a route file from disk.
func LoadRoutes(path string) ([]*Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening routes: %w", err)
	}
	defer f.Close()
	routes, err := ParseRoutes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return routes, nil
}

// ParseRoutes decodes and validates a route file.
func ParseRoutes(r io.Reader) ([]*Route, error) {
	var file RouteFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}

	seen := make(map[string]bool)
	for i, route := range file.Routes {
		if err := route.normalize(); err != nil {
			return nil, fmt.Errorf("route %d: %w", i+1, err)
		}
		key := route.Method + " " + route.Path
		if seen[key] {
			return nil, fmt.Errorf("route %d: duplicate route %s", i+1, key)
		}
		seen[key] = true
	}
	return file.Routes, nil
}

func (r *Route) normalize() error {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	r.Path = normalizePath(r.Path)
	if len(r.Responses) == 0 {
		r.Responses = []*Response{{}}
	}
	for i, resp := range r.Responses {
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		if resp.Status < 100 || resp.Status > 599 {
			return fmt.Errorf("response %d: invalid status %d", i+1, resp.Status)
		}
		if _, err := extract.ParseFormat(resp.Format); err != nil {
			return fmt.Errorf("response %d: %w", i+1, err)
		}
	}
	return nil
}

// next returns the response for the current call and advances the sequence.
func (r *Route) next() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	if r.Cycle {
		return r.Responses[i%len(r.Responses)]
	}
	if i >= len(r.Responses) {
		i = len(r.Responses) - 1
	}
	return r.Responses[i]
}

func (r *Route) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = 0
}

// Calls reports how many requests the route has served since the last reset.
func (r *Route) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}
