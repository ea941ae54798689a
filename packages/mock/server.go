package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/builtin"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/env"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/go-chi/chi/v5"
)

// ResetPath rewinds every response sequence when POSTed to.
const ResetPath = "/__mock/reset"

// Server is a mock HTTP API serving canned responses from a route file.
type Server struct {
	routes   []*Route
	port     int
	delay    time.Duration
	logger   *slog.Logger
	registry *builtin.Registry
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry sets the generator used for {{token}} placeholders in bodies.
func WithRegistry(r *builtin.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// NewServer creates a new mock server
func NewServer(opts ...Option) *Server {
	s := &Server{
		port: 3000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = builtin.NewRegistry()
	}
	return s
}

// LoadFile adds the routes of a YAML route file.
func (s *Server) LoadFile(path string) error {
	routes, err := LoadRoutes(path)
	if err != nil {
		return err
	}
	s.routes = append(s.routes, routes...)
	return nil
}

// AddRoute registers a single route.
func (s *Server) AddRoute(route *Route) error {
	if err := route.normalize(); err != nil {
		return err
	}
	for _, r := range s.routes {
		if r.Method == route.Method && r.Path == route.Path {
			return fmt.Errorf("duplicate route %s %s", route.Method, route.Path)
		}
	}
	s.routes = append(s.routes, route)
	return nil
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	return s.routes
}

// Reset rewinds the response sequence of every route.
func (s *Server) Reset() {
	for _, r := range s.routes {
		r.reset()
	}
}

// Handler builds the chi router for the loaded routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post(ResetPath, func(w http.ResponseWriter, _ *http.Request) {
		s.Reset()
		w.WriteHeader(http.StatusNoContent)
	})
	for _, route := range s.routes {
		chi.RegisterMethod(route.Method)
		r.Method(route.Method, route.Path, s.handle(route))
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.logger.Info("no route", "method", req.Method, "path", req.URL.Path)
		http.NotFound(w, req)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock server starting", "url", fmt.Sprintf("http://localhost:%d", s.port), "routes", len(s.routes))
	for _, route := range s.routes {
		s.logger.Debug("route", "method", route.Method, "path", route.Path, "responses", len(route.Responses))
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handle(route *Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}

		resp := route.next()
		resolver := s.resolver(r)

		body, err := renderBody(resolver, resp.Body)
		if err != nil {
			s.logger.Error("rendering mock body", "route", route.Name, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		format, _ := extract.ParseFormat(resp.Format)
		w.Header().Set("Content-Type", format.ContentType())
		for key, value := range resolver.ResolveAll(resp.Headers) {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(body)

		s.logger.Info("mock request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route.Name,
			"status", resp.Status,
			"duration", time.Since(start),
		)
	}
}

// resolver exposes path parameters and query values as {{name}} and
// {{query.name}}, and request body fields as ${$.path}.
func (s *Server) resolver(r *http.Request) *env.Resolver {
	vars := make(map[string]any)
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if i < len(rctx.URLParams.Values) && key != "*" {
				vars[key] = rctx.URLParams.Values[i]
			}
		}
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			vars["query."+key] = values[0]
		}
	}

	resolver := env.NewResolver(
		env.WithGenerator(s.registry),
		env.WithFields(requestBody(r)),
		env.WithWarnFunc(func(format string, args ...any) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	resolver.SetVariables(vars)
	return resolver
}

// bodyFields resolves ${$.path} against the parsed request body.
type bodyFields struct {
	doc *extract.Document
}

func (b bodyFields) Get(path string) (any, bool) {
	if b.doc == nil || !extract.IsPath(path) {
		return nil, false
	}
	v, err := b.doc.Get(path)
	if err != nil {
		return nil, false
	}
	if v.Kind == extract.KindNumber {
		return json.Number(v.Raw), true
	}
	return v.Interface(), true
}

func requestBody(r *http.Request) bodyFields {
	if r.Body == nil {
		return bodyFields{}
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil || len(data) == 0 {
		return bodyFields{}
	}
	doc, err := extract.Parse(data, extract.Detect(data))
	if err != nil {
		return bodyFields{}
	}
	return bodyFields{doc: doc}
}

func renderBody(resolver *env.Resolver, body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(resolver.Resolve(b)), nil
	default:
		return json.Marshal(resolver.ResolveValue(b))
	}
}
