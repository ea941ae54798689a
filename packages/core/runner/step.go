package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/builder"
	"github.com/abdul-hamid-achik/sheetspec/packages/capture"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/abdul-hamid-achik/sheetspec/packages/http"
)

// runStep performs one step: check-with pre-pass, build and send, post-pass,
// evaluate, save fields. It returns the parsed response body, or nil.
func (r *Runner) runStep(ctx context.Context, st *runState, tc *parser.TestCase, step *parser.TestStep, role Role, parent string) (*StepResult, *extract.Document) {
	start := time.Now()
	sr := &StepResult{
		TCID:    tc.TCID,
		TSID:    step.TSID,
		Role:    role,
		Parent:  parent,
		Verdict: assertions.VerdictNotSpecified,
	}
	finish := func(doc *extract.Document) (*StepResult, *extract.Document) {
		sr.Duration = time.Since(start)
		st.record(sr)
		r.sink.Step(sr)
		return sr, doc
	}

	expectations, err := parser.ParseExpectations(r.resolver.ResolveFields(step.ExpResult))
	if err != nil {
		sr.fail(fmt.Errorf("exp result: %w", err))
		return finish(nil)
	}

	pre, warnings := r.checkWith(ctx, st, step, RoleCheckPre)
	sr.Warnings = append(sr.Warnings, warnings...)

	resp, sendErr := r.send(ctx, st.suite, step, sr)

	post, warnings := r.checkWith(ctx, st, step, RoleCheckPost)
	sr.Warnings = append(sr.Warnings, warnings...)

	if sendErr != nil {
		sr.fail(sendErr)
		return finish(nil)
	}

	var doc *extract.Document
	if len(strings.TrimSpace(string(resp.Body))) > 0 {
		doc, err = resp.Document()
		if err != nil {
			sr.Warnings = append(sr.Warnings, fmt.Sprintf("response body is not valid %s: %v", resp.Format(), err))
			doc = nil
		}
	}

	opts := []assertions.EvaluatorOption{
		assertions.WithSnapshots(pre, post),
		assertions.WithResolver(r.resolver),
	}
	for store, v := range r.validators {
		opts = append(opts, assertions.WithValidator(store, v))
	}
	results := assertions.NewEvaluator(doc, opts...).EvaluateAll(ctx, expectations)
	if step.ExpStatus != 0 {
		results = append([]*assertions.Result{assertions.StatusResult(step.ExpStatus, resp.StatusCode)}, results...)
	}
	sr.Assertions = results
	sr.Verdict = assertions.Summarize(results)
	if sr.Verdict == assertions.VerdictFail {
		sr.Reason = ReasonAssertion
	}

	if len(step.SaveFields) > 0 {
		fs := capture.ParseSaveFields(strings.Join(step.SaveFields, "\n"))
		values, missing := capture.ExtractAll(tc.TCID, capture.NewExtractor(resp, doc), fs)
		r.store.Merge(values)
		sr.Saved = values
		sr.Missing = missing
		for _, path := range missing {
			r.logger.Warn("save field not found", "step", step.Name(), "path", path)
		}
	}

	return finish(doc)
}

// send builds and sends the request of step. A status outside 2xx is an
// error unless the step declares the status it expects.
func (r *Runner) send(ctx context.Context, suite *parser.Suite, step *parser.TestStep, sr *StepResult) (*http.Response, error) {
	req, err := r.buildRequest(ctx, suite, step)
	if err != nil {
		return nil, err
	}
	sr.Method = req.Method
	sr.URL = req.BuildURL()

	r.logger.Debug("sending request", "step", step.Name(), "method", sr.Method, "url", sr.URL)
	resp, err := r.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	sr.StatusCode = resp.StatusCode
	r.logger.Debug("response received", "step", step.Name(), "status", resp.StatusCode, "duration", resp.Duration)

	if step.ExpStatus == 0 && !resp.IsSuccess() {
		return nil, http.StatusError(req, resp)
	}
	return resp, nil
}

func (r *Runner) buildRequest(ctx context.Context, suite *parser.Suite, step *parser.TestStep) (*http.Request, error) {
	if step.Endpoint == "" {
		return nil, fmt.Errorf("step %s has no endpoint", step.Name())
	}
	endpoint, ok := suite.Endpoints[step.Endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %q", step.Endpoint)
	}

	var tmpl *parser.Template
	if step.Template != "" {
		if tmpl, ok = suite.Templates[step.Template]; !ok {
			return nil, fmt.Errorf("unknown template %q", step.Template)
		}
	}

	var defaults map[string]any
	if step.Defaults != "" {
		if defaults, ok = suite.Defaults[step.Defaults]; !ok {
			return nil, fmt.Errorf("unknown defaults %q", step.Defaults)
		}
	}

	mods, modsFormat, err := builder.ParseModifications(step.Modifications, r.store)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step.Name(), err)
	}

	body, err := r.builder.Build(ctx, &builder.Input{
		Method:              endpoint.Method,
		Template:            tmpl,
		Defaults:            defaults,
		Modifications:       mods,
		ModificationsFormat: modsFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step.Name(), err)
	}

	headers, err := r.headers(suite, step.Headers)
	if err != nil {
		return nil, err
	}

	url := http.JoinURL(r.resolver.Resolve(r.config.BaseURL), r.resolver.Resolve(endpoint.Path))
	req := http.NewRequest(endpoint.Method, url).SetHeaders(headers)
	if r.config.Timeout > 0 {
		req.SetTimeout(r.config.Timeout)
	}
	if !body.Empty() {
		req.SetBody(body.Content, body.Format)
	}
	return req, nil
}

// headers merges the named header templates in order, later names winning,
// and resolves their placeholders.
func (r *Runner) headers(suite *parser.Suite, names string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, name := range headerNames(names) {
		h, ok := suite.Headers[name]
		if !ok {
			return nil, fmt.Errorf("unknown headers %q", name)
		}
		for k, v := range h {
			merged[k] = v
		}
	}
	return r.builder.BuildHeaders(merged), nil
}

// headerNames splits a Headers cell on commas, semicolons and newlines.
func headerNames(cell string) []string {
	var out []string
	for _, name := range strings.FieldsFunc(cell, func(c rune) bool {
		return c == ',' || c == ';' || c == '\n'
	}) {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
