package workbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/capture"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Sheets names the worksheets a workbook is read from.
type Sheets struct {
	Cases     string `json:"cases,omitempty" yaml:"cases,omitempty"`
	Templates string `json:"templates,omitempty" yaml:"templates,omitempty"`
	Defaults  string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Headers   string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Endpoints string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

func DefaultSheets() Sheets {
	return Sheets{
		Cases:     "Cases",
		Templates: "Templates",
		Defaults:  "Defaults",
		Headers:   "Headers",
		Endpoints: "Endpoints",
	}
}

// withDefaults fills empty names from DefaultSheets.
func (s Sheets) withDefaults() Sheets {
	d := DefaultSheets()
	if s.Cases == "" {
		s.Cases = d.Cases
	}
	if s.Templates == "" {
		s.Templates = d.Templates
	}
	if s.Defaults == "" {
		s.Defaults = d.Defaults
	}
	if s.Headers == "" {
		s.Headers = d.Headers
	}
	if s.Endpoints == "" {
		s.Endpoints = d.Endpoints
	}
	return s
}

// Source loads test cases from an .xlsx workbook.
type Source struct {
	path        string
	sheets      Sheets
	environment string
}

type Option func(*Source)

func WithSheets(sheets Sheets) Option {
	return func(s *Source) {
		s.sheets = sheets.withDefaults()
	}
}

// WithEnvironment keeps only Endpoints rows for env or with a blank
// Environment column.
func WithEnvironment(env string) Option {
	return func(s *Source) {
		s.environment = env
	}
}

func NewSource(path string, opts ...Option) *Source {
	s := &Source{path: path, sheets: DefaultSheets()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Path() string {
	return s.path
}

// Load reads the whole workbook. Problems confined to one case, such as a
// malformed Conditions cell, are recorded on TestCase.Err instead of failing
// the load.
func (s *Source) Load() (*parser.Suite, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	suite := parser.NewSuite(s.path)

	cases, err := readTable(f, s.sheets.Cases, true)
	if err != nil {
		return nil, err
	}
	if err := loadCases(suite, cases); err != nil {
		return nil, err
	}

	loaders := []struct {
		sheet string
		load  func(*parser.Suite, *table) error
	}{
		{s.sheets.Templates, loadTemplates},
		{s.sheets.Defaults, loadDefaults},
		{s.sheets.Headers, loadHeaders},
		{s.sheets.Endpoints, func(suite *parser.Suite, t *table) error {
			return loadEndpoints(suite, t, s.environment)
		}},
	}
	for _, l := range loaders {
		t, err := readTable(f, l.sheet, false)
		if err != nil {
			return nil, err
		}
		if err := l.load(suite, t); err != nil {
			return nil, err
		}
	}

	return suite, nil
}

// Filter loads the workbook and returns the runnable cases matching ids and tags.
func (s *Source) Filter(ids, tags []string) ([]*parser.TestCase, error) {
	suite, err := s.Load()
	if err != nil {
		return nil, err
	}
	return suite.Select(ids, tags), nil
}

func readTable(f *excelize.File, sheet string, required bool) (*table, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if required {
			return nil, fmt.Errorf("workbook has no %q sheet", sheet)
		}
		return newTable(nil), nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return newTable(rows), nil
}

func loadCases(suite *parser.Suite, t *table) error {
	if !t.has("TCID") {
		return errors.New("cases sheet has no TCID column")
	}
	hasRun := t.has("Run")

	var current *parser.TestCase
	byID := make(map[string]*parser.TestCase)

	for i, row := range t.rows {
		if blank(row) {
			continue
		}
		rowNo := t.first + i

		tcid := t.get(row, "TCID")
		switch {
		case tcid == "" && current == nil:
			return fmt.Errorf("row %d: step without a TCID", rowNo)
		case tcid == "":
			// continuation row of the case above
		case byID[tcid] != nil && byID[tcid] != current:
			return fmt.Errorf("row %d: steps of %s are not contiguous", rowNo, tcid)
		case byID[tcid] == nil:
			current = &parser.TestCase{
				TCID:        tcid,
				Description: t.get(row, "Description", "Name"),
				Tags:        splitTags(t.get(row, "Tags")),
				Run:         !hasRun || isYes(t.get(row, "Run")),
			}
			byID[tcid] = current
			suite.Cases = append(suite.Cases, current)
		}

		step := &parser.TestStep{
			TCID:          current.TCID,
			TSID:          t.get(row, "TSID", "Step"),
			Description:   t.get(row, "Step Description", "Description", "Name"),
			Conditions:    t.get(row, "Conditions"),
			Endpoint:      t.get(row, "Endpoint"),
			Headers:       t.get(row, "Headers"),
			Template:      t.get(row, "Template", "Body Template"),
			Defaults:      t.get(row, "Defaults", "Body Default"),
			Modifications: t.get(row, "Modifications", "Body User-defined Fields"),
			ExpResult:     t.get(row, "Exp Result", "Expected Result"),
		}
		if step.TSID == "" {
			step.TSID = strconv.Itoa(len(current.Steps) + 1)
		}
		for _, f := range capture.ParseSaveFields(t.get(row, "Save Fields")) {
			step.SaveFields = append(step.SaveFields, f.Path)
		}

		if status := t.get(row, "Exp Status", "Expected Status"); status != "" {
			code, err := strconv.Atoi(strings.TrimSuffix(status, ".0"))
			if err != nil || code < 100 || code > 599 {
				setErr(current, fmt.Errorf("step %s: invalid Exp Status %q", step.Name(), status))
			} else {
				step.ExpStatus = code
			}
		}

		directives, err := parser.ParseDirectives(step.Conditions)
		if err != nil {
			setErr(current, fmt.Errorf("step %s conditions: %w", step.Name(), err))
		}
		step.Directives = directives

		current.Steps = append(current.Steps, step)
	}
	return nil
}

func setErr(tc *parser.TestCase, err error) {
	if tc.Err == nil {
		tc.Err = err
	}
}

func loadTemplates(suite *parser.Suite, t *table) error {
	for i, row := range t.rows {
		name := t.get(row, "TemplateName", "Name")
		if name == "" {
			continue
		}
		format, err := extract.ParseFormat(t.get(row, "Format"))
		if err != nil {
			return fmt.Errorf("templates row %d: %w", t.first+i, err)
		}
		suite.Templates[name] = &parser.Template{
			Name:    name,
			Content: t.get(row, "Content"),
			Format:  format,
			Schema:  t.get(row, "Schema"),
		}
	}
	return nil
}

// loadDefaults reads default documents. Content is JSON or YAML, or XML for
// XML templates.
func loadDefaults(suite *parser.Suite, t *table) error {
	for i, row := range t.rows {
		name := t.get(row, "Name")
		if name == "" {
			continue
		}
		doc, err := decodeDocument(t.get(row, "Content"))
		if err != nil {
			return fmt.Errorf("defaults row %d (%s): %w", t.first+i, name, err)
		}
		suite.Defaults[name] = doc
	}
	return nil
}

func decodeDocument(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return map[string]any{}, nil
	}
	if strings.HasPrefix(content, "<") {
		return extract.XMLToMap([]byte(content))
	}
	if strings.HasPrefix(content, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(content), &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	var m map[string]any
	if err := yaml.Unmarshal([]byte(content), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// loadHeaders reads header templates. Content is a YAML or JSON mapping of
// header name to value.
func loadHeaders(suite *parser.Suite, t *table) error {
	for i, row := range t.rows {
		name := t.get(row, "HeaderName", "Name")
		if name == "" {
			continue
		}
		var raw map[string]any
		if err := yaml.Unmarshal([]byte(t.get(row, "Content")), &raw); err != nil {
			return fmt.Errorf("headers row %d (%s): %w", t.first+i, name, err)
		}
		headers := make(map[string]string, len(raw))
		for k, v := range raw {
			headers[k] = fmt.Sprint(v)
		}
		suite.Headers[name] = headers
	}
	return nil
}

func loadEndpoints(suite *parser.Suite, t *table, env string) error {
	for i, row := range t.rows {
		name := t.get(row, "Endpoint", "Name")
		if name == "" {
			continue
		}
		rowEnv := t.get(row, "Environment")
		if rowEnv != "" && env != "" && !strings.EqualFold(rowEnv, env) {
			continue
		}
		if existing, ok := suite.Endpoints[name]; ok && rowEnv == "" && existing != nil {
			// an environment-specific row wins over a generic one
			continue
		}
		method := strings.ToUpper(t.get(row, "Method"))
		if method == "" {
			method = "GET"
		}
		path := t.get(row, "Path", "URL")
		if path == "" {
			return fmt.Errorf("endpoints row %d (%s): empty path", t.first+i, name)
		}
		suite.Endpoints[name] = &parser.Endpoint{Name: name, Method: method, Path: path}
	}
	return nil
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n'
	}) {
		tags = append(tags, strings.TrimSpace(tag))
	}
	return tags
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "x":
		return true
	default:
		return false
	}
}
