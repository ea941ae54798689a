package workbook

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

var caseColumns = []string{
	"TCID", "Description", "Run", "Tags", "TSID", "Step Description",
	"Conditions", "Endpoint", "Headers", "Template", "Defaults",
	"Modifications", "Exp Status", "Exp Result", "Save Fields",
}

// Save writes suite to a new workbook at path using the given sheet names.
// Load of the written file yields an equivalent suite.
func Save(path string, suite *parser.Suite, sheets Sheets) error {
	sheets = sheets.withDefaults()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheets.Cases); err != nil {
		return fmt.Errorf("failed to create cases sheet: %w", err)
	}

	w := &sheetWriter{f: f}
	w.header(sheets.Cases, caseColumns)
	for _, tc := range suite.Cases {
		for i, step := range tc.Steps {
			row := make([]any, len(caseColumns))
			if i == 0 {
				row[0] = tc.TCID
				row[1] = tc.Description
				row[2] = yesNo(tc.Run)
				row[3] = strings.Join(tc.Tags, ", ")
			}
			row[4] = step.TSID
			row[5] = step.Description
			row[6] = step.Conditions
			row[7] = step.Endpoint
			row[8] = step.Headers
			row[9] = step.Template
			row[10] = step.Defaults
			row[11] = step.Modifications
			if step.ExpStatus != 0 {
				row[12] = step.ExpStatus
			}
			row[13] = step.ExpResult
			row[14] = strings.Join(step.SaveFields, "\n")
			w.row(sheets.Cases, row)
		}
	}

	if len(suite.Templates) > 0 {
		w.sheet(sheets.Templates, []string{"TemplateName", "Content", "Format", "Schema"})
		for _, name := range sortedKeys(suite.Templates) {
			t := suite.Templates[name]
			format := ""
			if t.Format != extract.FormatUnspecified {
				format = t.Format.String()
			}
			w.row(sheets.Templates, []any{t.Name, t.Content, format, t.Schema})
		}
	}

	if len(suite.Defaults) > 0 {
		w.sheet(sheets.Defaults, []string{"Name", "Content"})
		for _, name := range sortedKeys(suite.Defaults) {
			data, err := json.MarshalIndent(suite.Defaults[name], "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode defaults %s: %w", name, err)
			}
			w.row(sheets.Defaults, []any{name, string(data)})
		}
	}

	if len(suite.Headers) > 0 {
		w.sheet(sheets.Headers, []string{"HeaderName", "Content"})
		for _, name := range sortedKeys(suite.Headers) {
			data, err := yaml.Marshal(suite.Headers[name])
			if err != nil {
				return fmt.Errorf("failed to encode headers %s: %w", name, err)
			}
			w.row(sheets.Headers, []any{name, strings.TrimSpace(string(data))})
		}
	}

	if len(suite.Endpoints) > 0 {
		w.sheet(sheets.Endpoints, []string{"Environment", "Endpoint", "Method", "Path"})
		for _, name := range sortedKeys(suite.Endpoints) {
			e := suite.Endpoints[name]
			w.row(sheets.Endpoints, []any{"", e.Name, e.Method, e.Path})
		}
	}

	if w.err != nil {
		return w.err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// sheetWriter keeps the first error and the next free row per sheet.
type sheetWriter struct {
	f    *excelize.File
	next map[string]int
	err  error
}

func (w *sheetWriter) sheet(name string, columns []string) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = fmt.Errorf("failed to create sheet %q: %w", name, err)
		return
	}
	w.header(name, columns)
}

func (w *sheetWriter) header(name string, columns []string) {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	w.row(name, row)
}

func (w *sheetWriter) row(sheet string, values []any) {
	if w.err != nil {
		return
	}
	if w.next == nil {
		w.next = make(map[string]int)
	}
	w.next[sheet]++
	cell := "A" + strconv.Itoa(w.next[sheet])
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
