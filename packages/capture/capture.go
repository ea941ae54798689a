package capture

import (
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/abdul-hamid-achik/sheetspec/packages/fields"
	"github.com/abdul-hamid-achik/sheetspec/packages/http"
)

// Source says where a save field reads from.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
)

// Field is one line of a Save Fields cell: a body path such as $.token, a
// header as "header.Location", or "status".
type Field struct {
	Path   string
	Source Source
	Name   string
}

// ParseSaveFields reads a Save Fields cell, one field per line. Blank lines
// and lines starting with # are skipped.
func ParseSaveFields(text string) []*Field {
	var out []*Field
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, parseField(line))
	}
	return out
}

func parseField(line string) *Field {
	lower := strings.ToLower(line)
	switch {
	case lower == "status":
		return &Field{Path: line, Source: SourceStatus}
	case strings.HasPrefix(lower, "header."):
		return &Field{Path: line, Source: SourceHeader, Name: line[len("header."):]}
	default:
		return &Field{Path: line, Source: SourceBody}
	}
}

type Extractor struct {
	response *http.Response
	doc      *extract.Document
}

// NewExtractor reads from resp. doc is the parsed body and may be nil.
func NewExtractor(resp *http.Response, doc *extract.Document) *Extractor {
	return &Extractor{response: resp, doc: doc}
}

func (e *Extractor) Extract(f *Field) (any, bool) {
	switch f.Source {
	case SourceStatus:
		if e.response == nil {
			return nil, false
		}
		return e.response.StatusCode, true
	case SourceHeader:
		if e.response == nil {
			return nil, false
		}
		value := e.response.Header(f.Name)
		if value == "" {
			return nil, false
		}
		return value, true
	default:
		if e.doc == nil {
			return nil, false
		}
		v, err := e.doc.Get(f.Path)
		if err != nil {
			return nil, false
		}
		return v.Interface(), true
	}
}

// ExtractAll returns the values found, keyed "<tcid>.<path>", and the paths
// that could not be extracted.
func ExtractAll(tcid string, e *Extractor, fs []*Field) (map[string]any, []string) {
	results := make(map[string]any)
	var missing []string

	for _, f := range fs {
		if value, ok := e.Extract(f); ok {
			results[fields.Key(tcid, f.Path)] = value
		} else {
			missing = append(missing, f.Path)
		}
	}

	return results, missing
}
