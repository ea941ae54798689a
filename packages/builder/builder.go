package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/xeipuuv/gojsonschema"
)

// ErrFormatMismatch reports modifications written in a different format than
// the template they are merged into.
var ErrFormatMismatch = errors.New("format mismatch")

// Resolver substitutes placeholders. *env.Resolver satisfies it.
type Resolver interface {
	Resolve(input string) string
	ResolveValue(v any) any
}

// Input is everything needed to produce one request body.
type Input struct {
	Method        string
	Template      *parser.Template
	Defaults      map[string]any
	Modifications map[string]any
	// ModificationsFormat is the format the modifications were written in.
	// FormatUnspecified skips the mismatch check.
	ModificationsFormat extract.Format
}

// Body is a rendered request body.
type Body struct {
	Content []byte
	Format  extract.Format
}

func (b *Body) Empty() bool {
	return len(b.Content) == 0
}

// ContentType returns the MIME type to send with the body.
func (b *Body) ContentType() string {
	return b.Format.ContentType()
}

type Builder struct {
	resolver Resolver
}

func NewBuilder(resolver Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build merges modifications over defaults, resolves placeholders and renders
// the template. GET and DELETE requests always have an empty body.
func (b *Builder) Build(ctx context.Context, in *Input) (*Body, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := extract.FormatJSON
	if in.Template != nil && in.Template.Format != extract.FormatUnspecified {
		format = in.Template.Format
	}

	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "GET" || method == "DELETE" {
		return &Body{Format: format}, nil
	}

	if in.ModificationsFormat != extract.FormatUnspecified && in.ModificationsFormat != format {
		return nil, fmt.Errorf("%w: %s template %q, %s modifications",
			ErrFormatMismatch, format, templateName(in.Template), in.ModificationsFormat)
	}

	merged := DeepMerge(in.Defaults, in.Modifications)
	doc, _ := b.resolver.ResolveValue(merged).(map[string]any)
	if doc == nil {
		doc = map[string]any{}
	}

	content, err := render(in.Template, format, doc)
	if err != nil {
		return nil, err
	}

	if err := validate(in.Template, format, content); err != nil {
		return nil, err
	}

	return &Body{Content: content, Format: format}, nil
}

// BuildHeaders resolves placeholders in every header value.
func (b *Builder) BuildHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = b.resolver.Resolve(v)
	}
	return out
}

func render(tmpl *parser.Template, format extract.Format, doc map[string]any) ([]byte, error) {
	if tmpl == nil || strings.TrimSpace(tmpl.Content) == "" {
		if format == extract.FormatXML {
			s, err := encodeXML(doc)
			if err != nil {
				return nil, err
			}
			return []byte(s), nil
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		return data, nil
	}

	t, err := template.New(tmpl.Name).
		Option("missingkey=error").
		Funcs(templateFuncs).
		Parse(tmpl.Content)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", tmpl.Name, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("template %q: %w", tmpl.Name, err)
	}
	return buf.Bytes(), nil
}

var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
	"xml": encodeXML,
}

func validate(tmpl *parser.Template, format extract.Format, content []byte) error {
	if format == extract.FormatXML {
		if _, err := extract.XMLToJSON(content); err != nil {
			return fmt.Errorf("rendered body of %q is not well-formed XML: %w", templateName(tmpl), err)
		}
		return nil
	}

	if !json.Valid(content) {
		return fmt.Errorf("rendered body of %q is not valid JSON", templateName(tmpl))
	}

	if tmpl == nil || strings.TrimSpace(tmpl.Schema) == "" {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(tmpl.Schema),
		gojsonschema.NewBytesLoader(content),
	)
	if err != nil {
		return fmt.Errorf("schema for %q: %w", tmpl.Name, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("body of %q violates schema: %s", tmpl.Name, strings.Join(msgs, "; "))
	}
	return nil
}

func templateName(t *parser.Template) string {
	if t == nil {
		return "(none)"
	}
	return t.Name
}

// Fields reads saved fields. *fields.Store satisfies it.
type Fields interface {
	Get(key string) (any, bool)
}

var fieldPlaceholder = regexp.MustCompile(`^\$\{([^}]+)\}`)

// ParseModifications decodes a modifications cell. The format follows the
// first character: '<' is XML, '{' is JSON. Blank text and "{}" mean no
// modifications. When fields is not nil, a JSON cell that only parses once
// its bare ${key} placeholders are replaced by saved values, such as
// {"amount": ${TC01.$.total}}, is accepted.
func ParseModifications(text string, fields Fields) (map[string]any, extract.Format, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == "{}" {
		return nil, extract.FormatUnspecified, nil
	}

	switch trimmed[0] {
	case '<':
		m, err := extract.XMLToMap([]byte(trimmed))
		if err != nil {
			return nil, extract.FormatXML, fmt.Errorf("invalid XML modifications: %w", err)
		}
		return m, extract.FormatXML, nil
	case '{':
		var m map[string]any
		err := json.Unmarshal([]byte(trimmed), &m)
		if err != nil && fields != nil && strings.Contains(trimmed, "${") {
			inlined, inlineErr := inlineFields(trimmed, fields)
			if inlineErr != nil {
				return nil, extract.FormatJSON, fmt.Errorf("invalid JSON modifications: %w", inlineErr)
			}
			m = nil
			err = json.Unmarshal([]byte(inlined), &m)
		}
		if err != nil {
			return nil, extract.FormatJSON, fmt.Errorf("invalid JSON modifications: %w", err)
		}
		return m, extract.FormatJSON, nil
	default:
		return nil, extract.FormatUnspecified, fmt.Errorf("modifications must be a JSON object or an XML document")
	}
}

// inlineFields replaces ${key} placeholders standing outside JSON strings with
// the JSON encoding of the saved value. Quoted placeholders are left for the
// resolver.
func inlineFields(text string, fields Fields) (string, error) {
	var b strings.Builder
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '$' {
			if m := fieldPlaceholder.FindStringSubmatch(text[i:]); m != nil {
				key := strings.TrimSpace(m[1])
				v, ok := fields.Get(key)
				if !ok {
					return "", fmt.Errorf("unknown saved field %q", key)
				}
				data, err := json.Marshal(v)
				if err != nil {
					return "", fmt.Errorf("saved field %q: %w", key, err)
				}
				b.Write(data)
				i += len(m[0]) - 1
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
