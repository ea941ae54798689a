package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotFound reports that a path does not exist in a document. A field that
// exists with a null value is not an error.
var ErrNotFound = errors.New("field not found")

// Format is the wire format of a request or response body.
type Format int

const (
	FormatUnspecified Format = iota
	FormatJSON
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	default:
		return "unspecified"
	}
}

// ContentType returns the MIME type used when sending a body of this format.
func (f Format) ContentType() string {
	if f == FormatXML {
		return "application/xml"
	}
	return "application/json"
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	default:
		return FormatUnspecified, fmt.Errorf("unknown format %q", s)
	}
}

// Detect sniffs the body: a leading '<' means XML, anything else JSON.
func Detect(body []byte) Format {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return FormatXML
	}
	return FormatJSON
}

// Document is a parsed response body. XML bodies are normalised into the
// same JSON tree so a single path evaluator serves both formats.
type Document struct {
	Format Format
	raw    []byte
	root   gjson.Result
}

// Parse builds a Document from a body. FormatUnspecified sniffs the body.
func Parse(body []byte, format Format) (*Document, error) {
	if format == FormatUnspecified {
		format = Detect(body)
	}
	switch format {
	case FormatXML:
		return ParseXML(body)
	default:
		return ParseJSON(body)
	}
}

func ParseJSON(body []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}
	return &Document{
		Format: FormatJSON,
		raw:    trimmed,
		root:   gjson.ParseBytes(trimmed),
	}, nil
}

func ParseXML(body []byte) (*Document, error) {
	converted, err := XMLToJSON(body)
	if err != nil {
		return nil, err
	}
	return &Document{
		Format: FormatXML,
		raw:    converted,
		root:   gjson.ParseBytes(converted),
	}, nil
}

// JSON returns the normalised JSON text of the document.
func (d *Document) JSON() []byte {
	return d.raw
}

// Get evaluates a path such as $.a.b[2].c or response[0].id.
func (d *Document) Get(path string) (Value, error) {
	compiled, err := CompilePath(path)
	if err != nil {
		return Value{}, err
	}
	result := d.root
	if compiled != "" {
		result = d.root.Get(compiled)
	}
	if !result.Exists() {
		return Value{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fromResult(result), nil
}

// Kind classifies a JSON value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	return [...]string{"null", "bool", "number", "string", "array", "object"}[k]
}

// Value is an extracted field. Raw keeps the source text so numbers are
// compared and saved exactly as the server wrote them.
type Value struct {
	Kind Kind
	Raw  string
	v    any
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Value{Kind: KindNull, Raw: "null"}
	case gjson.True, gjson.False:
		return Value{Kind: KindBool, Raw: r.Raw, v: r.Bool()}
	case gjson.Number:
		return Value{Kind: KindNumber, Raw: r.Raw, v: r.Float()}
	case gjson.String:
		return Value{Kind: KindString, Raw: r.Str, v: r.Str}
	default:
		kind := KindObject
		if r.IsArray() {
			kind = KindArray
		}
		return Value{Kind: kind, Raw: r.Raw, v: r.Value()}
	}
}

// Interface returns the decoded Go value.
func (v Value) Interface() any {
	return v.v
}

// String returns the display form: strings unquoted, everything else as JSON text.
func (v Value) String() string {
	if v.Kind == KindObject || v.Kind == KindArray {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err == nil {
			return buf.String()
		}
	}
	return v.Raw
}

// Float reports the numeric value of numbers and numeric strings.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.v.(float64), true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
