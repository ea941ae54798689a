package http

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "json")
}

func (r *Response) IsXML() bool {
	return strings.Contains(r.ContentType(), "xml")
}

// Format reports the body format from Content-Type, sniffing the body when
// the header names neither JSON nor XML.
func (r *Response) Format() extract.Format {
	switch {
	case r.IsJSON():
		return extract.FormatJSON
	case r.IsXML():
		return extract.FormatXML
	default:
		return extract.Detect(r.Body)
	}
}

// Document parses the body for path extraction.
func (r *Response) Document() (*extract.Document, error) {
	return extract.Parse(r.Body, r.Format())
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
