package http

import (
	"errors"
	"fmt"
)

// TransportError is a request that produced no usable response: the server
// was unreachable, the call timed out, or the status was rejected.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a response whose status the caller does not accept.
func StatusError(req *Request, resp *Response) *TransportError {
	return &TransportError{Method: req.Method, URL: req.BuildURL(), StatusCode: resp.StatusCode}
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
