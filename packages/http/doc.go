// Package http sends step requests for sheetspec.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts, redirects, TLS verification and proxy
//   - Request pacing through golang.org/x/time/rate
//   - Content-Type selection from the body format
//   - Response format detection and parsing for path extraction
//
// Only failures that leave no response are errors; any status code is
// returned to the caller.
package http
