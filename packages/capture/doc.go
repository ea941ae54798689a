// Package capture extracts Save Fields from step responses.
//
// It supports capturing values from:
//   - Response body paths ($.token, response[0].id)
//   - Response headers (header.Location)
//   - Response status code (status)
//
// Captured values are stored under "<TCID>.<path>" and read back in later
// steps with ${TC01.$.token}.
package capture
