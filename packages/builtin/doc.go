// Package builtin generates dynamic values for request placeholders.
//
// Bare tokens:
//   - uetr, uuid4: random UUID v4
//   - value_date: current date as YYYYMMDD
//   - msg_id: MSG prefix, Unix seconds and five lowercase letters
//   - timestamp: Unix seconds as a string
//   - formated_timestamp: MMDDhhmmss plus milliseconds
//   - bic: eight random uppercase letters
//
// Call-style functions such as uuid(), random(1, 10), date(2006-01-02) and
// base64(value) are also available. Both forms are written as {{name}} in
// workbook cells.
package builtin
