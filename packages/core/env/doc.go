// Package env handles environments and placeholder resolution for sheetspec.
//
// It provides functionality for:
//   - Loading environment files (.env) and configured variables
//   - {{token}} interpolation backed by the builtin generator
//   - ${TCID.path} interpolation backed by the saved-field store
//   - Raw value substitution inside nested request documents
package env
