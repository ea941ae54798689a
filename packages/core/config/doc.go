// Package config handles configuration loading and management for sheetspec.
//
// It provides functionality for:
//   - Loading configuration from .sheetspec.json, sheetspec.json,
//     sheetspec.yaml or .sheetspec.yaml
//   - Validating config files against an embedded CUE schema
//   - Default configuration values
//   - Named environments with base URL, variables and database connections
//   - Merging command-line overrides over file values
package config
