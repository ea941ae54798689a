// Package cmd implements the sheetspec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the test cases of a workbook
//   - validate: Check a workbook without sending requests
//   - list: Display the test cases of a workbook
//   - init: Create a sample workbook, config and mock routes
//   - mock: Serve a fake API from YAML route files
//   - version: Show sheetspec version information
//
// Flags default from SHEETSPEC_* environment variables, then from the
// config file. Commands exit with the codes in exitcodes.go.
package cmd
