// Package runner executes test suites loaded from a workbook.
//
// It provides functionality for:
//   - Building the directive graph once and rejecting unknown references and cycles
//   - Running suite setups once per run, before any case, and suite teardowns after all
//   - Running test setups and teardowns around each case
//   - Capturing check-with snapshots before and after each step's request
//   - Evaluating expectations and saving response fields for later steps
//
// Execution is single-threaded and depth-first. A failing step stops its
// case; a failing case never stops the run.
package runner
