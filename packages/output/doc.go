// Package output renders run results.
//
// Supported output formats:
//   - Console: colored terminal output, streamed per step in verbose mode,
//     with a latency summary
//   - JSON: machine-readable output written once the run is over
//   - TAP: Test Anything Protocol, one test point per case
//
// Each formatter implements the Formatter interface. JSON and TAP also
// implement Flushable since they accumulate results before writing.
package output
