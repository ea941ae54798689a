// Package extract parses response bodies and evaluates field paths.
//
// JSON bodies are used as-is; XML bodies are first normalised into an
// equivalent JSON tree so both formats share one evaluator built on gjson.
// Paths start at the root, written $ or response, and support dotted fields,
// zero-based [N] indices and quoted ['key'] segments.
//
// A missing field yields ErrNotFound, which callers can tell apart from a
// field that is present with a null or empty value.
package extract
