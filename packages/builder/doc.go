// Package builder produces request bodies from a template, a defaults
// document and per-step modifications.
//
// Building a body:
//   - Modifications are deep-merged over defaults without touching either
//   - Placeholders in every leaf are resolved ({{token}}, ${saved.field})
//   - The template is rendered with text/template over the merged document
//   - The result is checked for well-formed JSON or XML, and against the
//     template's JSON Schema when one is declared
//
// GET and DELETE requests short-circuit to an empty body.
package builder
