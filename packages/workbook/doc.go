// Package workbook loads test suites from .xlsx workbooks.
//
// A workbook holds one required sheet of test cases and optional catalog
// sheets, all located by header name rather than column position:
//
//   - Cases: one row per step. TCID starts a case; rows with a blank TCID
//     continue the case above. Columns: TCID, Description, Run, Tags, TSID,
//     Conditions, Endpoint, Headers, Template, Defaults, Modifications,
//     Exp Status, Exp Result, Save Fields.
//   - Templates: TemplateName, Content, Format (json or xml), Schema.
//   - Defaults: Name, Content (JSON, YAML or XML).
//   - Headers: HeaderName, Content (a YAML mapping).
//   - Endpoints: Environment, Endpoint, Method, Path.
//
// Header names are compared after Unicode normalization, ignoring case,
// spaces, underscores and hyphens, so "Exp Result" and "exp_result" are the
// same column.
//
// Basic usage:
//
//	src := workbook.NewSource("tests.xlsx", workbook.WithEnvironment("staging"))
//	suite, err := src.Load()
package workbook
