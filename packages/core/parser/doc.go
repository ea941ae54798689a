// Package parser defines the in-memory model of a test workbook and parses
// the two small languages embedded in its cells.
//
// The model:
//   - Suite: test cases plus the template, defaults, headers and endpoint catalogs
//   - TestCase: ordered steps sharing one TCID
//   - TestStep: one request with its conditions and expectations
//
// The cell languages:
//   - Conditions: lines of "[scope] TC01, TC02" where scope is test setup,
//     test teardown, suite setup, suite teardown or check with
//   - Exp Result: one assertion per line, classified as a dynamic diff
//     (TC01.$.total=+5), a pre/post check (TC01.post.$.status=DONE), an
//     external store check (DB.table.field[id=1]=x) or a direct check
//     ($.result.status=success)
//
// Lines matching none of these forms produce a *ParseError.
package parser
