// Package assertions evaluates parsed Exp Result lines against responses.
//
// Supported forms:
//   - Direct: $.result.status=success, checked against the step's response
//   - Dynamic diff: TC01.$.total=+5, post minus pre of a check-with case,
//     rounded to two decimals
//   - Pre/post check: TC01.pre.$.state=OPEN against one snapshot
//   - External: DB.table.field[col=v]=x, delegated to a Validator
//
// Expected literals are coerced to the type of the extracted value before
// comparing. A path that does not resolve always fails.
package assertions
