// Package db answers DB.* expectations against a SQL database.
//
// An expectation such as
//
//	DB.accounts.balance[id=7;ccy=EUR][OrderBy=updated_at DESC]=100
//
// becomes a parameterised SELECT of one field from the first matching row.
// Table, field, filter and order names must be plain identifiers; filter
// values are always bound as arguments. SQLite is supported through
// github.com/mattn/go-sqlite3.
package db
