// Package mock serves a fake HTTP API from a YAML route file so workbooks
// can be exercised without the real service.
//
// A route file looks like:
//
//	routes:
//	  - name: balance
//	    method: GET
//	    path: /accounts/{id}/balance
//	    responses:
//	      - body: {account: "{{id}}", balance: 100.00}
//	      - body: {account: "{{id}}", balance: 105.00}
//
// Each call advances through responses and then sticks to the last one,
// unless cycle is set. Bodies may reference:
//   - {{name}} for path parameters and {{query.name}} for query values
//   - ${$.path} for fields of the request body
//   - generator tokens such as {{uuid()}}
//
// POST /__mock/reset rewinds every sequence.
package mock
