// Package assertions reads values out of an HTTP response and checks them
// against declarative assertions.
//
// Sources:
//   - status_code: the HTTP status code
//   - response_time: elapsed seconds
//   - header: a header value, looked up case-insensitively
//   - body: a value selected by a path such as $.data.items[0].id
//
// Operators are eq, gt, lt and contains. Extraction and comparison failures
// are reported per assertion and never abort the other assertions of a run.
package assertions
