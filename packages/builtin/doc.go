// Package builtin provides the functions available inside {{...}}
// references of request templates.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(): current UTC time in RFC 3339
//   - timestamp(), timestampMs(): Unix time in seconds or milliseconds
//   - date(layout): current UTC date, 2006-01-02 by default
//   - random(min, max): random integer in range
//   - randomString(length): random alphanumeric string
//   - base64(value), urlEncode(value)
package builtin
