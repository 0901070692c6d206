// Package http builds and executes the outbound requests of a test run.
//
// BuildRequest merges an environment and a request template into a Request,
// reporting malformed templates as *ConfigError before any network I/O.
// Client.Execute performs the call and never returns an error: transport
// failures are embedded in the Response as a *TransportError.
//
// Response bodies are a tagged variant (absent, JSON value, or text) so that
// assertions can tell a missing body from an empty JSON document.
package http
