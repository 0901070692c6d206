// Package engine is the entry point for callers that hold stored test cases
// and environments.
//
// An Engine looks entities up through a Store, runs them with a
// runner.Runner and hands every result to an optional Recorder. Lookup
// failures are returned as sentinel errors; build and transport failures are
// carried inside the returned results.
package engine
