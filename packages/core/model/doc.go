// Package model defines the data handed to the hitcase engine by its
// collaborators: environments, request templates, assertions and test cases.
//
// Documents arriving over the wire (debug requests, stored test cases) can be
// checked against embedded JSON Schemas before they are decoded:
//   - ValidateDebugRequest for ad-hoc debug executions
//   - ValidateTestCase for stored test case definitions
package model
