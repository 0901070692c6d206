// Package cmd implements the hitcase CLI commands using Cobra.
//
// Available commands:
//   - run: Execute stored test cases of a catalog project
//   - debug: Execute an ad-hoc request and print the raw response
//   - validate: Check catalog files without executing them
//   - list: Display the projects, environments and test cases of a catalog
//   - history: Show runs recorded in a history database
//   - init: Create a config file and an example catalog
//   - version: Show hitcase version information
//
// Every flag of run and debug has an HITCASE_* environment default, and
// values from the config file apply when a flag is not given.
package cmd
