package cmd

// Exit codes for hitcase CLI
const (
	// ExitSuccess indicates all runs passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more runs failed
	ExitTestFailure = 1

	// ExitParseError indicates an invalid catalog or request document
	ExitParseError = 2

	// ExitConfigError indicates a configuration or lookup error
	ExitConfigError = 3

	// ExitNetworkError indicates every failed run obtained no response
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
