// Package exitcodes defines the standard exit codes used by gauntlet.
package exitcodes

// Exit code constants used by gauntlet
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when all cases pass successfully
// * TestFailure (1): Used when one or more cases fail
// * RuntimeErr (2): Used for runtime errors such as panics, bad configuration
// or resource provisioning failures
const (
	Success     = 0 // All cases pass
	TestFailure = 1 // Case failures
	RuntimeErr  = 2 // Runtime errors
)
