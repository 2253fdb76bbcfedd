// Package exitcode exports the exit status numbers of the iotools
// command.
package exitcode

const (
	// Success is returned when the command finished without error.
	Success = iota
	// UsageError is returned when there was a syntax or usage error in the arguments.
	UsageError
	// UncategorizedError is returned for any error not categorised otherwise.
	UncategorizedError
	// FileNotFound is returned when the input file is not found.
	FileNotFound
	// NoDetectors is returned when no detector can produce an enabled format.
	NoDetectors
	// ProducerError is returned when a background producer failed.
	ProducerError
	// Timeout is returned when waiting for a producer timed out.
	Timeout
	// Unknown is returned by detect when the outermost format is not recognised.
	Unknown
)
