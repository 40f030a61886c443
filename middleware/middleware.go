package middleware

import "time"

// DefaultStack returns the recommended production middleware stack.
// This includes failure recovery, request ID injection, and logging.
func DefaultStack(logger Logger) []Handler {
	return []Handler{
		Recover(),
		RequestID(),
		Logging(logger),
	}
}

// DefaultStackWithTimeout returns the default stack with a timeout middleware.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Handler {
	return []Handler{
		Recover(),
		RequestID(),
		Timeout(timeout),
		Logging(logger),
	}
}
