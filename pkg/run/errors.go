package run

import "fmt"

// RetryExhaustedError reports that the model never produced a response
// matching the declared schema within the retry budget. The failed attempts
// remain inspectable on the run's ExecutionState.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("run: response failed schema validation after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }
