package graph

import "fmt"

// ExecutionError reports that the store rejected a query or could not be
// reached. Message keeps the store's original text for logging.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(err error) *ExecutionError {
	return &ExecutionError{Message: err.Error(), Err: err}
}
