package types

import (
	"errors"
	"fmt"
)

// ErrRetrievalUnavailable indicates the vector index is missing or
// unreachable. Callers degrade to empty context rather than failing the turn.
var ErrRetrievalUnavailable = errors.New("retrieval index unavailable")

// ConfigurationError indicates missing credentials or paths. Fatal for the
// operation that needed them.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ModelInvocationError indicates the language-model call failed. The turn is
// aborted without retry.
type ModelInvocationError struct {
	Err error
}

func (e *ModelInvocationError) Error() string {
	return "model invocation failed: " + e.Err.Error()
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// SchemaValidationError indicates the model's final output did not match the
// expected SQL-response envelope. No repair is attempted.
type SchemaValidationError struct {
	Reason string
	Raw    string
}

func (e *SchemaValidationError) Error() string {
	return "response schema validation failed: " + e.Reason
}

// QueryExecutionError wraps a database failure verbatim so the user can judge
// it against the generated SQL.
type QueryExecutionError struct {
	SQL string
	Err error
}

func (e *QueryExecutionError) Error() string {
	return "query execution failed: " + e.Err.Error()
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }
