package contract

import "fmt"

// ValidationError rejects missing or invalid caller input. Always surfaced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a reference to a contract that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("contract %s not found", e.ID)
}

// ConnectionError wraps a store or cache transport failure. Surfaced to the
// caller as retryable, never silently swallowed on mutating operations.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotificationError reports a failed event dispatch. Logged and swallowed by
// the engine after a successful persist.
type NotificationError struct {
	Event string
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Event, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// ExportError reports a document-rendering gateway failure. Surfaced by
// GenerateContractPDF, export being that operation's whole purpose.
type ExportError struct {
	StatusCode int
	Err        error
}

func (e *ExportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("export gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("export: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
