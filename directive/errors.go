package directive

import (
	"errors"
	"fmt"
)

// Kind is a stable error-kind identifier surfaced with every failure.
type Kind string

const (
	// KindInvalidInput marks malformed directives, unknown IDs, and bad
	// brief responses. Never retried.
	KindInvalidInput Kind = "invalid_input"

	// KindUnresolved marks a brief with an unanswered required clarifier.
	KindUnresolved Kind = "unresolved"

	// KindDependencyCycle marks a planner output containing a cycle.
	KindDependencyCycle Kind = "dependency_cycle"

	// KindWorkspaceViolation marks a failed path-containment check.
	KindWorkspaceViolation Kind = "workspace_violation"

	// KindTaskFailed marks a task whose command exited non-zero.
	KindTaskFailed Kind = "task_failed"

	// KindTimeout marks a task or workflow that exceeded its budget.
	KindTimeout Kind = "timeout"

	// KindPersistenceTransient marks a retriable repository failure.
	KindPersistenceTransient Kind = "persistence_transient"

	// KindPersistenceTerminal marks an unrecoverable repository failure.
	KindPersistenceTerminal Kind = "persistence_terminal"

	// KindApprovalBlocked marks an attempt to complete a workflow with a
	// pending approval request.
	KindApprovalBlocked Kind = "approval_blocked"
)

// Error carries a stable kind alongside a short human-readable reason.
type Error struct {
	// Kind is the stable error-kind identifier.
	Kind Kind

	// Message is the short reason string.
	Message string

	// QuestionID identifies the offending clarifier for unresolved errors.
	QuestionID string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind, or empty string for non-directive errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
