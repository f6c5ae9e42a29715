// Package aerr implements the four error kinds this system distinguishes:
// structural errors, data-integrity warnings, validation failures
// (handled entirely as data, not errors, in the restriction package),
// and cancellation.
package aerr

import (
	"fmt"
	"strings"

	"adrcore/alog"
	"adrcore/identifier"
)

// ErrorLogger accumulates data-integrity warnings while validation or
// linking continues, tracking a hierarchy of "what we're currently
// looking at" so messages carry useful context. Ported from the
// teacher's util.ErrorLogger (aviation/*.go's PostDeserialize methods
// push/pop element names as they descend).
type ErrorLogger struct {
	hierarchy []string
	warnings  []string
}

func (e *ErrorLogger) Push(s string) { e.hierarchy = append(e.hierarchy, s) }

func (e *ErrorLogger) Pop() {
	if len(e.hierarchy) > 0 {
		e.hierarchy = e.hierarchy[:len(e.hierarchy)-1]
	}
}

func (e *ErrorLogger) Warnf(format string, args ...any) {
	e.warnings = append(e.warnings, strings.Join(e.hierarchy, " / ")+": "+fmt.Sprintf(format, args...))
}

func (e *ErrorLogger) Warn(err error) {
	e.warnings = append(e.warnings, strings.Join(e.hierarchy, " / ")+": "+err.Error())
}

func (e *ErrorLogger) HaveWarnings() bool { return len(e.warnings) > 0 }

func (e *ErrorLogger) Count() int { return len(e.warnings) }

func (e *ErrorLogger) Warnings() []string { return e.warnings }

func (e *ErrorLogger) PrintWarnings(lg *alog.Logger) {
	for _, w := range e.warnings {
		lg.Warn(w)
	}
}

func (e *ErrorLogger) String() string { return strings.Join(e.warnings, "\n") }

// StructuralError is a malformed archive, bad UUID, or schema mismatch.
// Fatal to the current operation; the caller must not have mutated
// persistent state before returning one.
type StructuralError struct {
	UUID  identifier.UUID
	Cause error
}

func (e *StructuralError) Error() string {
	if identifier.IsNil(e.UUID) {
		return fmt.Sprintf("structural error: %v", e.Cause)
	}
	return fmt.Sprintf("structural error on object %s: %v", e.UUID, e.Cause)
}

func (e *StructuralError) Unwrap() error { return e.Cause }

// Structural wraps cause as a StructuralError, optionally annotated with
// the UUID of the object being processed when it occurred.
func Structural(u identifier.UUID, cause error) error {
	return &StructuralError{UUID: u, Cause: cause}
}

// Cancelled is the sentinel error returned by the recompute engine when
// its cancel flag was observed between objects. The temp partition is
// left intact for retry.
var Cancelled = fmt.Errorf("recompute cancelled")
