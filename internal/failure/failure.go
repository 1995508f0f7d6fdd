// Package failure defines the error taxonomy shared by the harness.
//
// Step and Transport failures are data: the journey orchestrator converts
// them into a failed journey result and they never reach the scheduler.
// Configuration errors are fatal and stop a run before any virtual user is
// admitted. Assertion failures are recorded as failed checks.
package failure

import (
	"errors"
	"fmt"
)

// Step reports that a scenario step returned an unsuccessful result.
type Step struct {
	Step   string
	Status int
	Reason string
	Err    error
}

func (e *Step) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("step %s: %v", e.Step, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("step %s: %s (status %d)", e.Step, e.Reason, e.Status)
	default:
		return fmt.Sprintf("step %s: %s", e.Step, e.Reason)
	}
}

func (e *Step) Unwrap() error {
	return e.Err
}

// Transport reports a network or timeout error talking to the target.
type Transport struct {
	Method string
	Path   string
	Err    error
}

func (e *Transport) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *Transport) Unwrap() error {
	return e.Err
}

// Configuration reports a malformed profile, threshold, or setting.
type Configuration struct {
	Field   string
	Message string
}

func (e *Configuration) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// Assertion reports a failed check predicate on a response.
type Assertion struct {
	Check  string
	Detail string
}

func (e *Assertion) Error() string {
	if e.Detail == "" {
		return "check failed: " + e.Check
	}
	return fmt.Sprintf("check failed: %s: %s", e.Check, e.Detail)
}

// Configf builds a Configuration error for field.
func Configf(field, format string, args ...interface{}) error {
	return &Configuration{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err contains a Configuration error.
func IsConfiguration(err error) bool {
	var cfg *Configuration
	return errors.As(err, &cfg)
}

// IsTransport reports whether err contains a Transport error.
func IsTransport(err error) bool {
	var tr *Transport
	return errors.As(err, &tr)
}
