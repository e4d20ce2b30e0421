package models

// OutcomeLevel hints how the client should present an outcome.
type OutcomeLevel string

const (
	OutcomeSuccess OutcomeLevel = "success"
	OutcomeInfo    OutcomeLevel = "info"
	OutcomeWarning OutcomeLevel = "warning"
	OutcomeError   OutcomeLevel = "error"
)

// Outcome describes the user visible result of a lifecycle action. The
// presentation layer decides whether it becomes a toast, a redirect or both.
type Outcome struct {
	Success     bool              `json:"success"`
	Level       OutcomeLevel      `json:"level"`
	Message     string            `json:"message,omitempty"`
	Redirect    string            `json:"redirect,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Deal        *Deal             `json:"deal,omitempty"`
}

// Noop is returned when an action had nothing to act on.
func Noop() Outcome {
	return Outcome{Success: true, Level: OutcomeInfo}
}

// Succeeded builds a success outcome.
func Succeeded(message string) Outcome {
	return Outcome{Success: true, Level: OutcomeSuccess, Message: message}
}

// Notify builds a transient, non-blocking notice.
func Notify(message string) Outcome {
	return Outcome{Success: false, Level: OutcomeWarning, Message: message}
}

// Failed builds a failure outcome.
func Failed(message string, fieldErrors map[string]string) Outcome {
	return Outcome{Success: false, Level: OutcomeError, Message: message, FieldErrors: fieldErrors}
}
