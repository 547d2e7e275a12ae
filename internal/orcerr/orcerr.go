// Package orcerr is the orchestration core's error taxonomy: a small set
// of distinct Go types, one per failure category the turn loop needs to
// tell apart, each wrapping an underlying cause and carrying whatever
// context helps a caller decide what to do next. The shape follows the
// teacher's own *agent.ToolError builder pattern (.WithXxx methods
// returning the receiver, errors.As-friendly Unwrap).
package orcerr

import (
	"errors"
	"fmt"
)

// UpstreamError wraps a failure returned by an LLM provider's Complete
// call: a non-2xx response, a broken stream, or a provider-side error
// event. Upstream errors terminate the run.
type UpstreamError struct {
	Provider string
	Message  string
	Cause    error
}

func NewUpstreamError(provider string, cause error) *UpstreamError {
	e := &UpstreamError{Provider: provider, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *UpstreamError) WithMessage(msg string) *UpstreamError {
	e.Message = msg
	return e
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[upstream:%s] %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("[upstream:%s]", e.Provider)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// ValidationError indicates a tool call, request, or config value failed
// structural or semantic validation before any execution was attempted.
// Validation errors never terminate the run; they produce a tool-result
// the model can react to.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.Cause = cause
	return e
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[validation:%s] %s", e.Field, e.Message)
	}
	return fmt.Sprintf("[validation] %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// ToolExecutionError wraps a platform tool's Execute failure. It carries
// the tool name and call ID so the orchestrator can correlate it with
// the pending tool-result message. It does not terminate the run; it is
// surfaced to the model as the tool's result content.
type ToolExecutionError struct {
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
	Attempts   int
}

func NewToolExecutionError(toolName string, cause error) *ToolExecutionError {
	e := &ToolExecutionError{ToolName: toolName, Cause: cause, Attempts: 1}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *ToolExecutionError) WithToolCallID(id string) *ToolExecutionError {
	e.ToolCallID = id
	return e
}

func (e *ToolExecutionError) WithAttempts(n int) *ToolExecutionError {
	e.Attempts = n
	return e
}

func (e *ToolExecutionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("[tool:%s] %s (attempts=%d)", e.ToolName, e.Message, e.Attempts)
	}
	return fmt.Sprintf("[tool:%s] %s", e.ToolName, e.Message)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// ConsumerTimeout indicates a consumer-classified tool call's Action was
// never resolved by the external SDK within the configured max-wait
// window. Consumer timeouts terminate the run; the orchestrator cannot
// make progress without the external side's response.
type ConsumerTimeout struct {
	ToolName   string
	ToolCallID string
	ActionID   string
	Waited     string
}

func NewConsumerTimeout(toolName, toolCallID, actionID, waited string) *ConsumerTimeout {
	return &ConsumerTimeout{ToolName: toolName, ToolCallID: toolCallID, ActionID: actionID, Waited: waited}
}

func (e *ConsumerTimeout) Error() string {
	return fmt.Sprintf("[consumer-timeout:%s] action %s unresolved after %s", e.ToolName, e.ActionID, e.Waited)
}

// CancellationRequested indicates the run's cancellation monitor observed
// a terminal cancelled/cancelling status mid-turn. It is not a failure in
// the usual sense; the orchestrator treats it as a clean, expected exit
// from the turn loop.
type CancellationRequested struct {
	RunID string
}

func NewCancellationRequested(runID string) *CancellationRequested {
	return &CancellationRequested{RunID: runID}
}

func (e *CancellationRequested) Error() string {
	return fmt.Sprintf("[cancelled] run %s", e.RunID)
}

// ParsingError wraps a failure decoding a provider's streamed tool-call
// arguments or a consumer tool's manifest payload. Parsing errors never
// terminate the run; they are reported back to the model as a malformed
// tool-call result so it can retry with corrected arguments.
type ParsingError struct {
	Source  string
	Message string
	Cause   error
}

func NewParsingError(source string, cause error) *ParsingError {
	e := &ParsingError{Source: source, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("[parsing:%s] %s", e.Source, e.Message)
}

func (e *ParsingError) Unwrap() error { return e.Cause }

// IsTerminal reports whether an error from the taxonomy should end the
// run rather than being folded into a tool-result message and fed back
// to the model. Per spec, only UpstreamError and ConsumerTimeout are
// terminal.
func IsTerminal(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return true
	}
	var timeout *ConsumerTimeout
	if errors.As(err, &timeout) {
		return true
	}
	return false
}
