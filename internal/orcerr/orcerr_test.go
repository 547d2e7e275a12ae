package orcerr

import (
	"errors"
	"testing"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"upstream is terminal", NewUpstreamError("openai", errors.New("502")), true},
		{"consumer timeout is terminal", NewConsumerTimeout("send_email", "call1", "action1", "30s"), true},
		{"validation is not terminal", NewValidationError("task", "required"), false},
		{"tool execution is not terminal", NewToolExecutionError("web_search", errors.New("boom")), false},
		{"parsing is not terminal", NewParsingError("tool_call_arguments", errors.New("bad json")), false},
		{"cancellation is not terminal via IsTerminal", NewCancellationRequested("run1"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTerminal(tc.err); got != tc.want {
				t.Fatalf("IsTerminal(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestUpstreamError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamError("anthropic", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatal("expected errors.As to recover the UpstreamError")
	}
	if upstream.Provider != "anthropic" {
		t.Fatalf("unexpected provider: %q", upstream.Provider)
	}
}

func TestToolExecutionError_BuilderMethods(t *testing.T) {
	err := NewToolExecutionError("code_interpreter", errors.New("exit status 1")).
		WithToolCallID("call_1").
		WithAttempts(3)

	if err.ToolCallID != "call_1" {
		t.Fatalf("unexpected tool call id: %q", err.ToolCallID)
	}
	if err.Attempts != 3 {
		t.Fatalf("unexpected attempts: %d", err.Attempts)
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestValidationError_WithCause(t *testing.T) {
	cause := errors.New("empty string")
	err := NewValidationError("task", "task is required").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestParsingError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := NewParsingError("tool_call_arguments", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestCancellationRequested_Message(t *testing.T) {
	err := NewCancellationRequested("run_42")
	if err.Error() != "[cancelled] run run_42" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
