// RecordToolDecisionTool is telemetry only: it captures a model's
// stated reasoning for choosing (or not choosing) a tool, logs it, and
// returns an acknowledgement. Per spec §4.6 it must never be
// submitted as a tool output to continue a conversation turn and must
// never create an Action of its own — the orchestrator special-cases
// this tool name the same way it special-cases tool_choice telemetry,
// logging via internal/observability.Logger the way
// internal/tools/policy's decision-logging integration does.
package platform

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/observability"
)

// RecordToolDecisionTool logs tool-choice telemetry.
type RecordToolDecisionTool struct {
	logger *observability.Logger
}

// NewRecordToolDecisionTool creates a RecordToolDecisionTool. A nil
// logger is replaced with a default logger.
func NewRecordToolDecisionTool(logger *observability.Logger) *RecordToolDecisionTool {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &RecordToolDecisionTool{logger: logger}
}

func (t *RecordToolDecisionTool) Name() string { return "record_tool_decision" }
func (t *RecordToolDecisionTool) Description() string {
	return "Record the reasoning behind a tool choice for telemetry. Does not affect the conversation."
}
func (t *RecordToolDecisionTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"chosen_tool":{"type":"string"},"reasoning":{"type":"string"},"alternatives_considered":{"type":"array","items":{"type":"string"}}},"required":["chosen_tool","reasoning"]}`)
}

func (t *RecordToolDecisionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var decision map[string]any
	if err := json.Unmarshal(params, &decision); err != nil {
		return errorResult("invalid arguments: %v", err), nil
	}
	t.logger.Info(ctx, "tool decision recorded", "decision", decision)
	return &agent.ToolResult{Content: "decision recorded"}, nil
}

// IsTelemetryOnly reports whether a tool name is the telemetry-only
// record_tool_decision tool, so the orchestrator can skip the usual
// Action-creation and tool-output-submission protocol for it.
func IsTelemetryOnly(name string) bool {
	return name == "record_tool_decision"
}
