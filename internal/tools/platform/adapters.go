// Canonical-name adapters: the teacher's existing agent.Tool
// implementations (sandbox.Executor, exec.ExecTool, rag.SearchTool)
// already do the real work these platform tools need; they are just
// registered under different names than spec §4.6's fixed platform
// set. Rather than rename the teacher's own tools (and risk breaking
// any other caller still using their original names), these thin
// wrappers delegate Execute/Schema/Description and only override
// Name.
package platform

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

// renamed wraps an agent.Tool under a different canonical name.
type renamed struct {
	name string
	agent.Tool
}

func (r *renamed) Name() string { return r.name }

func (r *renamed) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return r.Tool.Execute(ctx, params)
}

func (r *renamed) Schema() json.RawMessage { return r.Tool.Schema() }

func (r *renamed) Description() string { return r.Tool.Description() }

// codeInterpreter wraps a sandbox executor under the canonical
// "code_interpreter" name and implements StreamingTool so Dispatcher.Run
// forwards hot_code (the composed code, emitted before the sandbox run
// starts) and content (the captured stdout/stderr, emitted once it
// finishes) per spec §4.6, instead of only the final tool_result.
type codeInterpreter struct {
	agent.Tool
}

func (c *codeInterpreter) Name() string { return "code_interpreter" }

func (c *codeInterpreter) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return c.Tool.Execute(ctx, params)
}

func (c *codeInterpreter) ExecuteStreaming(ctx context.Context, params json.RawMessage, emit func(models.Event)) (*agent.ToolResult, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(params, &args); err == nil && args.Code != "" {
		emit(models.Event{Type: models.EventHotCode, Delta: args.Code})
	}
	result, err := c.Tool.Execute(ctx, params)
	if err != nil {
		return nil, err
	}
	if result.Content != "" {
		emit(models.Event{Type: models.EventContent, Delta: result.Content})
	}
	return result, nil
}

// CodeInterpreter renames a sandbox code executor to the platform's
// canonical "code_interpreter" tool name.
func CodeInterpreter(executor agent.Tool) agent.Tool {
	return &codeInterpreter{Tool: executor}
}

// Computer renames a shell/process executor to the platform's
// canonical "computer" tool name, grounded on internal/agent's
// ComputerUseConfig for display geometry and internal/tools/exec's
// ExecTool for the underlying command execution.
func Computer(exec agent.Tool) agent.Tool {
	return &renamed{name: "computer", Tool: exec}
}

// Shell exposes the same underlying executor under the literal
// "shell" name, for assistants whose tool manifest calls it that
// instead of "computer".
func Shell(exec agent.Tool) agent.Tool {
	return &renamed{name: "shell", Tool: exec}
}

// FileSearch renames the teacher's document_search (vector store
// search) tool to the platform's canonical "file_search" name.
func FileSearch(search agent.Tool) agent.Tool {
	return &renamed{name: "file_search", Tool: search}
}

// VectorStoreSearch is an alias of FileSearch for assistants whose
// manifest names the tool "vector_store_search" (spec §4.5's
// classification set lists both names as platform built-ins).
func VectorStoreSearch(search agent.Tool) agent.Tool {
	return &renamed{name: "vector_store_search", Tool: search}
}
