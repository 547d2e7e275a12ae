// Package main provides the CLI entry point for the inference
// orchestration core's local exercise binary.
//
// This is not a product surface: the orchestration core has no
// channel/transport layer of its own (that is explicitly out of
// scope). nexus-core exists so the Orchestrator Loop, Tool Router, and
// Consumer Tool Dispatcher can be driven end to end against a real
// Redis instance from a terminal, the same way the teacher's own
// `nexus` CLI lets a developer exercise AgenticLoop directly via
// `nexus agents run` without a channel attached.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/config"
	"github.com/haasonsaas/nexus-core/internal/history"
	"github.com/haasonsaas/nexus-core/internal/observability"
	"github.com/haasonsaas/nexus-core/internal/orchestrator"
	"github.com/haasonsaas/nexus-core/internal/orchestrator/promptbuilder"
	"github.com/haasonsaas/nexus-core/internal/providerfactory"
	"github.com/haasonsaas/nexus-core/internal/store"
	"github.com/haasonsaas/nexus-core/internal/streamfanout"
	"github.com/haasonsaas/nexus-core/internal/toolrouter/consumer"
	"github.com/haasonsaas/nexus-core/internal/tools/exec"
	"github.com/haasonsaas/nexus-core/internal/tools/platform"
	"github.com/haasonsaas/nexus-core/internal/tools/platform/delegate"
	"github.com/haasonsaas/nexus-core/internal/tools/sandbox"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

var (
	version           = "dev"
	assistantModel    string
	assistantProvider string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nexus-core",
		Short:        "Local exercise CLI for the inference orchestration core",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildRunCmd())
	return rootCmd
}

func buildRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one conversation turn against a provider, printing canonical events",
		RunE:  runConversation,
	}
	cmd.Flags().StringVar(&assistantModel, "model", "gpt-4", "model name passed to the provider")
	cmd.Flags().StringVar(&assistantProvider, "provider", "openai", "provider name, resolved via internal/config")
	return cmd
}

func runConversation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	st := store.NewMemoryStore()

	assistant := &models.Assistant{
		ID:           uuid.NewString(),
		Name:         "nexus-core-cli",
		Instructions: "You are a helpful assistant.",
		Model:        assistantModel,
		Provider:     assistantProvider,
	}
	st.PutAssistant(assistant)

	thread := &models.Thread{ID: uuid.NewString(), AssistantID: assistant.ID}
	if err := st.CreateThread(ctx, thread); err != nil {
		return fmt.Errorf("create thread: %w", err)
	}

	run := &models.Run{
		ID:          uuid.NewString(),
		ThreadID:    thread.ID,
		AssistantID: assistant.ID,
		Model:       assistant.Model,
		Status:      models.RunStatusQueued,
	}
	if err := st.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	orch := buildOrchestrator(st, rdb, cfg, logger())

	fmt.Fprintln(os.Stderr, "enter a message (Ctrl-D to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		incoming := &models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: text}
		for evt := range orch.ProcessConversation(ctx, thread, assistant, run, incoming) {
			printEvent(evt)
		}
		fmt.Fprintln(os.Stderr, "\nenter a message (Ctrl-D to exit):")
	}
	return scanner.Err()
}

// buildOrchestrator wires C1-C11 together exactly once per process
// rather than per request.
func buildOrchestrator(st store.Store, rdb *redis.Client, cfg *config.Config, log *slog.Logger) *orchestrator.Orchestrator {
	hist := history.New(rdb, st, history.Options{TTL: cfg.RedisHistoryTTL})
	prompt := promptbuilder.NewForModel(assistantModel, promptbuilder.Options{})
	mirror := streamfanout.New(rdb, log)
	consDispatcher := consumer.New(st, st, consumer.Options{})

	pads := platform.NewScratchpadManager()
	registry := platform.NewRegistry(
		platform.CodeInterpreter(codeInterpreterTool(log)),
		platform.Shell(exec.NewExecTool("shell", exec.NewManager("."))),
		platform.Computer(exec.NewExecTool("computer", exec.NewManager("."))),
		platform.NewReadWebPageTool(),
		platform.NewScrollWebPageTool(),
		platform.NewSearchWebPageTool(),
		platform.NewPerformWebSearchTool(),
		platform.NewRecordToolDecisionTool(observability.NewLogger(observability.LogConfig{})),
		platform.NewReadScratchpadTool(pads, "cli-assistant"),
		platform.NewUpdateScratchpadTool(pads, "cli-assistant"),
		platform.NewAppendScratchpadTool(pads, "cli-assistant"),
	)
	platDispatcher := platform.NewDispatcher(registry, st)

	orch := orchestrator.New(st, providerfactory.New(), cfg, hist, prompt, platDispatcher, consDispatcher, mirror, log, orchestrator.Config{})

	delegateTool := delegate.New(orch, st, "openai", "gpt-4", 5)
	registry.Register(delegateTool)

	return orch
}

// codeInterpreterTool builds the sandboxed executor, falling back to a
// tool that reports the sandbox as unavailable rather than failing
// process startup — local pool/backend provisioning (Docker,
// Firecracker, Daytona) is environment-specific and shouldn't block
// every other tool from working.
func codeInterpreterTool(log *slog.Logger) agent.Tool {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Warn("sandbox executor unavailable, code_interpreter will report errors", "err", err)
		return unavailableTool{}
	}
	return executor
}

// unavailableTool satisfies agent.Tool so code_interpreter still has
// an entry in the registry when no sandbox backend could start; every
// call fails with an explanatory message instead of "tool not found".
type unavailableTool struct{}

func (unavailableTool) Name() string        { return "code_interpreter" }
func (unavailableTool) Description() string { return "Sandboxed code execution (unavailable)." }
func (unavailableTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (unavailableTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: "code_interpreter sandbox is not available in this environment", IsError: true}, nil
}

func printEvent(evt models.Event) {
	switch evt.Type {
	case models.EventContent:
		fmt.Print(evt.Delta)
	case models.EventToolCallManifest:
		fmt.Fprintf(os.Stderr, "\n[tool call: %s]\n", evt.ToolCallID)
	case models.EventToolResult:
		fmt.Fprintf(os.Stderr, "\n[tool result for %s]\n", evt.ToolCallID)
	case models.EventError:
		fmt.Fprintf(os.Stderr, "\n[error: %s]\n", evt.Error)
	}
}

func logger() *slog.Logger { return slog.Default() }
