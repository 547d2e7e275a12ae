// Package promptbuilder is the Conversation Context Builder (C4): it
// assembles a provider-ready []agent.CompletionMessage from an
// Assistant's system instructions plus a Thread's cached history plus
// the incoming message, trimmed to a token budget. The selection
// policy (newest-first, drop oldest first, truncate oversized tool
// results) is lifted directly from internal/agent/context.Packer;
// this package generalizes its char-budget proxy into a pluggable
// TokenCounter so a real tokenizer can be substituted later without
// touching the selection logic, matching the way Packer already keeps
// PackOptions swappable. NewForModel sizes the budget off a model's
// real context window via internal/context's ModelContextWindows
// table, instead of a single fixed default.
package promptbuilder

import (
	"github.com/haasonsaas/nexus-core/internal/agent"
	ctxwindow "github.com/haasonsaas/nexus-core/internal/context"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

// TokenCounter estimates the token cost of a string. No BPE tokenizer
// exists anywhere in the retrieval pack (checked every example repo's
// go.mod), so the default implementation is a char/4 proxy, same as
// the teacher's own MaxChars budget.
type TokenCounter interface {
	Count(s string) int
}

// CharProxyCounter estimates tokens as roughly 4 characters each.
type CharProxyCounter struct{}

// Count implements TokenCounter.
func (CharProxyCounter) Count(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}

// Options configures a Truncator.
type Options struct {
	// MaxMessages caps the number of history messages included,
	// regardless of remaining token budget. Default 60.
	MaxMessages int

	// MaxTokens is the token budget for history + incoming message,
	// excluding the system prompt. Default 8000.
	MaxTokens int

	// MaxToolResultTokens truncates any single tool result beyond this
	// size. Default 1500.
	MaxToolResultTokens int

	// Counter estimates token cost. Defaults to CharProxyCounter.
	Counter TokenCounter
}

func (o Options) withDefaults() Options {
	if o.MaxMessages <= 0 {
		o.MaxMessages = 60
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 8000
	}
	if o.MaxToolResultTokens <= 0 {
		o.MaxToolResultTokens = 1500
	}
	if o.Counter == nil {
		o.Counter = CharProxyCounter{}
	}
	return o
}

// Truncator builds bounded provider requests from a thread's history.
type Truncator struct {
	opts Options
}

// New creates a Truncator, applying defaults for zero-valued options.
func New(opts Options) *Truncator {
	o := opts.withDefaults()
	return &Truncator{opts: o}
}

// reservedOutputFraction is the share of a model's context window held
// back for the assistant's own reply plus tool-call overhead, rather
// than handed to history+incoming selection.
const reservedOutputFraction = 0.25

// NewForModel creates a Truncator whose MaxTokens defaults to a share
// of the named model's real context window, looked up via
// internal/context's ModelContextWindows table, instead of the fixed
// 8000-token default. Any non-zero field in overrides wins over the
// model-derived value.
func NewForModel(model string, overrides Options) *Truncator {
	win := ctxwindow.NewWindowForModel(model)
	opts := overrides
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = int(float64(win.Remaining()) * (1 - reservedOutputFraction))
	}
	return New(opts)
}

// Build assembles the ordered message list for a completion request:
// the assistant's system instructions (returned separately, since
// providers take it out-of-band), then as much of history as fits the
// budget (newest-first selection, oldest dropped first), then the
// incoming message.
func (t *Truncator) Build(assistant *models.Assistant, history []*models.Message, incoming *models.Message) (system string, messages []agent.CompletionMessage) {
	if assistant != nil {
		system = assistant.Instructions
	}

	budget := t.opts.MaxTokens
	var incomingMsg *agent.CompletionMessage
	if incoming != nil {
		m := t.toCompletionMessage(incoming)
		incomingMsg = &m
		budget -= t.opts.Counter.Count(m.Content)
	}

	selectedReverse := make([]agent.CompletionMessage, 0, len(history))
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		src := history[i]
		if src == nil {
			continue
		}
		if count+1 > t.opts.MaxMessages {
			break
		}
		cm := t.toCompletionMessage(src)
		cost := t.opts.Counter.Count(cm.Content)
		if budget-cost < 0 {
			break
		}
		budget -= cost
		count++
		selectedReverse = append(selectedReverse, cm)
	}

	messages = make([]agent.CompletionMessage, 0, len(selectedReverse)+1)
	for i := len(selectedReverse) - 1; i >= 0; i-- {
		messages = append(messages, selectedReverse[i])
	}
	if incomingMsg != nil {
		messages = append(messages, *incomingMsg)
	}
	return system, messages
}

func (t *Truncator) toCompletionMessage(m *models.Message) agent.CompletionMessage {
	cm := agent.CompletionMessage{
		Role:    string(m.Role),
		Content: m.Content,
	}
	if len(m.ToolCalls) > 0 {
		cm.ToolCalls = m.ToolCalls
	}
	if len(m.ToolResults) > 0 {
		cm.ToolResults = t.truncateToolResults(m.ToolResults)
	}
	return cm
}

func (t *Truncator) truncateToolResults(results []models.ToolResult) []models.ToolResult {
	out := make([]models.ToolResult, len(results))
	limit := t.opts.MaxToolResultTokens * 4 // char proxy, matches CharProxyCounter's ratio
	for i, r := range results {
		if len(r.Content) > limit {
			r.Content = r.Content[:limit] + "...[truncated]"
		}
		out[i] = r
	}
	return out
}
