// Package normalize turns raw provider deltas into the canonical event
// stream the rest of the orchestration core consumes. It is a pure
// state machine: no I/O, no provider awareness beyond the chunk shape
// it's handed, mirroring the way internal/agent/providers/*.go keeps
// protocol parsing isolated from everything downstream.
package normalize

import (
	"strings"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/pkg/models"
)

// State is the normalizer's current parse mode, set by an open tag and
// cleared by its matching close tag.
type State int

const (
	StateContent State = iota
	StateThink
	StateFunctionCall
	StatePlan
	StateChannelReasoning
	StateChannelToolMeta
	StateChannelToolPayload
	StateUnknown
)

// tagRule is one registered open/close pair and the state it switches
// the normalizer into while inside it. Rules are table-driven so new
// provider dialects (Hermes, GPT-OSS channel markers, ...) can be added
// without touching the scan loop itself.
type tagRule struct {
	open  string
	close string
	state State
}

var defaultRules = []tagRule{
	{"<think>", "</think>", StateThink},
	{"<fc>", "</fc>", StateFunctionCall},
	{"<plan>", "</plan>", StatePlan},
	{"<|channel|>analysis<|message|>", "<|end|>", StateChannelReasoning},
	{"<|channel|>commentary to=", "<|constrain|>", StateChannelToolMeta},
	{"<|channel|>commentary<|message|>", "<|end|>", StateChannelToolPayload},
}

// maxPartialTagLen bounds the rolling buffer kept across chunk
// boundaries while waiting to see whether a partial tag will complete.
// Sized to the longest open tag literal registered.
const maxPartialTagLen = 40

// Normalizer is a per-run instance of the tag/channel state machine. It
// is NOT safe for concurrent use by multiple goroutines; callers run one
// per active stream, the same discipline the teacher's per-provider
// processStream functions use for their own index-keyed accumulator state.
type Normalizer struct {
	rules   []tagRule
	state   State
	buf     strings.Builder // rolling buffer for partial-tag detection
	seq     int64
	runID   string
	toolIdx map[int]*toolCallAccum
}

type toolCallAccum struct {
	id   string
	name string
	args strings.Builder
}

// New creates a Normalizer for the given run, using the default tag
// table plus any additional rules registered via RegisterTag.
func New(runID string) *Normalizer {
	rules := make([]tagRule, len(defaultRules))
	copy(rules, defaultRules)
	return &Normalizer{
		rules:   rules,
		state:   StateContent,
		runID:   runID,
		toolIdx: make(map[int]*toolCallAccum),
	}
}

// RegisterTag adds a provider-specific tag pair to this normalizer's
// table. Must be called before Normalize starts consuming chunks.
func (n *Normalizer) RegisterTag(open, close string, state State) {
	n.rules = append(n.rules, tagRule{open: open, close: close, state: state})
}

// Normalize consumes provider chunks and emits canonical events. It
// closes the output channel once the input channel closes or a chunk
// carries a non-nil Error (the final event in that case is EventError).
func (n *Normalizer) Normalize(chunks <-chan *agent.CompletionChunk) <-chan models.Event {
	out := make(chan models.Event, 16)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Error != nil {
				out <- n.emit(models.EventError, "", chunk.Error.Error())
				return
			}
			if chunk.ThinkingStart || chunk.Thinking != "" || chunk.ThinkingEnd {
				if chunk.Thinking != "" {
					out <- n.emit(models.EventReasoning, chunk.Thinking, "")
				}
			}
			if chunk.ToolCall != nil {
				out <- n.emitToolCall(chunk.ToolCall)
			}
			if chunk.Text != "" {
				n.feed(chunk.Text, out)
			}
			if chunk.Done {
				n.flush(out)
				out <- n.emit(models.EventDone, "", "")
				return
			}
		}
		n.flush(out)
	}()
	return out
}

// flush drains any bytes still held back in n.buf for partial-tag
// detection, emitting them as the current state's event type. Called
// once at end of stream so trailing content/reasoning/tool-argument
// text that never saw a following tag isn't silently dropped.
func (n *Normalizer) flush(out chan<- models.Event) {
	if n.buf.Len() == 0 {
		return
	}
	text := n.buf.String()
	n.buf.Reset()
	out <- n.emitForState(n.state, text)
}

// feed runs the literal-text tag/channel state machine over one chunk
// of streamed text, carrying any partial tag prefix across calls via
// n.buf. Longest-match tag literals win; an exact closer for the
// current state always wins over a new opener.
func (n *Normalizer) feed(text string, out chan<- models.Event) {
	data := n.buf.String() + text
	n.buf.Reset()

	for len(data) > 0 {
		if n.state != StateContent {
			rule := n.ruleForState(n.state)
			if rule == nil {
				// Shouldn't happen: state implies a registered rule.
				n.state = StateContent
				continue
			}
			if idx := strings.Index(data, rule.close); idx >= 0 {
				if idx > 0 {
					out <- n.emitForState(n.state, data[:idx])
				}
				data = data[idx+len(rule.close):]
				n.state = StateContent
				continue
			}
			// No closer yet in this chunk; emit what we can keep and
			// hold back a tail long enough to catch a split closer.
			holdBack := minInt(len(rule.close)-1, len(data))
			if holdBack < len(data) {
				out <- n.emitForState(n.state, data[:len(data)-holdBack])
			}
			n.buf.WriteString(data[len(data)-holdBack:])
			return
		}

		// Content mode: look for the earliest-starting, longest-matching
		// opener among all registered rules.
		bestIdx := -1
		var bestRule *tagRule
		for i := range n.rules {
			r := &n.rules[i]
			if idx := strings.Index(data, r.open); idx >= 0 {
				if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(r.open) > len(bestRule.open)) {
					bestIdx, bestRule = idx, r
				}
			}
		}
		if bestRule == nil {
			// Hold back a tail that could be the prefix of any opener.
			holdBack := minInt(maxPartialTagLen, len(data))
			if holdBack < len(data) {
				out <- n.emit(models.EventContent, data[:len(data)-holdBack], "")
			}
			n.buf.WriteString(data[len(data)-holdBack:])
			return
		}
		if bestIdx > 0 {
			out <- n.emit(models.EventContent, data[:bestIdx], "")
		}
		data = data[bestIdx+len(bestRule.open):]
		n.state = bestRule.state
	}
}

func (n *Normalizer) ruleForState(s State) *tagRule {
	for i := range n.rules {
		if n.rules[i].state == s {
			return &n.rules[i]
		}
	}
	return nil
}

func (n *Normalizer) emitForState(s State, text string) models.Event {
	switch s {
	case StateThink, StateChannelReasoning:
		return n.emit(models.EventReasoning, text, "")
	case StateFunctionCall, StateChannelToolPayload:
		return n.emit(models.EventCallArguments, text, "")
	case StateChannelToolMeta:
		return n.emit(models.EventToolName, text, "")
	case StatePlan:
		return n.emit(models.EventReasoning, text, "")
	default:
		return n.emit(models.EventContent, text, "")
	}
}

func (n *Normalizer) emitToolCall(call *models.ToolCall) models.Event {
	n.seq++
	return models.Event{
		Type:       models.EventToolCall,
		RunID:      n.runID,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Arguments:  call.Input,
		Sequence:   n.seq,
	}
}

func (n *Normalizer) emit(t models.EventType, delta, errMsg string) models.Event {
	n.seq++
	return models.Event{
		Type:     t,
		RunID:    n.runID,
		Delta:    delta,
		Error:    errMsg,
		Sequence: n.seq,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
