// Package toolrouter is the Tool Router (C5): it detects tool-call
// payloads in a normalized event stream, classifies each call as
// platform (handled in-process) or consumer (handed off to an
// external SDK), and assigns each a canonical call id.
//
// Classification is the teacher's own allow/deny pattern matching —
// internal/tools/policy/resolver.go's matchToolPattern and
// Resolver.IsAllowed — generalized from a single allow/deny axis into
// a two-way platform/consumer partition: anything in the platform set
// is handled locally, everything else is a consumer tool.
package toolrouter

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus-core/pkg/models"
)

// Class is the platform/consumer partition of a detected tool call.
type Class int

const (
	// Platform tools are executed in-process by a Handler (C6).
	Platform Class = iota
	// Consumer tools are handed off to an external SDK (C7).
	Consumer
)

func (c Class) String() string {
	if c == Platform {
		return "platform"
	}
	return "consumer"
}

// platformTools is the fixed well-known set from spec §4.5; anything
// not in this set is a consumer tool.
var platformTools = map[string]bool{
	"code_interpreter":       true,
	"web_search":             true,
	"vector_store_search":    true,
	"computer":               true,
	"perform_web_search":     true,
	"read_web_page":          true,
	"search_web_page":        true,
	"scroll_web_page":        true,
	"file_search":            true,
	"read_scratchpad":        true,
	"update_scratchpad":      true,
	"append_scratchpad":      true,
	"record_tool_decision":   true,
	"delegate_research_task": true,
}

// Classify returns Platform for the fixed platform-builtin set,
// Consumer for everything else.
func Classify(name string) Class {
	if platformTools[name] {
		return Platform
	}
	return Consumer
}

// Call is a detected, classified tool invocation ready for dispatch.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Class     Class
}

// fcBlock matches a <fc>{...}</fc> payload, DOTALL + case-insensitive,
// per spec §4.5's regex/text mode.
var fcBlock = regexp.MustCompile(`(?is)<fc>\s*(\{.*?\})\s*</fc>`)

// rawToolCallSchema is the shape a bare JSON payload must satisfy in
// text mode when no <fc> block is present.
type rawToolCallSchema struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DetectText scans accumulated stream output for a single tool call in
// regex/text mode: first a <fc>...</fc> block, then a bare JSON object
// matching the tool-call schema. Returns false if neither matches.
func DetectText(output string) (*Call, bool) {
	if m := fcBlock.FindStringSubmatch(output); m != nil {
		if call, ok := parseToolCallJSON(m[1]); ok {
			return call, true
		}
	}
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") {
		if call, ok := parseToolCallJSON(trimmed); ok {
			return call, true
		}
	}
	return nil, false
}

func parseToolCallJSON(payload string) (*Call, bool) {
	var raw rawToolCallSchema
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, false
	}
	if !validSchema(raw) {
		return nil, false
	}
	args, ok := normalizeArguments(raw.Arguments)
	if !ok {
		return nil, false
	}
	return newCall(raw.Name, args), true
}

func validSchema(raw rawToolCallSchema) bool {
	return strings.TrimSpace(raw.Name) != "" && len(raw.Arguments) > 0
}

// normalizeArguments accepts either a JSON object, or a JSON-encoded
// string that itself parses to an object, per spec §4.5's schema rule
// that arguments may be "object, or a JSON-encoded string that parses
// to an object".
func normalizeArguments(raw json.RawMessage) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		return raw, true
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		inner := strings.TrimSpace(s)
		if !strings.HasPrefix(inner, "{") {
			return nil, false
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(inner), &obj); err != nil {
			return nil, false
		}
		return json.RawMessage(inner), true
	}
	return nil, false
}

// DetectNative builds a Call from the Normalizer's already-separated
// tool_name + call_arguments fields (native-tool-call mode); the
// router trusts the provider's own structured tool-call output and
// only applies schema validation + id assignment + classification.
func DetectNative(name string, arguments json.RawMessage) (*Call, bool) {
	if strings.TrimSpace(name) == "" {
		return nil, false
	}
	args, ok := normalizeArguments(arguments)
	if !ok {
		return nil, false
	}
	return newCall(name, args), true
}

func newCall(name string, args json.RawMessage) *Call {
	return &Call{
		ID:        newCallID(),
		Name:      name,
		Arguments: args,
		Class:     Classify(name),
	}
}

func newCallID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "call_" + hex.EncodeToString(b)
}

// HasConsumer reports whether any call in the batch is a consumer
// call, matching spec §4.9's has_consumer short-circuit check.
func HasConsumer(batch []*Call) bool {
	for _, c := range batch {
		if c.Class == Consumer {
			return true
		}
	}
	return false
}

// ToToolCall converts a detected Call into the persisted
// models.ToolCall shape for the assistant message that announced it.
func ToToolCall(c *Call) models.ToolCall {
	return models.ToolCall{ID: c.ID, Name: c.Name, Input: c.Arguments}
}
