// Package streamfanout is the Stream Fan-Out (C8): it mirrors every
// canonical event emitted during a turn to a capped Redis stream,
// best-effort, so an out-of-process observer (a dashboard, a second
// client connection) can tail a run without being on the primary
// event channel.
//
// Mirroring failures are logged and swallowed, never propagated to
// the caller — the same "best-effort; ignore errors" contract the
// teacher's subagent.Manager.Spawn uses for its announcer callback.
package streamfanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/haasonsaas/nexus-core/pkg/models"
)

const (
	// maxStreamLen is the approximate cap passed to XADD's MAXLEN~.
	maxStreamLen = 1000

	// streamTTL is the expiry set once per stream via the ttl_set
	// sentinel.
	streamTTL = 24 * 3600 // seconds
)

func streamKey(runID string) string {
	return fmt.Sprintf("stream:%s", runID)
}

func ttlSentinelKey(runID string) string {
	return fmt.Sprintf("stream:%s::ttl_set", runID)
}

// Mirror fans canonical events out to Redis Streams.
type Mirror struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New creates a Mirror. A nil logger falls back to slog.Default.
func New(rdb *redis.Client, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{rdb: rdb, logger: logger}
}

// Emit mirrors a single canonical event. It never returns an error to
// the caller: failures are logged and swallowed so a Redis outage
// never interrupts the client-facing event stream.
func (m *Mirror) Emit(ctx context.Context, evt models.Event) {
	key := streamKey(evt.RunID)
	fields := flatten(evt)

	if err := m.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		m.logger.Warn("streamfanout: mirror failed", "run_id", evt.RunID, "error", err)
		return
	}

	m.ensureTTL(ctx, evt.RunID)
}

// ensureTTL issues EXPIRE on the stream key exactly once, guarded by a
// sentinel key set with SETNX semantics (SetNX).
func (m *Mirror) ensureTTL(ctx context.Context, runID string) {
	sentinel := ttlSentinelKey(runID)
	ok, err := m.rdb.SetNX(ctx, sentinel, "1", 0).Result()
	if err != nil {
		m.logger.Warn("streamfanout: ttl sentinel check failed", "run_id", runID, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := m.rdb.Expire(ctx, streamKey(runID), streamTTL).Err(); err != nil {
		m.logger.Warn("streamfanout: expire failed", "run_id", runID, "error", err)
	}
}

// flatten serializes an Event into XADD field/value pairs. Nested
// fields become JSON strings, nil becomes "", booleans become
// "True"/"False" (matching the teacher's Python-originated wire
// convention recorded in SPEC_FULL.md), other scalars pass through.
func flatten(evt models.Event) map[string]interface{} {
	out := map[string]interface{}{
		"type":          string(evt.Type),
		"run_id":        evt.RunID,
		"delta":         evt.Delta,
		"status":        string(evt.Status),
		"error":         evt.Error,
		"tool_call_id":  evt.ToolCallID,
		"tool_name":     evt.ToolName,
		"action_id":     evt.ActionID,
		"sequence":      evt.Sequence,
	}
	if len(evt.Arguments) > 0 {
		out["arguments"] = string(evt.Arguments)
	} else {
		out["arguments"] = ""
	}
	if evt.Result != nil {
		b, err := json.Marshal(evt.Result)
		if err == nil {
			out["result"] = string(b)
		}
	} else {
		out["result"] = ""
	}
	return out
}
