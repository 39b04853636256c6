package log

import (
	"encoding/json"
	"time"
)

// StructuredLog is one machine-readable record describing a finished unit of
// witness generation (a resource, a store write, a full run). Fields marshal
// in declaration order.
type StructuredLog struct {
	Time    time.Time       `json:"time"`
	RunID   string          `json:"run_id"`
	MsgType string          `json:"msg_type"`
	MsgJSON json.RawMessage `json:"json_encoded"`
	Elapsed uint32          `json:"elapsed,omitempty"` // milliseconds
}

// String renders the record as JSON for text handlers.
func (l StructuredLog) String() string {
	b, err := json.Marshal(l)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// NewStructuredLog builds a record for msg.
func NewStructuredLog(runID string, msgType string, msg any, elapsed time.Duration) (StructuredLog, error) {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return StructuredLog{}, err
	}
	return StructuredLog{
		Time:    time.Now().UTC(),
		RunID:   runID,
		MsgType: msgType,
		MsgJSON: msgJSON,
		Elapsed: uint32(elapsed.Milliseconds()),
	}, nil
}

// Summary emits rec as a single "summary" attribute at info level, so JSON
// handlers nest it and text handlers quote it.
func Summary(module string, runID string, msgType string, msg any, elapsed time.Duration) {
	rec, err := NewStructuredLog(runID, msgType, msg, elapsed)
	if err != nil {
		Error(module, "Summary: failed to marshal msg", "run", runID, "type", msgType, "err", err)
		return
	}
	Root().write(LevelInfo, module, "summary", "record", rec)
}
