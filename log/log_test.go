package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{"trace": true, "DEBUG": true, "info": true, "warning": true, "error": true, "loud": false}
	for in, ok := range cases {
		_, err := ParseLevel(in)
		if ok {
			assert.NoError(t, err, in)
		} else {
			assert.Error(t, err, in)
		}
	}
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	defer SetDefault(prev)
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false)))

	DisableModule(ChunkerMonitoring)
	Debug(ChunkerMonitoring, "hidden")
	assert.Empty(t, buf.String())

	EnableModule(ChunkerMonitoring)
	defer DisableModule(ChunkerMonitoring)
	Debug(ChunkerMonitoring, "shown", "batch", 3)
	out := buf.String()
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "module=chunk_mod")
	assert.Contains(t, out, "DEBUG")

	buf.Reset()
	Info(SorterMonitoring, "always")
	assert.True(t, strings.Contains(buf.String(), "always"))
}

func TestStructuredLogFieldOrder(t *testing.T) {
	rec, err := NewStructuredLog("run-1", "ecadd", map[string]int{"circuits": 2}, 5*time.Millisecond)
	require.NoError(t, err)
	b, err := json.Marshal(rec)
	require.NoError(t, err)

	s := string(b)
	assert.Less(t, strings.Index(s, `"time"`), strings.Index(s, `"run_id"`))
	assert.Less(t, strings.Index(s, `"msg_type"`), strings.Index(s, `"json_encoded"`))
	assert.Contains(t, s, `"elapsed":5`)
	assert.NotContains(t, s, `"metadata"`)

	quick, err := NewStructuredLog("run-1", "ecadd", nil, 0)
	require.NoError(t, err)
	b, err = json.Marshal(quick)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"json_encoded":null`)
	assert.NotContains(t, string(b), `"elapsed"`)
}

func TestEnableModules(t *testing.T) {
	defer DisableModule(DemuxMonitoring)
	defer DisableModule(QueueMonitoring)
	EnableModules(" demux_mod, ,queue_mod")
	assert.True(t, isModuleEnabled(DemuxMonitoring))
	assert.True(t, isModuleEnabled(QueueMonitoring))
	assert.False(t, isModuleEnabled(WitnessMonitoring))

	EnableModules("all")
	for _, m := range knownModules {
		assert.True(t, isModuleEnabled(m), m)
		DisableModule(m)
	}
}

func TestRunLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	defer SetDefault(prev)
	require.NoError(t, InitLoggerFormat(&buf, "info", "json"))

	Root().ForRun("run-7").Info(WitnessMonitoring, "run finished", "circuits", 4)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "run finished", rec["msg"])
	assert.Equal(t, "run-7", rec["run"])
	assert.Equal(t, WitnessMonitoring, rec["module"])
	assert.EqualValues(t, 4, rec["circuits"])

	buf.Reset()
	Root().Debug(WitnessMonitoring, "below level")
	assert.Empty(t, buf.String())

	assert.Error(t, InitLoggerFormat(&buf, "info", "xml"))
}

func TestSummaryNestsRecord(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	defer SetDefault(prev)
	require.NoError(t, InitLoggerFormat(&buf, "info", "json"))

	Summary(WitnessMonitoring, "run-3", "sha256", map[string]int{"circuits": 2}, 7*time.Millisecond)
	var out struct {
		Msg    string        `json:"msg"`
		Record StructuredLog `json:"record"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "summary", out.Msg)
	assert.Equal(t, "run-3", out.Record.RunID)
	assert.Equal(t, "sha256", out.Record.MsgType)
	assert.JSONEq(t, `{"circuits":2}`, string(out.Record.MsgJSON))
	assert.EqualValues(t, 7, out.Record.Elapsed)
}
