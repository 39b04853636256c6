package trace

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceFileRoundTrip(t *testing.T) {
	orig, err := witness.DemoTrace(3, 80)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, WriteTrace(path, orig))
	loaded, err := ReadTrace(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)

	g := types.UniformGeometry(4)
	a, err := witness.Run(context.Background(), orig, g)
	require.NoError(t, err)
	b, err := witness.Run(context.Background(), loaded, g)
	require.NoError(t, err)
	assert.Equal(t, a.Memory, b.Memory)
	assert.Equal(t, a.Circuits(), b.Circuits())
}

func TestReadTraceMissing(t *testing.T) {
	_, err := ReadTrace(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestJSONLWriterResult(t *testing.T) {
	tr, err := witness.DemoTrace(5, 60)
	require.NoError(t, err)
	res, err := witness.Run(context.Background(), tr, types.UniformGeometry(3))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	require.NoError(t, w.WriteResult(res))
	require.NoError(t, w.Close())

	recs, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, recs, res.Circuits())
	i := 0
	for _, rr := range res.Resources {
		for j := range rr.Circuits {
			assert.Equal(t, res.RunID, recs[i].RunID)
			assert.Equal(t, rr.Resource, recs[i].Resource)
			assert.Equal(t, j, recs[i].Index)
			assert.NotEmpty(t, recs[i].Circuit)
			i++
		}
	}
}

func TestJSONLWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteRecord(&CircuitRecord{}), ErrWriterClosed)
	assert.ErrorIs(t, w.Flush(), ErrWriterClosed)
}

func TestJSONLWriterConcurrent(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = w.WriteRecord(&CircuitRecord{RunID: "r", Resource: types.ResourceSha256, Index: i*10 + j})
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())
	recs, err := ReadRecords(&buf)
	require.NoError(t, err)
	assert.Len(t, recs, 80)
}

func TestDiffRecords(t *testing.T) {
	rec := func(r types.Resource, i int, body string) RawCircuitRecord {
		return RawCircuitRecord{RunID: "x", Resource: r, Index: i, Circuit: []byte(body)}
	}
	a := []RawCircuitRecord{
		rec(types.ResourceSha256, 0, `{"units":2,"start_flag":true}`),
		rec(types.ResourceSha256, 1, `{"units":1,"start_flag":false}`),
		rec(types.ResourceEcadd, 0, `{"units":1}`),
	}
	b := []RawCircuitRecord{
		rec(types.ResourceSha256, 0, `{"start_flag":true,"units":2}`),
		rec(types.ResourceSha256, 1, `{"units":3,"start_flag":false}`),
		rec(types.ResourceModexp, 0, `{"units":1}`),
	}
	diffs, err := DiffRecords(a, b)
	require.NoError(t, err)
	require.Len(t, diffs, 3)

	assert.Equal(t, types.ResourceSha256, diffs[0].Resource)
	assert.Equal(t, 1, diffs[0].Index)
	assert.Empty(t, diffs[0].Only)
	assert.Contains(t, diffs[0].Text, "units")

	assert.Equal(t, "left", diffs[1].Only)
	assert.Equal(t, types.ResourceEcadd, diffs[1].Resource)
	assert.Equal(t, "right", diffs[2].Only)
	assert.Equal(t, types.ResourceModexp, diffs[2].Resource)
}

func TestDiffSameTraceDifferentRuns(t *testing.T) {
	tr, err := witness.DemoTrace(11, 50)
	require.NoError(t, err)
	dump := func() []RawCircuitRecord {
		res, err := witness.Run(context.Background(), tr, types.UniformGeometry(2))
		require.NoError(t, err)
		var buf bytes.Buffer
		w := NewJSONLWriter(&buf)
		require.NoError(t, w.WriteResult(res))
		require.NoError(t, w.Close())
		recs, err := ReadRecords(&buf)
		require.NoError(t, err)
		return recs
	}
	diffs, err := DiffRecords(dump(), dump())
	require.NoError(t, err)
	assert.Empty(t, diffs)
}
