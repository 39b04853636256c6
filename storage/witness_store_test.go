package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runDemo(t *testing.T) *witness.Result {
	t.Helper()
	trace, err := witness.DemoTrace(7, 120)
	require.NoError(t, err)
	res, err := witness.Run(context.Background(), trace, types.UniformGeometry(4))
	require.NoError(t, err)
	return res
}

func TestWitnessStoreRoundTrip(t *testing.T) {
	s, err := NewWitnessStore("", 8)
	require.NoError(t, err)
	defer s.Close()

	res := runDemo(t)
	require.NoError(t, s.PutRun(res))

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{res.RunID}, runs)

	rec, ok, err := s.GetRun(res.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Memory, rec.Memory)
	assert.Equal(t, res.Deduplicated, rec.Deduplicated)

	for _, rr := range res.Resources {
		c, ok, err := s.GetCommitment(res.RunID, rr.Resource)
		require.NoError(t, err)
		require.True(t, ok, rr.Resource.String())
		assert.Equal(t, rr.Queue, c.Requests)
		assert.Equal(t, rr.Memory, c.Memory)
		assert.Equal(t, uint32(len(rr.Circuits)), c.Circuits)
		assert.Equal(t, len(rr.Circuits), rec.Circuits[rr.Resource.String()])

		payloads, err := s.Circuits(res.RunID, rr.Resource)
		require.NoError(t, err)
		require.Len(t, payloads, len(rr.Circuits))
		for i, p := range payloads {
			var head struct {
				Resource types.Resource `json:"resource"`
				Index    int            `json:"index"`
			}
			require.NoError(t, json.Unmarshal(p, &head))
			assert.Equal(t, rr.Resource, head.Resource)
			assert.Equal(t, i, head.Index)
		}
	}
}

func TestWitnessStoreRunsAreImmutable(t *testing.T) {
	s, err := NewWitnessStore("", 8)
	require.NoError(t, err)
	defer s.Close()

	res := runDemo(t)
	require.NoError(t, s.PutRun(res))
	assert.ErrorIs(t, s.PutRun(res), ErrRunExists)
}

func TestWitnessStoreReadOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := NewWitnessStore(dir, 8)
	require.NoError(t, err)
	res := runDemo(t)
	require.NoError(t, s.PutRun(res))
	require.NoError(t, s.Close())

	ro, err := OpenWitnessStoreReadOnly(dir)
	require.NoError(t, err)
	defer ro.Close()
	runs, err := ro.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{res.RunID}, runs)
	assert.Error(t, ro.PutRun(runDemo(t)))
}

func TestWitnessStoreGetCircuitCached(t *testing.T) {
	s, err := NewWitnessStore("", 2)
	require.NoError(t, err)
	defer s.Close()

	res := runDemo(t)
	require.NoError(t, s.PutRun(res))

	storage := res.Resource(types.ResourceStorage)
	require.NotEmpty(t, storage.Circuits)
	first, ok, err := s.GetCircuit(res.RunID, types.ResourceStorage, 0)
	require.NoError(t, err)
	require.True(t, ok)
	again, ok, err := s.GetCircuit(res.RunID, types.ResourceStorage, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(first), string(again))

	_, ok, err = s.GetCircuit(res.RunID, types.ResourceStorage, len(storage.Circuits))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWitnessStoreMissing(t *testing.T) {
	s, err := NewWitnessStore("", 0)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetRun("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.GetCommitment("nope", types.ResourceSha256)
	require.NoError(t, err)
	assert.False(t, ok)
	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
