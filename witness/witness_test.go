package witness

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/precompiles"
	"github.com/colorfulnotion/witgen/queue"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contractB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func smallTrace() *Trace {
	b := NewBuilder()
	b.Write(false, contractA, 1, 9)
	b.Read(false, contractA, 1)
	b.Write(false, contractB, 2, 4)
	b.Rollback(false, contractB, 2)
	b.Read(false, contractA, 3)
	b.Write(true, contractA, 1, 5)
	ts := b.Log(types.EventAuxByte, contractA, 0, 77)
	b.Log(types.EventAuxByte, contractA, 0, 78)
	b.RollbackLog(ts)
	b.Log(types.L1MessageAuxByte, contractB, 0, 1)
	b.Call(func(l precompiles.Layout) precompiles.Work {
		return precompiles.SynthesizeModexp(l, *uint256.NewInt(3), *uint256.NewInt(5), *uint256.NewInt(7))
	})
	b.Call(func(l precompiles.Layout) precompiles.Work {
		return precompiles.SynthesizeSha256(l, precompiles.Sha256Pad([]byte("witness generation")))
	})
	b.Call(func(l precompiles.Layout) precompiles.Work {
		return precompiles.SynthesizeKeccak256(l, precompiles.Keccak256Pad([]byte("witness generation")))
	})
	b.UnroutableCall(common.HexToAddress("0x0000000000000000000000000000000000008011"))
	b.Decommit(types.BytecodeVersionEraVM, []uint256.Int{*uint256.NewInt(1), *uint256.NewInt(2), *uint256.NewInt(3)})
	return b.Trace()
}

func TestRunSmallTrace(t *testing.T) {
	res, err := Run(context.Background(), smallTrace(), types.UniformGeometry(2))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Len(t, res.Resources, len(types.AllResources()))

	// slot A/1 net write, B/2 rolled back without a depth zero read, A/3 protective read
	assert.Equal(t, 2, res.Deduplicated)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 2, res.Resource(types.ResourceStorage).Requests)
	assert.Equal(t, 1, res.Resource(types.ResourceTransientStorage).Requests)
	assert.Equal(t, 1, res.TransientSlots)
	assert.Equal(t, 1, res.Resource(types.ResourceEvents).Requests)
	assert.Equal(t, 1, res.Resource(types.ResourceL1Messages).Requests)
	assert.Equal(t, 1, res.Resource(types.ResourceModexp).Requests)
	assert.Equal(t, 1, res.Resource(types.ResourceKeccak256).Requests)
	assert.Empty(t, res.Resource(types.ResourceEcadd).Circuits)

	sha := res.Resource(types.ResourceSha256)
	require.Len(t, sha.Circuits, 1)
	assert.True(t, sha.Circuits[0].IsFirst())
	assert.True(t, sha.Circuits[0].IsLast())

	decommit := res.Resource(types.ResourceCodeDecommitter)
	require.Len(t, decommit.Circuits, 1)
	assert.Equal(t, 2, decommit.Circuits[0].WorkUnits())

	var memory uint32
	merged := queue.State{}
	for i, rr := range res.Resources {
		memory += rr.Memory.Length
		if i == 0 {
			merged = rr.Memory
			continue
		}
		merged = queue.MergeStates(merged, rr.Memory)
	}
	assert.Equal(t, uint32(4+2+1+3+5+1), memory)
	assert.Equal(t, merged, res.Memory)
	assert.Equal(t, uint32(len(smallTrace().Events)), res.Demux.Input.Length)

	_, err = json.Marshal(res)
	require.NoError(t, err)
}

func TestRunIsDeterministic(t *testing.T) {
	trace, err := DemoTrace(42, 300)
	require.NoError(t, err)
	a, err := Run(context.Background(), trace, types.UniformGeometry(8))
	require.NoError(t, err)
	b, err := Run(context.Background(), trace, types.UniformGeometry(8))
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Memory, b.Memory)
	assert.Equal(t, a.Demux, b.Demux)
	assert.Equal(t, a.Circuits(), b.Circuits())
	for i := range a.Resources {
		assert.Equal(t, a.Resources[i].Queue, b.Resources[i].Queue)
	}
}

func TestRunGeometryOnlyChangesCircuitCount(t *testing.T) {
	trace, err := DemoTrace(7, 200)
	require.NoError(t, err)
	small, err := Run(context.Background(), trace, types.UniformGeometry(1))
	require.NoError(t, err)
	large, err := Run(context.Background(), trace, types.DefaultGeometry())
	require.NoError(t, err)

	assert.Equal(t, small.Memory, large.Memory)
	assert.GreaterOrEqual(t, small.Circuits(), large.Circuits())
	for i := range small.Resources {
		assert.Equal(t, small.Resources[i].Queue, large.Resources[i].Queue)
	}
}

func TestRunAbortsOnInconsistency(t *testing.T) {
	trace := smallTrace()
	trace.Events[1].ReadValue = *uint256.NewInt(8)
	_, err := Run(context.Background(), trace, types.UniformGeometry(2))
	require.Error(t, err)
	assert.True(t, witerrors.IsTraceInconsistency(err))
	assert.True(t, errors.Is(err, witerrors.ErrRReadMismatch))

	trace = smallTrace()
	trace.PrecompileWork = trace.PrecompileWork[:1]
	_, err = Run(context.Background(), trace, types.UniformGeometry(2))
	assert.True(t, errors.Is(err, witerrors.ErrDRequestWithoutWork))
}

func TestRunCapacityErrors(t *testing.T) {
	g := types.UniformGeometry(2)
	g.CyclesPerSha256Circuit = 0
	_, err := Run(context.Background(), smallTrace(), g)
	assert.True(t, witerrors.IsCapacityExhaustion(err))

	g = types.UniformGeometry(1)
	g.Limits = map[string]uint32{"code_decommitter": 1}
	_, err = Run(context.Background(), smallTrace(), g)
	assert.True(t, errors.Is(err, witerrors.ErrGTooManyCircuits))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, smallTrace(), types.UniformGeometry(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyTrace(t *testing.T) {
	res, err := Run(context.Background(), &Trace{}, types.DefaultGeometry())
	require.NoError(t, err)
	assert.Zero(t, res.Circuits())
	assert.Zero(t, res.Demux.Circuits)
	assert.True(t, res.Memory.IsEmpty())
}
