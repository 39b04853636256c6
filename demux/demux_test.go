package demux

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(ts uint32, aux uint8, addr common.Address, key uint64) types.RawAccessEvent {
	return types.RawAccessEvent{
		Timestamp: types.Timestamp(ts),
		AuxByte:   aux,
		Address:   addr,
		Key:       *uint256.NewInt(key),
	}
}

func mixedStream() []types.RawAccessEvent {
	contract := common.HexToAddress("0x000000000000000000000000000000000000c0de")
	unknown := common.HexToAddress("0x0000000000000000000000000000000000008011")
	return []types.RawAccessEvent{
		event(1, types.StorageAuxByte, contract, 1),
		event(2, types.PrecompileAuxByte, types.Sha256FormalAddress, 10),
		event(3, types.EventAuxByte, contract, 0),
		event(4, types.TransientStorageAuxByte, contract, 2),
		event(5, types.PrecompileAuxByte, types.Keccak256FormalAddress, 11),
		event(6, types.StorageAuxByte, contract, 3),
		event(7, types.PrecompileAuxByte, types.Sha256FormalAddress, 12),
		event(8, types.L1MessageAuxByte, contract, 0),
		event(9, types.PrecompileAuxByte, types.EcpairingFormalAddress, 13),
		event(10, types.PrecompileAuxByte, unknown, 14),
	}
}

func TestDemuxPartitionsInOrder(t *testing.T) {
	q, err := Demux(mixedStream())
	require.NoError(t, err)

	require.Len(t, q.Storage, 2)
	assert.Equal(t, uint32(0), q.Storage[0].InsertionIndex)
	assert.Equal(t, uint32(5), q.Storage[1].InsertionIndex)
	require.Len(t, q.TransientStorage, 1)
	assert.Equal(t, uint32(3), q.TransientStorage[0].InsertionIndex)
	assert.Len(t, q.Events, 1)
	assert.Len(t, q.L1Messages, 1)

	sha := q.Precompiles[types.ResourceSha256]
	require.Len(t, sha, 2)
	assert.Equal(t, types.Timestamp(2), sha[0].Timestamp)
	assert.Equal(t, types.Timestamp(7), sha[1].Timestamp)
	assert.Equal(t, 1, q.Len(types.ResourceEcpairing))
	assert.Equal(t, 0, q.Len(types.ResourceEcrecover))
	keccak := q.Precompiles[types.ResourceKeccak256]
	require.Len(t, keccak, 1)
	assert.Equal(t, types.Timestamp(5), keccak[0].Timestamp)
	assert.Equal(t, 1, q.Dropped)
}

func TestDemuxIsAPartition(t *testing.T) {
	stream := mixedStream()
	q, err := Demux(stream)
	require.NoError(t, err)
	total := q.Dropped
	for _, r := range types.AllResources() {
		total += q.Len(r)
	}
	assert.Equal(t, len(stream), total)
}

func TestDemuxErrors(t *testing.T) {
	bad := event(1, 9, types.Sha256FormalAddress, 0)
	_, err := Demux([]types.RawAccessEvent{bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, witerrors.ErrDUnknownAuxByte))
	assert.True(t, witerrors.IsTraceInconsistency(err))

	rolled := event(1, types.PrecompileAuxByte, types.Sha256FormalAddress, 0)
	rolled.Rollback = true
	_, err = Demux([]types.RawAccessEvent{rolled})
	assert.True(t, errors.Is(err, witerrors.ErrDPrecompileRollback))
}

func TestCommit(t *testing.T) {
	stream := mixedStream()
	q, err := Demux(stream)
	require.NoError(t, err)

	c, err := Commit(stream, q, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Circuits)
	assert.Equal(t, uint32(len(stream)), c.Input.Length)
	assert.Equal(t, uint32(2), c.Outputs[types.ResourceStorage].Length)
	_, ok := c.Outputs[types.ResourceEcrecover]
	assert.False(t, ok)

	require.Len(t, c.Segments, 3)
	assert.Equal(t, c.Input.Head, c.Segments[0].Head)
	assert.Equal(t, c.Segments[0].Tail, c.Segments[1].Head)
	assert.Equal(t, c.Segments[1].Tail, c.Segments[2].Head)
	assert.Equal(t, c.Input.Tail, c.Segments[2].Tail)
	assert.Equal(t, []uint32{4, 4, 2}, []uint32{c.Segments[0].Length, c.Segments[1].Length, c.Segments[2].Length})

	again, err := Commit(stream, q, 4)
	require.NoError(t, err)
	assert.Equal(t, c, again)

	_, err = Commit(stream, q, 0)
	assert.True(t, witerrors.IsCapacityExhaustion(err))
}

func TestCircuits(t *testing.T) {
	n, err := Circuits(0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = Circuits(10, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = Circuits(11, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
