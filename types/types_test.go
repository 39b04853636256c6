package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecompileABIPacking(t *testing.T) {
	abi := PrecompileCallABI{
		InputMemoryOffset:         10,
		InputMemoryLength:         4,
		OutputMemoryOffset:        20,
		OutputMemoryLength:        3,
		MemoryPageToRead:          7,
		MemoryPageToWrite:         8,
		PrecompileInterpretedData: 5,
	}
	word := abi.ToU256()
	assert.Equal(t, uint64(10)|uint64(4)<<32, word[0])
	assert.Equal(t, uint64(5), word[3])
	assert.Equal(t, abi, PrecompileCallABIFromU256(word))

	ev := NewPrecompileRequest(EcaddFormalAddress, 100, 1, abi)
	assert.Equal(t, ChannelPrecompile, ev.Channel())
	assert.Equal(t, abi, ev.PrecompileABI())
	r, ok := PrecompileResource(&ev)
	require.True(t, ok)
	assert.Equal(t, ResourceEcadd, r)

	ev.Address = common.HexToAddress("0x8010")
	r, ok = PrecompileResource(&ev)
	require.True(t, ok)
	assert.Equal(t, ResourceKeccak256, r)
	assert.True(t, r.IsPrecompile())

	ev.Address = common.HexToAddress("0x8011")
	_, ok = PrecompileResource(&ev)
	assert.False(t, ok)
}

func TestSlotOrdering(t *testing.T) {
	a := SlotKey{ShardID: 0, Address: common.HexToAddress("0x01"), Key: *uint256.NewInt(9)}
	b := SlotKey{ShardID: 0, Address: common.HexToAddress("0x01"), Key: *uint256.NewInt(10)}
	c := SlotKey{ShardID: 0, Address: common.HexToAddress("0x02"), Key: *uint256.NewInt(0)}
	d := SlotKey{ShardID: 1, Address: common.HexToAddress("0x00"), Key: *uint256.NewInt(0)}
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
	assert.Equal(t, -1, c.Compare(d))
	assert.Equal(t, 0, a.Compare(a))
}

func TestDecommitHeader(t *testing.T) {
	digest := common.Blake2Hash([]byte("code"))
	vh := VersionedCodeHash(BytecodeVersionEraVM, digest, 3)
	q := DecommitQuery{VersionedHash: vh}
	assert.Equal(t, BytecodeVersionEraVM, q.Version())
	assert.Equal(t, uint16(3), q.LenInWords())
	norm := q.NormalizedHash()
	assert.Equal(t, []byte{0, 0, 0, 0}, norm[:4])
	assert.Equal(t, digest[4:], norm[4:])
}

func TestBlobLenInWords(t *testing.T) {
	cases := map[uint16]uint16{0: 1, 1: 1, 32: 1, 33: 3, 64: 3, 65: 3, 96: 3, 97: 5, 0xffff: 2049}
	for bytes, words := range cases {
		q := DecommitQuery{VersionedHash: VersionedCodeHash(BytecodeVersionEVM, common.Hash{}, bytes)}
		assert.Equal(t, words, q.LenInWords(), "len %d", bytes)
	}
	// EraVM headers carry the word count as is
	q := DecommitQuery{VersionedHash: VersionedCodeHash(BytecodeVersionEraVM, common.Hash{}, 64)}
	assert.Equal(t, uint16(64), q.LenInWords())
}

func TestResourceText(t *testing.T) {
	for _, r := range AllResources() {
		b, err := r.MarshalText()
		require.NoError(t, err)
		var back Resource
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, r, back)
	}
	assert.True(t, ResourceSha256.IsPrecompile())
	assert.False(t, ResourceCodeDecommitter.IsPrecompile())
}

func TestLoadGeometry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geometry.yaml")
	body := "cycles_per_sha256_circuit: 3\ncycles_per_ecadd_circuit: 2\nlimits:\n  ecadd: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	g, err := LoadGeometry(path)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Capacity(ResourceSha256))
	assert.Equal(t, 2, g.Capacity(ResourceEcadd))
	assert.Equal(t, int(DefaultGeometry().CyclesPerModexpCircuit), g.Capacity(ResourceModexp))
	assert.Equal(t, 4, g.MaxCircuits(ResourceEcadd))
	assert.Equal(t, 0, g.MaxCircuits(ResourceEcmul))
	assert.Equal(t, 293, g.Capacity(ResourceKeccak256))
	require.NoError(t, g.Validate())

	g.CyclesPerEcmulCircuit = 0
	err = g.Validate()
	require.Error(t, err)
	assert.True(t, witerrors.IsCapacityExhaustion(err))

	require.NoError(t, os.WriteFile(path, []byte("cycles_per_nothing: 1\n"), 0o644))
	_, err = LoadGeometry(path)
	assert.Error(t, err)
}
