package common

import (
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordConversions(t *testing.T) {
	v := uint256.NewInt(0xdeadbeef)
	h := U256ToHash(v)
	assert.Equal(t, byte(0xef), h[31])
	assert.Equal(t, v, HashToU256(h))

	addr := HexToAddress("0x00000000000000000000000000000000000000ff")
	word := AddressToU256(addr)
	assert.Equal(t, uint64(0xff), word.Uint64())
	assert.Equal(t, addr, U256ToAddress(word))
}

func TestDomainHashSeparation(t *testing.T) {
	a := DomainHash("witgen/a", []byte("x"))
	b := DomainHash("witgen/b", []byte("x"))
	assert.NotEqual(t, a, b)
	// length prefixes keep ("ab","c") and ("a","bc") apart
	assert.NotEqual(t, DomainHash("d", []byte("ab"), []byte("c")), DomainHash("d", []byte("a"), []byte("bc")))
}

func TestHashJSON(t *testing.T) {
	h := Blake2Hash([]byte("witgen"))
	raw, err := json.Marshal(h)
	require.NoError(t, err)

	var back Hash
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, h, back)
	assert.False(t, back.IsZero())
}

func TestAddressCompare(t *testing.T) {
	lo := HexToAddress("0x01")
	hi := HexToAddress("0x02")
	assert.Equal(t, -1, lo.Compare(hi))
	assert.Equal(t, 1, hi.Compare(lo))
	assert.Equal(t, 0, lo.Compare(lo))
}

func TestHashStrictDecoding(t *testing.T) {
	var h Hash
	assert.Error(t, json.Unmarshal([]byte(`"0x01"`), &h))
	assert.Error(t, json.Unmarshal([]byte(`"zz"`), &h))

	var a Address
	require.NoError(t, json.Unmarshal([]byte(`"0x00000000000000000000000000000000000000ff"`), &a))
	assert.Equal(t, HexToAddress("0xff"), a)
	assert.Error(t, json.Unmarshal([]byte(`"0xff"`), &a))

	m := map[Hash]int{BytesToHash([]byte{1}): 1}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "0x0000000000000000000000000000000000000000000000000000000000000001")
}
