package common

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hash is a 32 byte digest or big-endian VM word.
type Hash ethcommon.Hash

// Address is a 20 byte account address.
type Address ethcommon.Address

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) Hex() string    { return hexutil.Encode(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool   { return h == Hash{} }

// String_short renders the first and last two bytes, for log lines.
func (h Hash) String_short() string {
	s := h.Hex()
	return fmt.Sprintf("%s..%s", s[2:6], s[62:66])
}

// BytesToHash left-pads b, keeping the last 32 bytes when it is longer.
func BytesToHash(b []byte) Hash {
	return Hash(ethcommon.BytesToHash(b))
}

// HexToHash is lenient and meant for literals; decoding of trace input goes
// through UnmarshalText.
func HexToHash(s string) Hash {
	return Hash(ethcommon.HexToHash(s))
}

// MarshalText and UnmarshalText make Hash a 0x-prefixed JSON string and a
// valid YAML or map key. Input must be exactly 32 bytes of hex.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

func (h *Hash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Hash", input, h[:])
}

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) Hex() string    { return ethcommon.Address(a).Hex() }
func (a Address) String() string { return a.Hex() }

func HexToAddress(s string) Address {
	return Address(ethcommon.HexToAddress(s))
}

// Compare orders addresses by their big-endian bytes.
func (a Address) Compare(b Address) int {
	return ethcommon.Address(a).Cmp(ethcommon.Address(b))
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Address", input, a[:])
}
