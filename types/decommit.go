package types

import (
	"encoding/binary"

	"github.com/colorfulnotion/witgen/common"
)

// Bytecode versions carried in byte 0 of a versioned code hash.
const (
	BytecodeVersionEraVM uint8 = 1
	BytecodeVersionEVM   uint8 = 2
)

// Markers carried in byte 1 of a versioned code hash. Delegation only
// exists for EVM blobs.
const (
	CodeMarkerAtRest         uint8 = 0
	CodeMarkerYetConstructed uint8 = 1
	CodeMarkerBlobDelegation uint8 = 2
)

// DecommitQuery asks for the code behind VersionedHash to be written into
// Page starting at index 0.
type DecommitQuery struct {
	VersionedHash common.Hash `json:"versioned_hash"`
	Page          MemoryPage  `json:"page"`
	Timestamp     Timestamp   `json:"timestamp"`
	IsFresh       bool        `json:"is_fresh"`
}

// Version returns the bytecode version from the hash header.
func (q *DecommitQuery) Version() uint8 {
	return q.VersionedHash[0]
}

// Marker returns byte 1 of the hash header.
func (q *DecommitQuery) Marker() uint8 {
	return q.VersionedHash[1]
}

// headerLength is bytes 2..4 of the header: a word count for EraVM code, the
// preimage length in bytes for EVM blobs.
func (q *DecommitQuery) headerLength() uint16 {
	return binary.BigEndian.Uint16(q.VersionedHash[2:4])
}

// LenInWords returns the number of 32-byte words written by the
// decommitment. EVM blobs are zero padded to whole words and then to an odd
// word count.
func (q *DecommitQuery) LenInWords() uint16 {
	n := q.headerLength()
	if q.Version() != BytecodeVersionEVM {
		return n
	}
	return BlobLenInWords(n)
}

// BlobLenInWords is the padded word count of an EVM blob of n bytes.
func BlobLenInWords(n uint16) uint16 {
	words := n / 32
	if n%32 != 0 {
		words++
	}
	if words&1 == 0 {
		words++
	}
	return words
}

// NormalizedHash is the versioned hash with its 4 header bytes cleared.
func (q *DecommitQuery) NormalizedHash() common.Hash {
	h := q.VersionedHash
	copy(h[0:4], []byte{0, 0, 0, 0})
	return h
}

// VersionedCodeHash builds the header-prefixed hash of code at rest: the
// sha256 digest with bytes 0..4 replaced by version, the at-rest marker and
// the big-endian length. length is a word count for EraVM code and a byte
// count for EVM blobs.
func VersionedCodeHash(version uint8, digest common.Hash, length uint16) common.Hash {
	h := digest
	h[0] = version
	h[1] = CodeMarkerAtRest
	binary.BigEndian.PutUint16(h[2:4], length)
	return h
}
