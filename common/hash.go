package common

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Blake2Hash is the digest used for circuit outputs and commitments.
func Blake2Hash(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// DomainHash hashes data under a domain tag so digests from different
// subsystems can never collide.
func DomainHash(domain string, data ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(domain))
	var n [4]byte
	for _, d := range data {
		binary.LittleEndian.PutUint32(n[:], uint32(len(d)))
		h.Write(n[:])
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}

func Keccak256(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return BytesToHash(h.Sum(nil))
}

// U256ToHash returns the big-endian 32 byte form of a VM word.
func U256ToHash(v *uint256.Int) Hash {
	return Hash(v.Bytes32())
}

// HashToU256 interprets h as a big-endian VM word.
func HashToU256(h Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}

// AddressToU256 places an address in the low 20 bytes of a VM word.
func AddressToU256(a Address) *uint256.Int {
	return new(uint256.Int).SetBytes20(a[:])
}

// U256ToAddress takes the low 20 bytes of a VM word.
func U256ToAddress(v *uint256.Int) Address {
	b := v.Bytes20()
	return Address(b)
}
