package queue

import (
	"encoding/binary"
	"math/big"

	"github.com/colorfulnotion/witgen/codec"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

const chunkBytes = fr.Bytes - 1

// hornerBase is the multiplier of the running accumulator. It is fixed for
// all queues so that independently built segments can be merged.
var hornerBase fr.Element

func init() {
	h := common.DomainHash("witgen/queue/horner-base/v1")
	hornerBase.SetBytes(h[:])
}

// ItemDigest hashes the canonical encoding of item with MiMC over the bn254
// scalar field. The encoding is prefixed by its length and packed into
// 31-byte chunks so every absorbed block is a canonical field element.
func ItemDigest(item interface{}) (fr.Element, error) {
	enc, err := codec.Marshal(item)
	if err != nil {
		return fr.Element{}, witerrors.Inconsistency(witerrors.ErrQItemEncoding, "%T: %v", item, err)
	}
	h := mimc.NewMiMC()
	var block [fr.Bytes]byte
	binary.BigEndian.PutUint64(block[fr.Bytes-8:], uint64(len(enc)))
	if _, err := h.Write(block[:]); err != nil {
		return fr.Element{}, witerrors.Inconsistency(witerrors.ErrQItemEncoding, "length block: %v", err)
	}
	for off := 0; off < len(enc); off += chunkBytes {
		var chunk [fr.Bytes]byte
		end := min(off+chunkBytes, len(enc))
		copy(chunk[1:], enc[off:end])
		if _, err := h.Write(chunk[:]); err != nil {
			return fr.Element{}, witerrors.Inconsistency(witerrors.ErrQItemEncoding, "chunk %d: %v", off/chunkBytes, err)
		}
	}
	var d fr.Element
	d.SetBytes(h.Sum(nil))
	return d, nil
}

// absorb returns tail·R + d.
func absorb(tail, d fr.Element) fr.Element {
	var out fr.Element
	out.Mul(&tail, &hornerBase)
	out.Add(&out, &d)
	return out
}

// basePow returns R^n.
func basePow(n int) fr.Element {
	var p fr.Element
	p.Exp(hornerBase, big.NewInt(int64(n)))
	return p
}

// rebase moves a tail computed from head b onto head a after n pushes:
// a·R^n + (tail − b·R^n).
func rebase(a, b, tail fr.Element, pow fr.Element) fr.Element {
	var shiftA, shiftB, out fr.Element
	shiftA.Mul(&a, &pow)
	shiftB.Mul(&b, &pow)
	out.Sub(&tail, &shiftB)
	out.Add(&out, &shiftA)
	return out
}

func toHash(e fr.Element) common.Hash {
	b := e.Bytes()
	return common.Hash(b)
}

func fromHash(h common.Hash) fr.Element {
	var e fr.Element
	e.SetBytes(h[:])
	return e
}
