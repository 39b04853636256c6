package precompiles

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"hash"

	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/holiman/uint256"
)

const (
	sha256Magic      = "sha\x03"
	sha256BlockSize  = 64
	sha256MarshalLen = len(sha256Magic) + 32 + sha256BlockSize + 8
)

// Sha256State is the compression state after a whole number of blocks.
type Sha256State struct {
	H      common.Hash `json:"h"`
	Blocks uint64      `json:"blocks"`
}

var sha256IV = func() common.Hash {
	m, err := sha256.New().(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(err)
	}
	return common.BytesToHash(m[len(sha256Magic) : len(sha256Magic)+32])
}()

// InitialSha256State is the state before any block.
func InitialSha256State() Sha256State {
	return Sha256State{H: sha256IV}
}

// hasher resumes a sha256 digest at s.
func (s Sha256State) hasher() hash.Hash {
	buf := make([]byte, 0, sha256MarshalLen)
	buf = append(buf, sha256Magic...)
	buf = append(buf, s.H[:]...)
	buf = append(buf, make([]byte, sha256BlockSize)...)
	buf = binary.BigEndian.AppendUint64(buf, s.Blocks*sha256BlockSize)
	h := sha256.New()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(buf); err != nil {
		panic(err)
	}
	return h
}

// Compress absorbs one 64-byte block.
func (s Sha256State) Compress(block []byte) Sha256State {
	h := s.hasher()
	h.Write(block[:sha256BlockSize])
	m, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(err)
	}
	return Sha256State{H: common.BytesToHash(m[len(sha256Magic) : len(sha256Magic)+32]), Blocks: s.Blocks + 1}
}

// Sum finishes the digest over tail with standard padding.
func (s Sha256State) Sum(tail []byte) common.Hash {
	h := s.hasher()
	h.Write(tail)
	return common.BytesToHash(h.Sum(nil))
}

func wordsToBlock(words []uint256.Int) []byte {
	out := make([]byte, 0, 32*len(words))
	for i := range words {
		b := words[i].Bytes32()
		out = append(out, b[:]...)
	}
	return out
}

// sha256Rounds compresses one caller-padded block of two words per round
// and writes the raw state after the last one.
type sha256Rounds struct{}

// Sha256 returns the processor of the sha256 round function.
func Sha256() chunker.Processor[Request, Sha256State] {
	return sha256Rounds{}
}

func (sha256Rounds) Resource() types.Resource { return types.ResourceSha256 }
func (sha256Rounds) Initial() Sha256State     { return InitialSha256State() }

func (sha256Rounds) Begin(req Request, _ Sha256State) (chunker.Setup, Sha256State, error) {
	return callSetup(&req, req.PrecompileABI().PrecompileInterpretedData), InitialSha256State(), nil
}

func (sha256Rounds) RoundIO(round, total uint64) (int, int) {
	if round+1 == total {
		return 2, 1
	}
	return 2, 0
}

func (sha256Rounds) Apply(req Request, acc Sha256State, round, total uint64, reads, writes []uint256.Int) (Sha256State, error) {
	next := acc.Compress(wordsToBlock(reads))
	if round+1 == total {
		want := []uint256.Int{*common.HashToU256(next.H)}
		if err := compareOutput(types.ResourceSha256, &req, want, writes); err != nil {
			return acc, err
		}
	}
	return next, nil
}

func (sha256Rounds) Finalize(acc Sha256State) common.Hash {
	return acc.H
}
