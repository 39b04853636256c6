package precompiles

import (
	"bytes"
	"encoding"

	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

const (
	keccakMagic     = "sha\x0b"
	keccakRate      = 136
	keccakStateSize = 200
	keccakRoundIn   = 5
	keccakMarshalLn = len(keccakMagic) + 1 + keccakStateSize + 2
)

// Keccak256State is the sponge after a whole number of rate blocks.
type Keccak256State struct {
	Sponge hexutil.Bytes `json:"sponge"`
	Blocks uint64        `json:"blocks"`
}

// InitialKeccak256State is the all zero sponge.
func InitialKeccak256State() Keccak256State {
	return Keccak256State{Sponge: make(hexutil.Bytes, keccakStateSize)}
}

// Absorb xors one 136-byte rate block into the sponge and permutes it.
func (s Keccak256State) Absorb(block []byte) Keccak256State {
	sponge := s.Sponge
	if len(sponge) != keccakStateSize {
		sponge = make(hexutil.Bytes, keccakStateSize)
		copy(sponge, s.Sponge)
	}
	buf := make([]byte, 0, keccakMarshalLn)
	buf = append(buf, keccakMagic...)
	buf = append(buf, keccakRate)
	buf = append(buf, sponge...)
	buf = append(buf, 0, 0)
	h := sha3.NewLegacyKeccak256()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(buf); err != nil {
		panic(err)
	}
	h.Write(block[:keccakRate])
	m, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(err)
	}
	start := len(keccakMagic) + 1
	return Keccak256State{Sponge: bytes.Clone(m[start : start+keccakStateSize]), Blocks: s.Blocks + 1}
}

// Digest squeezes 32 bytes. The caller must have absorbed the padded final
// block.
func (s Keccak256State) Digest() common.Hash {
	return common.BytesToHash(s.Sponge[:32])
}

// Keccak256Pad applies the keccak pad10*1 rule over the 136-byte rate.
func Keccak256Pad(msg []byte) []byte {
	out := append([]byte(nil), msg...)
	out = append(out, 0x01)
	for len(out)%keccakRate != 0 {
		out = append(out, 0)
	}
	out[len(out)-1] |= 0x80
	return out
}

// keccakRounds absorbs one caller-padded rate block per round, read as five
// words whose trailing 24 bytes are zero, and writes the digest after the
// last one.
type keccakRounds struct{}

// Keccak256 returns the processor of the keccak256 round function.
func Keccak256() chunker.Processor[Request, Keccak256State] {
	return keccakRounds{}
}

func (keccakRounds) Resource() types.Resource { return types.ResourceKeccak256 }
func (keccakRounds) Initial() Keccak256State  { return InitialKeccak256State() }

func (keccakRounds) Begin(req Request, _ Keccak256State) (chunker.Setup, Keccak256State, error) {
	return callSetup(&req, req.PrecompileABI().PrecompileInterpretedData), InitialKeccak256State(), nil
}

func (keccakRounds) RoundIO(round, total uint64) (int, int) {
	if round+1 == total {
		return keccakRoundIn, 1
	}
	return keccakRoundIn, 0
}

func (keccakRounds) Apply(req Request, acc Keccak256State, round, total uint64, reads, writes []uint256.Int) (Keccak256State, error) {
	block := wordsToBlock(reads)
	for _, b := range block[keccakRate:] {
		if b != 0 {
			log.Warn(log.PrecompileMonitoring, "keccak block overflow", "ts", req.Timestamp, "round", round)
			return acc, witerrors.Inconsistency(witerrors.ErrCMemoryQueryMismatch, "keccak256 call at ts %d: round %d carries data past the rate", req.Timestamp, round)
		}
	}
	next := acc.Absorb(block)
	if round+1 == total {
		want := []uint256.Int{*common.HashToU256(next.Digest())}
		if err := compareOutput(types.ResourceKeccak256, &req, want, writes); err != nil {
			return acc, err
		}
	}
	return next, nil
}

func (keccakRounds) Finalize(acc Keccak256State) common.Hash {
	return acc.Digest()
}
