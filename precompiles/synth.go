package precompiles

import (
	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/holiman/uint256"
)

// Layout places the input and output words of a synthesised call.
type Layout struct {
	Timestamp    types.Timestamp
	TxNumber     uint16
	InputPage    types.MemoryPage
	InputOffset  uint32
	OutputPage   types.MemoryPage
	OutputOffset uint32
}

// synthesize builds the request and memory traffic the interpreter would
// record for a call reading rounds[i] in round i and writing out last.
func synthesize(address common.Address, l Layout, rounds [][]uint256.Int, out []uint256.Int) Work {
	reads := 0
	for _, r := range rounds {
		reads += len(r)
	}
	abi := types.PrecompileCallABI{
		InputMemoryOffset:         l.InputOffset,
		InputMemoryLength:         uint32(reads),
		OutputMemoryOffset:        l.OutputOffset,
		OutputMemoryLength:        uint32(len(out)),
		MemoryPageToRead:          l.InputPage,
		MemoryPageToWrite:         l.OutputPage,
		PrecompileInterpretedData: uint64(len(rounds)),
	}
	w := Work{Request: types.NewPrecompileRequest(address, l.Timestamp, l.TxNumber, abi)}
	index := l.InputOffset
	for i, words := range rounds {
		var round chunker.Round
		for j := range words {
			round.Reads = append(round.Reads, types.NewRead(l.Timestamp, l.InputPage, index, &words[j]))
			index++
		}
		if i == len(rounds)-1 {
			for j := range out {
				round.Writes = append(round.Writes, types.NewWrite(l.Timestamp+1, l.OutputPage, l.OutputOffset+uint32(j), &out[j]))
			}
		}
		w.Rounds = append(w.Rounds, round)
	}
	return w
}

func single(address common.Address, l Layout, f compute, in ...uint256.Int) Work {
	return synthesize(address, l, [][]uint256.Int{in}, f(in))
}

// SynthesizeEcadd records an ecadd call on (x1, y1) + (x2, y2).
func SynthesizeEcadd(l Layout, x1, y1, x2, y2 uint256.Int) Work {
	return single(types.EcaddFormalAddress, l, ecadd, x1, y1, x2, y2)
}

// SynthesizeEcmul records an ecmul call on scalar·(x, y).
func SynthesizeEcmul(l Layout, x, y, scalar uint256.Int) Work {
	return single(types.EcmulFormalAddress, l, ecmul, x, y, scalar)
}

// SynthesizeEcrecover records an ecrecover call; v is the recovery id.
func SynthesizeEcrecover(l Layout, hash, v, r, s uint256.Int) Work {
	return single(types.EcrecoverFormalAddress, l, ecrecover, hash, v, r, s)
}

// SynthesizeSecp256r1Verify records a P-256 signature check.
func SynthesizeSecp256r1Verify(l Layout, hash, r, s, x, y uint256.Int) Work {
	return single(types.Secp256r1VerifyFormalAddress, l, secp256r1Verify, hash, r, s, x, y)
}

// SynthesizeModexp records base^exp mod m.
func SynthesizeModexp(l Layout, base, exp, mod uint256.Int) Work {
	return single(types.ModexpFormalAddress, l, modexp, base, exp, mod)
}

// SynthesizeSha256 records the compression of already padded message
// blocks.
func SynthesizeSha256(l Layout, padded []byte) Work {
	state := InitialSha256State()
	var rounds [][]uint256.Int
	for start := 0; start+sha256BlockSize <= len(padded); start += sha256BlockSize {
		block := padded[start : start+sha256BlockSize]
		var a, b uint256.Int
		a.SetBytes32(block[:32])
		b.SetBytes32(block[32:])
		rounds = append(rounds, []uint256.Int{a, b})
		state = state.Compress(block)
	}
	return synthesize(types.Sha256FormalAddress, l, rounds, []uint256.Int{*common.HashToU256(state.H)})
}

// Sha256Pad applies the standard sha256 message padding.
func Sha256Pad(msg []byte) []byte {
	out := append([]byte(nil), msg...)
	out = append(out, 0x80)
	for len(out)%sha256BlockSize != 56 {
		out = append(out, 0)
	}
	bits := uint64(len(msg)) * 8
	for i := 7; i >= 0; i-- {
		out = append(out, byte(bits>>(8*uint(i))))
	}
	return out
}

// SynthesizeKeccak256 records a keccak256 call over a message already padded
// to whole rate blocks, five words per block.
func SynthesizeKeccak256(l Layout, padded []byte) Work {
	state := InitialKeccak256State()
	var rounds [][]uint256.Int
	for start := 0; start+keccakRate <= len(padded); start += keccakRate {
		block := make([]byte, 32*keccakRoundIn)
		copy(block, padded[start:start+keccakRate])
		words := make([]uint256.Int, keccakRoundIn)
		for i := range words {
			words[i].SetBytes32(block[32*i : 32*(i+1)])
		}
		rounds = append(rounds, words)
		state = state.Absorb(block)
	}
	return synthesize(types.Keccak256FormalAddress, l, rounds, []uint256.Int{*common.HashToU256(state.Digest())})
}

// SynthesizeEcpairing records a pairing check over pairs of six words
// (x1, y1, x2_im, x2_re, y2_im, y2_re).
func SynthesizeEcpairing(l Layout, pairs [][6]uint256.Int) Work {
	state := InitialPairingState()
	rounds := make([][]uint256.Int, len(pairs))
	for i := range pairs {
		rounds[i] = pairs[i][:]
		next, err := state.absorb(rounds[i])
		if err != nil {
			panic(err)
		}
		state = next
	}
	out, err := state.outputs()
	if err != nil {
		panic(err)
	}
	return synthesize(types.EcpairingFormalAddress, l, rounds, out)
}

// SynthesizeDecommit records the decommitment of code words into page.
// EraVM code must hold an odd number of words. For EVM the words are the
// blob itself and are padded like SynthesizeBlobDecommit pads them.
func SynthesizeDecommit(version uint8, page types.MemoryPage, ts types.Timestamp, code []uint256.Int) chunker.Work[types.DecommitQuery] {
	if version == types.BytecodeVersionEVM {
		return SynthesizeBlobDecommit(page, ts, wordsToBlock(code))
	}
	return synthesizeDecommit(version, uint16(len(code)), page, ts, code)
}

// SynthesizeBlobDecommit records the decommitment of an EVM blob. The blob
// is zero padded to whole words and to an odd word count; the header keeps
// its length in bytes.
func SynthesizeBlobDecommit(page types.MemoryPage, ts types.Timestamp, blob []byte) chunker.Work[types.DecommitQuery] {
	words := types.BlobLenInWords(uint16(len(blob)))
	padded := make([]byte, 32*int(words))
	copy(padded, blob)
	code := make([]uint256.Int, words)
	for i := range code {
		code[i].SetBytes32(padded[32*i : 32*(i+1)])
	}
	return synthesizeDecommit(types.BytecodeVersionEVM, uint16(len(blob)), page, ts, code)
}

func synthesizeDecommit(version uint8, length uint16, page types.MemoryPage, ts types.Timestamp, code []uint256.Int) chunker.Work[types.DecommitQuery] {
	digest := InitialSha256State().Sum(wordsToBlock(code))
	q := types.DecommitQuery{
		VersionedHash: types.VersionedCodeHash(version, digest, length),
		Page:          page,
		Timestamp:     ts,
		IsFresh:       true,
	}
	w := chunker.Work[types.DecommitQuery]{Request: q}
	for start := 0; start < len(code); start += 2 {
		var round chunker.Round
		for i := start; i < min(start+2, len(code)); i++ {
			round.Writes = append(round.Writes, types.NewWrite(ts, page, uint32(i), &code[i]))
		}
		w.Rounds = append(w.Rounds, round)
	}
	return w
}

// PassthroughWork wraps sorted items with the single empty round the
// passthrough processors expect.
func PassthroughWork[T any](items []T) []chunker.Work[T] {
	out := make([]chunker.Work[T], len(items))
	for i := range items {
		out[i] = chunker.Work[T]{Request: items[i], Rounds: []chunker.Round{{}}}
	}
	return out
}
