package precompiles

import (
	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
)

// DecommitState hashes the code of the query in flight and chains the
// verified hashes of the finished ones.
type DecommitState struct {
	Code      Sha256State `json:"code"`
	Decommits uint64      `json:"decommits"`
	Digest    common.Hash `json:"digest"`
}

// DecommitRounds is the number of rounds for a code of numWords words: two
// words per round, the last round carrying the single odd word.
func DecommitRounds(numWords uint16) uint64 {
	return (uint64(numWords) + 1) / 2
}

// validateHeader accepts EraVM code at rest or under construction with an
// odd word count, and EVM blobs with any of their three markers. Blob word
// counts are odd by construction.
func validateHeader(q *types.DecommitQuery) error {
	switch q.Version() {
	case types.BytecodeVersionEraVM:
		if m := q.Marker(); m != types.CodeMarkerAtRest && m != types.CodeMarkerYetConstructed {
			return witerrors.Inconsistency(witerrors.ErrCInvalidHeader, "marker %d in EraVM hash %s", m, q.VersionedHash.Hex())
		}
		if n := q.LenInWords(); n%2 == 0 {
			return witerrors.Inconsistency(witerrors.ErrCInvalidHeader, "%d words in %s, want an odd count", n, q.VersionedHash.Hex())
		}
	case types.BytecodeVersionEVM:
		switch q.Marker() {
		case types.CodeMarkerAtRest, types.CodeMarkerYetConstructed, types.CodeMarkerBlobDelegation:
		default:
			return witerrors.Inconsistency(witerrors.ErrCInvalidHeader, "marker %d in EVM hash %s", q.Marker(), q.VersionedHash.Hex())
		}
	default:
		return witerrors.Inconsistency(witerrors.ErrCInvalidHeader, "version %d in %s", q.Version(), q.VersionedHash.Hex())
	}
	return nil
}

type decommitter struct{}

// CodeDecommitter returns the processor that streams code words into memory
// and checks them against the versioned hash.
func CodeDecommitter() chunker.Processor[types.DecommitQuery, DecommitState] {
	return decommitter{}
}

func (decommitter) Resource() types.Resource { return types.ResourceCodeDecommitter }

func (decommitter) Initial() DecommitState {
	return DecommitState{Code: InitialSha256State()}
}

func (decommitter) Begin(q types.DecommitQuery, acc DecommitState) (chunker.Setup, DecommitState, error) {
	if !q.IsFresh {
		return chunker.Setup{}, acc, witerrors.Inconsistency(witerrors.ErrCStaleDecommit, "%s at page %d", q.VersionedHash.Hex(), q.Page)
	}
	if err := validateHeader(&q); err != nil {
		return chunker.Setup{}, acc, err
	}
	setup := chunker.Setup{
		Rounds:         DecommitRounds(q.LenInWords()),
		Params:         chunker.CallParams{OutputPage: q.Page},
		TimestampWrite: q.Timestamp,
	}
	return setup, DecommitState{Code: InitialSha256State(), Decommits: acc.Decommits, Digest: acc.Digest}, nil
}

func (decommitter) RoundIO(round, total uint64) (int, int) {
	if round+1 == total {
		return 0, 1
	}
	return 0, 2
}

func (decommitter) Apply(q types.DecommitQuery, acc DecommitState, round, total uint64, reads, writes []uint256.Int) (DecommitState, error) {
	data := wordsToBlock(writes)
	if round+1 < total {
		return DecommitState{Code: acc.Code.Compress(data), Decommits: acc.Decommits, Digest: acc.Digest}, nil
	}
	sum := acc.Code.Sum(data)
	copy(sum[0:4], []byte{0, 0, 0, 0})
	if want := q.NormalizedHash(); sum != want {
		return acc, witerrors.Inconsistency(witerrors.ErrCOutputMismatch, "code at page %d hashes to %s, want %s", q.Page, sum.Hex(), want.Hex())
	}
	chain := append(append([]byte{}, acc.Digest.Bytes()...), q.VersionedHash.Bytes()...)
	return DecommitState{
		Code:      Sha256State{H: sum, Blocks: acc.Code.Blocks},
		Decommits: acc.Decommits + 1,
		Digest:    common.Blake2Hash(chain),
	}, nil
}

func (decommitter) Finalize(acc DecommitState) common.Hash {
	return acc.Digest
}
