// Package precompiles holds the round processors of every resource the
// chunker can cut into circuits: the single-round precompiles, the
// multi-round sha256 and pairing processors, the code decommitter and the
// passthrough sorters for storage, transient storage and log queues.
package precompiles

import (
	"encoding/binary"

	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
)

// Request is the queue item of every precompile resource.
type Request = types.RawAccessEvent

// Work is the recorded memory traffic of one precompile call.
type Work = chunker.Work[Request]

// callSetup derives pointers and timestamps from the call ABI. Reads happen
// at the request timestamp and writes one tick later.
func callSetup(req *Request, rounds uint64) chunker.Setup {
	abi := req.PrecompileABI()
	return chunker.Setup{
		Rounds: rounds,
		Params: chunker.CallParams{
			InputPage:    abi.MemoryPageToRead,
			InputOffset:  abi.InputMemoryOffset,
			OutputPage:   abi.MemoryPageToWrite,
			OutputOffset: abi.OutputMemoryOffset,
		},
		TimestampRead:  req.Timestamp,
		TimestampWrite: req.Timestamp + 1,
	}
}

// CallLog is the accumulator of single-round resources: a running blake2b
// chain over every written word.
type CallLog struct {
	Calls  uint64      `json:"calls"`
	Digest common.Hash `json:"digest"`
}

func (l CallLog) absorb(words []uint256.Int) CallLog {
	data := make([]byte, 0, 8+32+32*len(words))
	data = binary.LittleEndian.AppendUint64(data, l.Calls)
	data = append(data, l.Digest.Bytes()...)
	for i := range words {
		b := words[i].Bytes32()
		data = append(data, b[:]...)
	}
	return CallLog{Calls: l.Calls + 1, Digest: common.Blake2Hash(data)}
}

// compute maps the words read by a call to the words it must write.
type compute func(in []uint256.Int) []uint256.Int

// singleRound completes a call within one round of fixed I/O.
type singleRound struct {
	resource types.Resource
	reads    int
	writes   int
	compute  compute
}

func (p *singleRound) Resource() types.Resource { return p.resource }
func (p *singleRound) Initial() CallLog         { return CallLog{} }

func (p *singleRound) Begin(req Request, acc CallLog) (chunker.Setup, CallLog, error) {
	return callSetup(&req, 1), acc, nil
}

func (p *singleRound) RoundIO(round, total uint64) (int, int) {
	return p.reads, p.writes
}

func (p *singleRound) Apply(req Request, acc CallLog, round, total uint64, reads, writes []uint256.Int) (CallLog, error) {
	want := p.compute(reads)
	if err := compareOutput(p.resource, &req, want, writes); err != nil {
		return acc, err
	}
	return acc.absorb(writes), nil
}

func (p *singleRound) Finalize(acc CallLog) common.Hash {
	return acc.Digest
}

func compareOutput(r types.Resource, req *Request, want, got []uint256.Int) error {
	for i := range want {
		if !want[i].Eq(&got[i]) {
			log.Warn(log.PrecompileMonitoring, "output mismatch", "resource", r, "ts", req.Timestamp, "word", i, "want", want[i].Hex(), "got", got[i].Hex())
			return witerrors.Inconsistency(witerrors.ErrCOutputMismatch, "%s call at ts %d: word %d is %s, recomputed %s", r, req.Timestamp, i, got[i].Hex(), want[i].Hex())
		}
	}
	return nil
}

func boolWord(b bool) uint256.Int {
	if b {
		return *uint256.NewInt(1)
	}
	return uint256.Int{}
}

// Ecadd adds two bn254 G1 points: 4 reads (x1, y1, x2, y2), 3 writes
// (success, x, y).
func Ecadd() chunker.Processor[Request, CallLog] {
	return &singleRound{resource: types.ResourceEcadd, reads: 4, writes: 3, compute: ecadd}
}

// Ecmul multiplies a bn254 G1 point: 3 reads (x, y, scalar), 3 writes
// (success, x, y).
func Ecmul() chunker.Processor[Request, CallLog] {
	return &singleRound{resource: types.ResourceEcmul, reads: 3, writes: 3, compute: ecmul}
}

// Ecrecover recovers a secp256k1 signer: 4 reads (hash, v, r, s), 2 writes
// (success, address).
func Ecrecover() chunker.Processor[Request, CallLog] {
	return &singleRound{resource: types.ResourceEcrecover, reads: 4, writes: 2, compute: ecrecover}
}

// Secp256r1Verify checks a P-256 signature: 5 reads (hash, r, s, x, y),
// 2 writes (success, valid).
func Secp256r1Verify() chunker.Processor[Request, CallLog] {
	return &singleRound{resource: types.ResourceSecp256r1Verify, reads: 5, writes: 2, compute: secp256r1Verify}
}

// Modexp computes base^exp mod m over 256-bit words: 3 reads, 1 write.
func Modexp() chunker.Processor[Request, CallLog] {
	return &singleRound{resource: types.ResourceModexp, reads: 3, writes: 1, compute: modexp}
}
