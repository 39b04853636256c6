package chunker

import (
	"fmt"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/holiman/uint256"
)

// Phase is the position of a resource state machine between requests.
type Phase uint8

const (
	AwaitingRequest Phase = iota
	ProcessingRounds
	Done
)

func (p Phase) String() string {
	switch p {
	case AwaitingRequest:
		return "awaiting_request"
	case ProcessingRounds:
		return "processing_rounds"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for _, v := range []Phase{AwaitingRequest, ProcessingRounds, Done} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// CallParams are the memory pointers of the request in flight. Offsets
// advance by one word per query.
type CallParams struct {
	InputPage    types.MemoryPage `json:"input_page"`
	InputOffset  uint32           `json:"input_offset"`
	OutputPage   types.MemoryPage `json:"output_page"`
	OutputOffset uint32           `json:"output_offset"`
}

// FSM is the continuation state carried from one circuit to the next.
type FSM[S any] struct {
	Phase           Phase           `json:"phase"`
	RoundsRemaining uint64          `json:"rounds_remaining"`
	RoundIndex      uint64          `json:"round_index"`
	Params          CallParams      `json:"params"`
	TimestampRead   types.Timestamp `json:"timestamp_read"`
	TimestampWrite  types.Timestamp `json:"timestamp_write"`
	Accumulator     S               `json:"accumulator"`
}

// Setup is what a processor derives from a freshly popped request.
type Setup struct {
	Rounds         uint64
	Params         CallParams
	TimestampRead  types.Timestamp
	TimestampWrite types.Timestamp
}

// Round is the memory traffic of one round as the interpreter recorded it.
type Round struct {
	Reads  []types.MemoryQuery `json:"reads"`
	Writes []types.MemoryQuery `json:"writes"`
}

// Work pairs a request with its recorded rounds.
type Work[Req any] struct {
	Request Req     `json:"request"`
	Rounds  []Round `json:"rounds"`
}

// Processor adapts one resource to the chunker. Begin receives the
// accumulator left by the previous request and returns the one the new
// request starts from. Apply must not mutate acc in place.
type Processor[Req any, S any] interface {
	Resource() types.Resource
	Initial() S
	Begin(req Req, acc S) (Setup, S, error)
	RoundIO(round, total uint64) (reads, writes int)
	Apply(req Req, acc S, round, total uint64, reads, writes []uint256.Int) (S, error)
	Finalize(acc S) common.Hash
}
