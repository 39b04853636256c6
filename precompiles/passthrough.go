package precompiles

import (
	"cmp"

	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/codec"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
)

// Ordered remembers the last item of a sorted queue.
type Ordered[T any] struct {
	Seen bool `json:"seen"`
	Last T    `json:"last"`
}

// passthrough checks the order of an already sorted queue; its items carry
// no memory traffic.
type passthrough[T any] struct {
	resource types.Resource
	compare  func(a, b *T) int
	strict   bool
}

func (p *passthrough[T]) Resource() types.Resource { return p.resource }
func (p *passthrough[T]) Initial() Ordered[T]      { return Ordered[T]{} }

func (p *passthrough[T]) Begin(item T, acc Ordered[T]) (chunker.Setup, Ordered[T], error) {
	if acc.Seen {
		c := p.compare(&acc.Last, &item)
		if c > 0 || (p.strict && c == 0) {
			return chunker.Setup{}, acc, witerrors.Inconsistency(witerrors.ErrCOrderViolation, "%s queue out of order", p.resource)
		}
	}
	return chunker.Setup{Rounds: 1}, Ordered[T]{Seen: true, Last: item}, nil
}

func (p *passthrough[T]) RoundIO(round, total uint64) (int, int) { return 0, 0 }

func (p *passthrough[T]) Apply(_ T, acc Ordered[T], _, _ uint64, _, _ []uint256.Int) (Ordered[T], error) {
	return acc, nil
}

// Finalize hashes the canonical encoding of the last item.
func (p *passthrough[T]) Finalize(acc Ordered[T]) common.Hash {
	if !acc.Seen {
		return common.Hash{}
	}
	enc, err := codec.Marshal(acc.Last)
	if err != nil {
		return common.Hash{}
	}
	return common.Blake2Hash(enc)
}

// StorageSorter walks deduplicated storage effects in strictly increasing
// slot order.
func StorageSorter() chunker.Processor[types.DeduplicatedAccessEvent, Ordered[types.DeduplicatedAccessEvent]] {
	return &passthrough[types.DeduplicatedAccessEvent]{
		resource: types.ResourceStorage,
		compare: func(a, b *types.DeduplicatedAccessEvent) int {
			return a.Slot().Compare(b.Slot())
		},
		strict: true,
	}
}

// TransientSorter walks transient events sorted by transaction, slot and
// capture order.
func TransientSorter() chunker.Processor[types.OrderedAccessEvent, Ordered[types.OrderedAccessEvent]] {
	return &passthrough[types.OrderedAccessEvent]{
		resource: types.ResourceTransientStorage,
		compare: func(a, b *types.OrderedAccessEvent) int {
			if c := cmp.Compare(a.Raw.TxNumberInBlock, b.Raw.TxNumberInBlock); c != 0 {
				return c
			}
			if c := a.Raw.Slot().Compare(b.Raw.Slot()); c != 0 {
				return c
			}
			return cmp.Compare(a.InsertionIndex, b.InsertionIndex)
		},
		strict: true,
	}
}

// LogSorter walks events or L1 messages in timestamp order.
func LogSorter(r types.Resource) chunker.Processor[types.RawAccessEvent, Ordered[types.RawAccessEvent]] {
	return &passthrough[types.RawAccessEvent]{
		resource: r,
		compare: func(a, b *types.RawAccessEvent) int {
			return cmp.Compare(a.Timestamp, b.Timestamp)
		},
	}
}
