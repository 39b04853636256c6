package queue

import (
	"fmt"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// State is the accumulator state of a queue: the head it was started from,
// the running tail and the number of items absorbed.
type State struct {
	Head   common.Hash `json:"head"`
	Tail   common.Hash `json:"tail"`
	Length uint32      `json:"length"`
}

func (s State) String() string {
	return fmt.Sprintf("{head=%s tail=%s len=%d}", s.Head.String_short(), s.Tail.String_short(), s.Length)
}

// IsEmpty reports whether the state covers no items.
func (s State) IsEmpty() bool {
	return s.Length == 0 && s.Head == s.Tail
}

// ItemWitness is what a replayed pop reveals: the item, its digest and the
// tail before it was absorbed.
type ItemWitness[T any] struct {
	Item     T           `json:"item"`
	Digest   common.Hash `json:"digest"`
	PrevTail common.Hash `json:"prev_tail"`
}

// Queue is an append-only authenticated queue. Pops replay the pushed items
// in order; they do not change the accumulator.
type Queue[T any] struct {
	head    fr.Element
	tail    fr.Element
	items   []T
	digests []fr.Element
	tails   []fr.Element
	popped  int
}

// New returns an empty queue with a zero head.
func New[T any]() *Queue[T] {
	return NewWithHead[T](common.Hash{})
}

// NewWithHead returns an empty queue starting from head.
func NewWithHead[T any](head common.Hash) *Queue[T] {
	h := fromHash(head)
	return &Queue[T]{head: h, tail: h}
}

// FromItems pushes every item into a fresh queue.
func FromItems[T any](items []T) (*Queue[T], error) {
	q := New[T]()
	for _, it := range items {
		if _, err := q.Push(it); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Push absorbs item and returns the tail before it.
func (q *Queue[T]) Push(item T) (common.Hash, error) {
	d, err := ItemDigest(item)
	if err != nil {
		return common.Hash{}, err
	}
	old := q.tail
	q.tail = absorb(q.tail, d)
	q.items = append(q.items, item)
	q.digests = append(q.digests, d)
	q.tails = append(q.tails, q.tail)
	return toHash(old), nil
}

// Pop replays the next item in push order.
func (q *Queue[T]) Pop() (ItemWitness[T], error) {
	if q.popped >= len(q.items) {
		return ItemWitness[T]{}, witerrors.Inconsistency(witerrors.ErrQQueueExhausted, "popped %d of %d", q.popped, len(q.items))
	}
	i := q.popped
	q.popped++
	return ItemWitness[T]{
		Item:     q.items[i],
		Digest:   toHash(q.digests[i]),
		PrevTail: toHash(q.tailAt(i)),
	}, nil
}

// Rewind resets the replay cursor.
func (q *Queue[T]) Rewind() {
	q.popped = 0
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) Popped() int {
	return q.popped
}

func (q *Queue[T]) IsDrained() bool {
	return q.popped == len(q.items)
}

// Items returns a copy of the pushed items.
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// tailAt is the tail after the first n items.
func (q *Queue[T]) tailAt(n int) fr.Element {
	if n == 0 {
		return q.head
	}
	return q.tails[n-1]
}

// Snapshot returns the state of the whole queue.
func (q *Queue[T]) Snapshot() State {
	return State{Head: toHash(q.head), Tail: toHash(q.tail), Length: uint32(len(q.items))}
}

// StateAt returns the state after the first n pushes.
func (q *Queue[T]) StateAt(n int) State {
	return State{Head: toHash(q.head), Tail: toHash(q.tailAt(n)), Length: uint32(n)}
}

// Remaining returns the state of the items not yet popped: its head is the
// tail at the replay cursor.
func (q *Queue[T]) Remaining() State {
	return State{Head: toHash(q.tailAt(q.popped)), Tail: toHash(q.tail), Length: uint32(len(q.items) - q.popped)}
}

// Merge concatenates a and b. b may have been built from any head; its
// accumulator is rebased onto a's tail, so the result equals pushing the
// items of a then b into one queue.
func Merge[T any](a, b *Queue[T]) *Queue[T] {
	out := &Queue[T]{head: a.head, tail: a.tail}
	out.items = append(append(make([]T, 0, len(a.items)+len(b.items)), a.items...), b.items...)
	out.digests = append(append(make([]fr.Element, 0, len(out.items)), a.digests...), b.digests...)
	out.tails = append(make([]fr.Element, 0, len(out.items)), a.tails...)

	pow := fr.One()
	for _, t := range b.tails {
		pow.Mul(&pow, &hornerBase)
		out.tails = append(out.tails, rebase(a.tail, b.head, t, pow))
	}
	if len(out.tails) > 0 {
		out.tail = out.tails[len(out.tails)-1]
	}
	log.Trace(log.QueueMonitoring, "merge", "left", len(a.items), "right", len(b.items), "tail", toHash(out.tail).String_short())
	return out
}

// MergeStates combines two accumulator states the same way Merge does.
func MergeStates(a, b State) State {
	pow := basePow(int(b.Length))
	tail := rebase(fromHash(a.Tail), fromHash(b.Head), fromHash(b.Tail), pow)
	return State{Head: a.Head, Tail: toHash(tail), Length: a.Length + b.Length}
}

// SplitBy partitions the queue into consecutive queues of at most n items.
// Each part starts from the tail of the previous one.
func (q *Queue[T]) SplitBy(n int) ([]*Queue[T], error) {
	if n <= 0 {
		return nil, witerrors.Exhausted(witerrors.ErrGInvalidCapacity, "split by %d", n)
	}
	var parts []*Queue[T]
	for start := 0; start < len(q.items); start += n {
		end := min(start+n, len(q.items))
		part := &Queue[T]{head: q.tailAt(start), tail: q.tails[end-1]}
		part.items = append([]T(nil), q.items[start:end]...)
		part.digests = append([]fr.Element(nil), q.digests[start:end]...)
		part.tails = append([]fr.Element(nil), q.tails[start:end]...)
		parts = append(parts, part)
	}
	return parts, nil
}

// Concat chains segment states, requiring each head to equal the previous tail.
func Concat(states ...State) (State, error) {
	if len(states) == 0 {
		return State{}, nil
	}
	out := states[0]
	for i, s := range states[1:] {
		if s.Head != out.Tail {
			return State{}, witerrors.Inconsistency(witerrors.ErrCOrderViolation, "segment %d head %s != tail %s", i+1, s.Head.String_short(), out.Tail.String_short())
		}
		out.Tail = s.Tail
		out.Length += s.Length
	}
	return out, nil
}
