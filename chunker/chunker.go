package chunker

import (
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/queue"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
)

// Limits bounds the circuits of one resource.
type Limits struct {
	Capacity    int // work units per circuit
	MaxCircuits int // 0 means unlimited
}

// LimitsFor reads the limits of r from a geometry.
func LimitsFor(g *types.GeometryConfig, r types.Resource) Limits {
	return Limits{Capacity: g.Capacity(r), MaxCircuits: g.MaxCircuits(r)}
}

// Result is the outcome of chunking one queue.
type Result[Req any, S any] struct {
	Witnesses []*Witness[Req, S]
	Memory    *queue.Queue[types.MemoryQuery]
}

type chunker[Req comparable, S any] struct {
	p        Processor[Req, S]
	requests *queue.Queue[Req]
	work     []Work[Req]
	limits   Limits

	fsm    FSM[S]
	memory *queue.Queue[types.MemoryQuery]
	next   int // index of the next request to pop

	out []*Witness[Req, S]
	cur *Witness[Req, S]
}

// Chunk replays every request of requests through p and cuts the work into
// circuits of at most limits.Capacity units. A unit is one round; single
// round resources use one unit per request. work[i] must hold the request
// pushed at position i with its recorded memory traffic.
//
// The replay cursor of requests is rewound before and after chunking, so
// calling Chunk twice on the same inputs yields equal results. An empty
// queue yields no witnesses.
func Chunk[Req comparable, S any](requests *queue.Queue[Req], work []Work[Req], limits Limits, p Processor[Req, S]) (*Result[Req, S], error) {
	resource := p.Resource()
	if limits.Capacity <= 0 {
		return nil, witerrors.Exhausted(witerrors.ErrGInvalidCapacity, "%s capacity %d", resource, limits.Capacity)
	}
	switch {
	case len(work) < requests.Len():
		return nil, witerrors.Inconsistency(witerrors.ErrDRequestWithoutWork, "%s: %d requests, %d work items", resource, requests.Len(), len(work))
	case len(work) > requests.Len():
		return nil, witerrors.Inconsistency(witerrors.ErrDWorkWithoutRequest, "%s: %d requests, %d work items", resource, requests.Len(), len(work))
	}

	requests.Rewind()
	defer requests.Rewind()

	c := &chunker[Req, S]{
		p:        p,
		requests: requests,
		work:     work,
		limits:   limits,
		fsm:      FSM[S]{Phase: AwaitingRequest, Accumulator: p.Initial()},
		memory:   queue.New[types.MemoryQuery](),
	}
	if requests.Len() == 0 {
		log.Debug(log.ChunkerMonitoring, "Chunk: empty queue", "resource", resource)
		return &Result[Req, S]{Memory: c.memory}, nil
	}
	if err := c.run(); err != nil {
		return nil, err
	}
	log.Debug(log.ChunkerMonitoring, "Chunk", "resource", resource, "requests", requests.Len(),
		"circuits", len(c.out), "memory", c.memory.Len())
	return &Result[Req, S]{Witnesses: c.out, Memory: c.memory}, nil
}

func (c *chunker[Req, S]) hidden() HiddenState[S] {
	return HiddenState[S]{FSM: c.fsm, Requests: c.requests.Remaining(), Memory: c.memory.Snapshot()}
}

func (c *chunker[Req, S]) open() {
	w := &Witness[Req, S]{
		Resource:       c.p.Resource(),
		Index:          len(c.out),
		StartFlag:      len(c.out) == 0,
		HiddenFSMInput: c.hidden(),
	}
	if w.StartFlag {
		w.ObservableInput = &ObservableInput{Requests: c.requests.Snapshot(), Memory: c.memory.Snapshot()}
	}
	c.cur = w
}

func (c *chunker[Req, S]) close() error {
	w := c.cur
	w.HiddenFSMOutput = c.hidden()
	w.CompletionFlag = c.fsm.Phase == Done
	if w.CompletionFlag {
		w.ObservableOutput = &ObservableOutput{Memory: c.memory.Snapshot(), Digest: c.p.Finalize(c.fsm.Accumulator)}
	}
	c.out = append(c.out, w)
	c.cur = nil
	if c.limits.MaxCircuits > 0 && len(c.out) > c.limits.MaxCircuits {
		return witerrors.Exhausted(witerrors.ErrGTooManyCircuits, "%s: more than %d circuits", c.p.Resource(), c.limits.MaxCircuits)
	}
	log.Trace(log.ChunkerMonitoring, "circuit closed", "resource", w.Resource, "index", w.Index, "units", w.Units, "phase", c.fsm.Phase)
	return nil
}

func (c *chunker[Req, S]) run() error {
	for c.fsm.Phase != Done {
		if c.cur == nil {
			c.open()
		}
		if c.fsm.Phase == AwaitingRequest {
			if err := c.begin(); err != nil {
				return err
			}
		}
		if err := c.round(); err != nil {
			return err
		}
		c.cur.Units++
		if c.cur.Units == c.limits.Capacity || c.fsm.Phase == Done {
			if err := c.close(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *chunker[Req, S]) begin() error {
	resource := c.p.Resource()
	iw, err := c.requests.Pop()
	if err != nil {
		return err
	}
	if iw.Item != c.work[c.next].Request {
		return witerrors.Inconsistency(witerrors.ErrCRequestMismatch, "%s request %d", resource, c.next)
	}
	setup, acc, err := c.p.Begin(iw.Item, c.fsm.Accumulator)
	if err != nil {
		return err
	}
	if setup.Rounds == 0 || setup.Rounds != uint64(len(c.work[c.next].Rounds)) {
		return witerrors.Inconsistency(witerrors.ErrCRoundCountMismatch, "%s request %d: %d rounds declared, %d recorded", resource, c.next, setup.Rounds, len(c.work[c.next].Rounds))
	}
	c.fsm = FSM[S]{
		Phase:           ProcessingRounds,
		RoundsRemaining: setup.Rounds,
		Params:          setup.Params,
		TimestampRead:   setup.TimestampRead,
		TimestampWrite:  setup.TimestampWrite,
		Accumulator:     acc,
	}
	c.cur.Requests = append(c.cur.Requests, iw)
	return nil
}

// round absorbs one round of the request in flight.
func (c *chunker[Req, S]) round() error {
	resource := c.p.Resource()
	index := c.next
	w := &c.work[index]
	total := c.fsm.RoundIndex + c.fsm.RoundsRemaining
	r := &w.Rounds[c.fsm.RoundIndex]

	nr, nw := c.p.RoundIO(c.fsm.RoundIndex, total)
	if len(r.Reads) != nr || len(r.Writes) != nw {
		return witerrors.Inconsistency(witerrors.ErrCMemoryQueryMismatch, "%s request %d round %d: %d/%d queries, want %d/%d",
			resource, index, c.fsm.RoundIndex, len(r.Reads), len(r.Writes), nr, nw)
	}

	reads := make([]uint256.Int, nr)
	for i := range r.Reads {
		q := &r.Reads[i]
		if err := c.expect(q, false, c.fsm.Params.InputPage, c.fsm.Params.InputOffset, c.fsm.TimestampRead); err != nil {
			return err
		}
		c.fsm.Params.InputOffset++
		reads[i] = q.Value
	}
	writes := make([]uint256.Int, nw)
	for i := range r.Writes {
		q := &r.Writes[i]
		if err := c.expect(q, true, c.fsm.Params.OutputPage, c.fsm.Params.OutputOffset, c.fsm.TimestampWrite); err != nil {
			return err
		}
		c.fsm.Params.OutputOffset++
		writes[i] = q.Value
	}

	acc, err := c.p.Apply(w.Request, c.fsm.Accumulator, c.fsm.RoundIndex, total, reads, writes)
	if err != nil {
		return err
	}
	c.fsm.Accumulator = acc
	c.segment(uint32(index), reads, writes)

	c.fsm.RoundIndex++
	c.fsm.RoundsRemaining--
	if c.fsm.RoundsRemaining == 0 {
		c.next++
		c.fsm.RoundIndex = 0
		c.fsm.Params = CallParams{}
		c.fsm.TimestampRead, c.fsm.TimestampWrite = 0, 0
		if c.requests.IsDrained() {
			c.fsm.Phase = Done
		} else {
			c.fsm.Phase = AwaitingRequest
		}
	}
	return nil
}

// expect validates the placement of one memory query and appends it to the
// resource memory queue.
func (c *chunker[Req, S]) expect(q *types.MemoryQuery, write bool, page types.MemoryPage, index uint32, ts types.Timestamp) error {
	if q.RWFlag != write || q.Page != page || q.Index != index || q.Timestamp != ts || q.IsPointer {
		return witerrors.Inconsistency(witerrors.ErrCMemoryQueryMismatch, "%s: got %s, want rw=%v page=%d idx=%d ts=%d",
			c.p.Resource(), q, write, page, index, ts)
	}
	_, err := c.memory.Push(*q)
	return err
}

func (c *chunker[Req, S]) segment(request uint32, reads, writes []uint256.Int) {
	segs := c.cur.Segments
	if n := len(segs); n > 0 && segs[n-1].Request == request {
		segs[n-1].Reads = append(segs[n-1].Reads, reads...)
		segs[n-1].Writes = append(segs[n-1].Writes, writes...)
		return
	}
	c.cur.Segments = append(segs, Segment{Request: request, Reads: reads, Writes: writes})
}
