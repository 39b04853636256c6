package demux

import (
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/queue"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
)

// Queues is the partition of a log stream. Storage and transient storage
// keep their stream position as insertion index; every other resource keeps
// the events in stream order.
type Queues struct {
	Storage          []types.OrderedAccessEvent
	TransientStorage []types.OrderedAccessEvent
	Events           []types.RawAccessEvent
	L1Messages       []types.RawAccessEvent
	Precompiles      map[types.Resource][]types.RawAccessEvent

	// Dropped counts precompile calls to addresses with no circuit.
	Dropped int
}

// Len returns the number of events routed to r.
func (q *Queues) Len(r types.Resource) int {
	switch r {
	case types.ResourceStorage:
		return len(q.Storage)
	case types.ResourceTransientStorage:
		return len(q.TransientStorage)
	case types.ResourceEvents:
		return len(q.Events)
	case types.ResourceL1Messages:
		return len(q.L1Messages)
	default:
		return len(q.Precompiles[r])
	}
}

// Demux routes every event by its aux byte and, for precompile calls, by
// the formal address.
func Demux(events []types.RawAccessEvent) (*Queues, error) {
	out := &Queues{Precompiles: make(map[types.Resource][]types.RawAccessEvent)}
	for i := range events {
		e := events[i]
		switch e.Channel() {
		case types.ChannelStorage:
			out.Storage = append(out.Storage, types.OrderedAccessEvent{Raw: e, InsertionIndex: uint32(i)})
		case types.ChannelTransientStorage:
			out.TransientStorage = append(out.TransientStorage, types.OrderedAccessEvent{Raw: e, InsertionIndex: uint32(i)})
		case types.ChannelEvent:
			out.Events = append(out.Events, e)
		case types.ChannelL1Message:
			out.L1Messages = append(out.L1Messages, e)
		case types.ChannelPrecompile:
			if e.Rollback {
				return nil, witerrors.Inconsistency(witerrors.ErrDPrecompileRollback, "event %d: %s", i, &e)
			}
			r, ok := types.PrecompileResource(&e)
			if !ok {
				out.Dropped++
				log.Trace(log.DemuxMonitoring, "unroutable precompile", "index", i, "address", e.Address.Hex())
				continue
			}
			out.Precompiles[r] = append(out.Precompiles[r], e)
		default:
			return nil, witerrors.Inconsistency(witerrors.ErrDUnknownAuxByte, "event %d: aux byte %d", i, e.AuxByte)
		}
	}
	log.Debug(log.DemuxMonitoring, "Demux", "events", len(events), "storage", len(out.Storage),
		"transient", len(out.TransientStorage), "log_events", len(out.Events), "l1", len(out.L1Messages),
		"precompiles", len(events)-len(out.Storage)-len(out.TransientStorage)-len(out.Events)-len(out.L1Messages)-out.Dropped,
		"dropped", out.Dropped)
	return out, nil
}

// Commitment is the demultiplexer's public view of one run: the input log
// queue, the slice of it each demux circuit consumes and the state of every
// non-empty output queue.
type Commitment struct {
	Input    queue.State                    `json:"input"`
	Segments []queue.State                  `json:"segments"`
	Outputs  map[types.Resource]queue.State `json:"outputs"`
	Circuits int                            `json:"circuits"`
}

// Commit builds the authenticated input queue over events and one output
// queue per resource. The input is cut into one segment per demux circuit
// at capacity.
func Commit(events []types.RawAccessEvent, q *Queues, capacity int) (*Commitment, error) {
	circuits, err := Circuits(len(events), capacity)
	if err != nil {
		return nil, err
	}
	input, err := queue.FromItems(events)
	if err != nil {
		return nil, err
	}
	parts, err := input.SplitBy(capacity)
	if err != nil {
		return nil, err
	}
	segments := make([]queue.State, len(parts))
	for i, p := range parts {
		segments[i] = p.Snapshot()
	}
	if len(segments) != circuits {
		return nil, witerrors.Inconsistency(witerrors.ErrCOrderViolation, "%d demux segments for %d circuits", len(segments), circuits)
	}
	if len(segments) > 0 {
		chained, err := queue.Concat(segments...)
		if err != nil {
			return nil, err
		}
		if chained != input.Snapshot() {
			return nil, witerrors.Inconsistency(witerrors.ErrCOrderViolation, "demux segments chain to %s, input is %s", chained, input.Snapshot())
		}
	}
	out := &Commitment{
		Input:    input.Snapshot(),
		Segments: segments,
		Outputs:  make(map[types.Resource]queue.State),
		Circuits: circuits,
	}
	for _, r := range types.AllResources() {
		routed := q.Routed(r)
		if len(routed) == 0 {
			continue
		}
		sub, err := queue.FromItems(routed)
		if err != nil {
			return nil, err
		}
		out.Outputs[r] = sub.Snapshot()
	}
	return out, nil
}

// Routed returns the raw events routed to r in stream order.
func (q *Queues) Routed(r types.Resource) []types.RawAccessEvent {
	unwrap := func(in []types.OrderedAccessEvent) []types.RawAccessEvent {
		out := make([]types.RawAccessEvent, len(in))
		for i := range in {
			out[i] = in[i].Raw
		}
		return out
	}
	switch r {
	case types.ResourceStorage:
		return unwrap(q.Storage)
	case types.ResourceTransientStorage:
		return unwrap(q.TransientStorage)
	case types.ResourceEvents:
		return q.Events
	case types.ResourceL1Messages:
		return q.L1Messages
	default:
		return q.Precompiles[r]
	}
}

// Circuits returns the number of demux circuits for n events.
func Circuits(n int, capacity int) (int, error) {
	if capacity <= 0 {
		return 0, witerrors.Exhausted(witerrors.ErrGInvalidCapacity, "log_demuxer capacity %d", capacity)
	}
	if n == 0 {
		return 0, nil
	}
	return (n + capacity - 1) / capacity, nil
}
