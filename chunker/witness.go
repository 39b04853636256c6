package chunker

import (
	"reflect"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/queue"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
)

// ObservableInput is the public input of the first circuit of a queue.
type ObservableInput struct {
	Requests queue.State `json:"requests"`
	Memory   queue.State `json:"memory"`
}

// ObservableOutput is the public output of the last circuit of a queue.
type ObservableOutput struct {
	Memory queue.State `json:"memory"`
	Digest common.Hash `json:"digest"`
}

// HiddenState is threaded from the output of one circuit into the input of
// the next.
type HiddenState[S any] struct {
	FSM      FSM[S]      `json:"fsm"`
	Requests queue.State `json:"requests"`
	Memory   queue.State `json:"memory"`
}

// Segment is the part of one request's memory traffic absorbed by a circuit.
type Segment struct {
	Request uint32        `json:"request"`
	Reads   []uint256.Int `json:"reads"`
	Writes  []uint256.Int `json:"writes"`
}

// Witness is one circuit instance.
type Witness[Req any, S any] struct {
	Resource         types.Resource           `json:"resource"`
	Index            int                      `json:"index"`
	StartFlag        bool                     `json:"start_flag"`
	CompletionFlag   bool                     `json:"completion_flag"`
	ObservableInput  *ObservableInput         `json:"observable_input,omitempty"`
	ObservableOutput *ObservableOutput        `json:"observable_output,omitempty"`
	HiddenFSMInput   HiddenState[S]           `json:"hidden_fsm_input"`
	HiddenFSMOutput  HiddenState[S]           `json:"hidden_fsm_output"`
	Requests         []queue.ItemWitness[Req] `json:"requests"`
	Segments         []Segment                `json:"segments"`
	Units            int                      `json:"units"`
}

// Instance is the resource-independent view of a witness.
type Instance interface {
	ResourceType() types.Resource
	CircuitIndex() int
	IsFirst() bool
	IsLast() bool
	WorkUnits() int
}

func (w *Witness[Req, S]) ResourceType() types.Resource { return w.Resource }
func (w *Witness[Req, S]) CircuitIndex() int            { return w.Index }
func (w *Witness[Req, S]) IsFirst() bool                { return w.StartFlag }
func (w *Witness[Req, S]) IsLast() bool                 { return w.CompletionFlag }
func (w *Witness[Req, S]) WorkUnits() int               { return w.Units }

// Instances erases the request and accumulator types.
func Instances[Req any, S any](ws []*Witness[Req, S]) []Instance {
	out := make([]Instance, len(ws))
	for i, w := range ws {
		out[i] = w
	}
	return out
}

// CheckContinuity verifies that a sequence of witnesses can be chained:
// flags and observable values sit on the first and last circuit only and
// every hidden output is the next hidden input.
func CheckContinuity[Req any, S any](ws []*Witness[Req, S]) error {
	last := len(ws) - 1
	for i, w := range ws {
		if w.Index != i {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d carries index %d", i, w.Index)
		}
		if w.StartFlag != (i == 0) || (w.ObservableInput != nil) != (i == 0) {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d: start flag or observable input misplaced", i)
		}
		if w.CompletionFlag != (i == last) || (w.ObservableOutput != nil) != (i == last) {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d: completion flag or observable output misplaced", i)
		}
		if i == 0 {
			in := w.HiddenFSMInput
			if in.FSM.Phase != AwaitingRequest || in.Requests != w.ObservableInput.Requests || in.Memory != w.ObservableInput.Memory {
				return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "first circuit does not start from the observable input")
			}
			continue
		}
		prev := ws[i-1].HiddenFSMOutput
		if prev.Requests != w.HiddenFSMInput.Requests || prev.Memory != w.HiddenFSMInput.Memory {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d: queue states do not chain", i)
		}
		if !reflect.DeepEqual(prev.FSM, w.HiddenFSMInput.FSM) {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d: fsm does not chain", i)
		}
	}
	if last < 0 {
		return nil
	}
	out := ws[last].HiddenFSMOutput
	if out.FSM.Phase != Done || out.Memory != ws[last].ObservableOutput.Memory || out.Requests.Length != 0 {
		return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "last circuit does not drain the queue")
	}
	return checkSegments(ws)
}

// checkSegments chains the request slice each circuit consumes and the
// memory slice it produces. The consumed slices must add up to the whole
// request queue and the produced ones, appended to the observable input,
// to the observable memory output.
func checkSegments[Req any, S any](ws []*Witness[Req, S]) error {
	requests := make([]queue.State, len(ws))
	memory := make([]queue.State, len(ws))
	for i, w := range ws {
		in, out := w.HiddenFSMInput, w.HiddenFSMOutput
		if out.Requests.Length > in.Requests.Length || out.Memory.Length < in.Memory.Length {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d: queue lengths run backwards", i)
		}
		requests[i] = queue.State{Head: in.Requests.Head, Tail: out.Requests.Head, Length: in.Requests.Length - out.Requests.Length}
		memory[i] = queue.State{Head: in.Memory.Tail, Tail: out.Memory.Tail, Length: out.Memory.Length - in.Memory.Length}
	}
	consumed, err := queue.Concat(requests...)
	if err != nil {
		return err
	}
	if consumed != ws[0].ObservableInput.Requests {
		return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "consumed requests %s, queue is %s", consumed, ws[0].ObservableInput.Requests)
	}
	produced, err := queue.Concat(memory...)
	if err != nil {
		return err
	}
	if merged := queue.MergeStates(ws[0].ObservableInput.Memory, produced); merged != ws[len(ws)-1].ObservableOutput.Memory {
		return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "produced memory %s, output is %s", merged, ws[len(ws)-1].ObservableOutput.Memory)
	}
	return nil
}

// CheckRequests verifies that the circuits pop the items of q in push
// order. Each circuit starts and stops at the tail after the items popped so
// far, and each popped item reveals the tail it was absorbed onto.
func CheckRequests[Req comparable, S any](ws []*Witness[Req, S], q *queue.Queue[Req]) error {
	n := 0
	for i, w := range ws {
		if at := q.StateAt(n); at.Tail != w.HiddenFSMInput.Requests.Head {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d resumes at %s, queue is at %s after %d pops",
				i, w.HiddenFSMInput.Requests.Head.String_short(), at.Tail.String_short(), n)
		}
		for _, iw := range w.Requests {
			if n >= q.Len() {
				return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d pops past the end of the queue", i)
			}
			if iw.PrevTail != q.StateAt(n).Tail {
				return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d: request %d reveals tail %s", i, n, iw.PrevTail.String_short())
			}
			n++
		}
		if at := q.StateAt(n); at.Tail != w.HiddenFSMOutput.Requests.Head {
			return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuit %d stops at %s, queue is at %s after %d pops",
				i, w.HiddenFSMOutput.Requests.Head.String_short(), at.Tail.String_short(), n)
		}
	}
	if n != q.Len() {
		return witerrors.Inconsistency(witerrors.ErrCOrderViolation, "circuits popped %d of %d requests", n, q.Len())
	}
	return nil
}
