package sorter

import (
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
)

// SlotHistory is the replay state of one slot group. It lives only while
// its group is being folded.
type SlotHistory struct {
	InitialValue          *uint256.Int
	CurrentValue          *uint256.Int
	ChangesStack          []types.OrderedAccessEvent
	ObservedDepthZeroRead bool
}

// Apply folds the next event of the group, in program order.
func (h *SlotHistory) Apply(el *types.OrderedAccessEvent) error {
	raw := &el.Raw
	if h.CurrentValue == nil {
		if raw.RWFlag && raw.Rollback {
			return witerrors.Inconsistency(witerrors.ErrRRollbackOnFirstTouch, "%s", raw)
		}
		if !raw.RWFlag {
			h.ObservedDepthZeroRead = true
		}
		// a first write claims its read value as the pre-image
		h.InitialValue = new(uint256.Int).Set(&raw.ReadValue)
		h.CurrentValue = new(uint256.Int).Set(&raw.ReadValue)
	} else if !raw.RWFlag && len(h.ChangesStack) == 0 {
		h.ObservedDepthZeroRead = true
	}

	if !raw.RWFlag {
		if !raw.ReadValue.Eq(h.CurrentValue) {
			return witerrors.Inconsistency(witerrors.ErrRReadMismatch, "read %s, current %s: %s", raw.ReadValue.Hex(), h.CurrentValue.Hex(), raw)
		}
		return nil
	}

	if !raw.Rollback {
		if !raw.ReadValue.Eq(h.CurrentValue) {
			return witerrors.Inconsistency(witerrors.ErrRReadMismatch, "write pre-image %s, current %s: %s", raw.ReadValue.Hex(), h.CurrentValue.Hex(), raw)
		}
		h.CurrentValue = new(uint256.Int).Set(&raw.WrittenValue)
		h.ChangesStack = append(h.ChangesStack, *el)
		return nil
	}

	if len(h.ChangesStack) == 0 {
		return witerrors.Inconsistency(witerrors.ErrRRollbackUnderflow, "%s", raw)
	}
	popped := h.ChangesStack[len(h.ChangesStack)-1]
	h.ChangesStack = h.ChangesStack[:len(h.ChangesStack)-1]
	switch {
	case raw.ReadValue != popped.Raw.ReadValue, raw.WrittenValue != popped.Raw.WrittenValue:
		return witerrors.Inconsistency(witerrors.ErrRRollbackMismatch, "rollback %s undoes %s", raw, &popped.Raw)
	case !raw.WrittenValue.Eq(h.CurrentValue):
		return witerrors.Inconsistency(witerrors.ErrRRollbackMismatch, "rollback from %s, current %s", raw.WrittenValue.Hex(), h.CurrentValue.Hex())
	case raw.ShardID != popped.Raw.ShardID, raw.Address != popped.Raw.Address, raw.Key != popped.Raw.Key:
		return witerrors.Inconsistency(witerrors.ErrRRollbackMismatch, "rollback slot differs from %s", &popped.Raw)
	}
	h.CurrentValue = new(uint256.Int).Set(&raw.ReadValue)
	return nil
}

// Decide returns the net effect of the replayed group, or false when the
// group has no observable effect.
func (h *SlotHistory) Decide(slot types.SlotKey) (types.DeduplicatedAccessEvent, bool, error) {
	if h.CurrentValue == nil {
		return types.DeduplicatedAccessEvent{}, false, nil
	}
	out := types.DeduplicatedAccessEvent{
		ShardID:      slot.ShardID,
		Address:      slot.Address,
		Key:          slot.Key,
		InitialValue: *h.InitialValue,
		FinalValue:   *h.CurrentValue,
	}
	unchanged := h.InitialValue.Eq(h.CurrentValue)
	switch {
	case !h.ObservedDepthZeroRead && len(h.ChangesStack) == 0:
		// every write was rolled back and nothing read the slot at depth zero
		if !unchanged {
			return out, false, witerrors.Inconsistency(witerrors.ErrRRollbackMismatch, "empty change stack but %s != %s", h.InitialValue.Hex(), h.CurrentValue.Hex())
		}
		return out, false, nil
	case unchanged:
		// protective read, either observed directly or degraded from
		// writes that net out to the initial value
		return out, true, nil
	default:
		out.Write = true
		return out, true, nil
	}
}

// Reconciler sorts and deduplicates storage access events.
type Reconciler struct {
	cfg Config
}

func NewReconciler(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg}
}

// Reconcile stable-sorts events by slot and program order and folds every
// slot group into its net effect.
func Reconcile(events []types.OrderedAccessEvent) ([]types.OrderedAccessEvent, []types.DeduplicatedAccessEvent, error) {
	return NewReconciler(DefaultConfig()).Reconcile(events)
}

// ReconcileTransient only sorts; rollback handling is left to the consumer.
func ReconcileTransient(events []types.OrderedAccessEvent) []types.OrderedAccessEvent {
	return NewReconciler(DefaultConfig()).ReconcileTransient(events)
}

func (r *Reconciler) Reconcile(events []types.OrderedAccessEvent) ([]types.OrderedAccessEvent, []types.DeduplicatedAccessEvent, error) {
	sorted := sortEvents(r.cfg, events, compareSlot)

	var deduplicated []types.DeduplicatedAccessEvent
	groups := 0
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sameSlot(&sorted[start], &sorted[end]) {
			end++
		}
		groups++

		var history SlotHistory
		for i := start; i < end; i++ {
			if err := history.Apply(&sorted[i]); err != nil {
				return nil, nil, err
			}
		}
		out, emit, err := history.Decide(sorted[start].Raw.Slot())
		if err != nil {
			return nil, nil, err
		}
		if emit {
			deduplicated = append(deduplicated, out)
		}
		start = end
	}

	log.Debug(log.SorterMonitoring, "Reconcile", "events", len(events), "groups", groups, "deduplicated", len(deduplicated))
	return sorted, deduplicated, nil
}

func (r *Reconciler) ReconcileTransient(events []types.OrderedAccessEvent) []types.OrderedAccessEvent {
	sorted := sortEvents(r.cfg, events, compareTransient)
	log.Debug(log.SorterMonitoring, "ReconcileTransient", "events", len(events))
	return sorted
}

// TransientGroups returns the [start, end) bounds of every (tx, slot) group
// of a transient-sorted sequence.
func TransientGroups(sorted []types.OrderedAccessEvent) [][2]int {
	var out [][2]int
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sameTransientSlot(&sorted[start], &sorted[end]) {
			end++
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}
