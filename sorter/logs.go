package sorter

import (
	"cmp"

	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"golang.org/x/exp/slices"
)

// ReconcileLogs sorts events or L1 messages by timestamp and cancels every
// rolled back entry. A rollback carries the timestamp of the entry it undoes
// and sorts right after it.
func ReconcileLogs(events []types.RawAccessEvent) ([]types.RawAccessEvent, error) {
	sorted := append([]types.RawAccessEvent(nil), events...)
	slices.SortStableFunc(sorted, func(a, b types.RawAccessEvent) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return compareBool(a.Rollback, b.Rollback)
	})

	out := make([]types.RawAccessEvent, 0, len(sorted))
	for i := range sorted {
		e := sorted[i]
		if !e.Rollback {
			out = append(out, e)
			continue
		}
		if len(out) == 0 || out[len(out)-1].Timestamp != e.Timestamp {
			return nil, witerrors.Inconsistency(witerrors.ErrRRollbackUnderflow, "log rollback without entry: %s", &e)
		}
		last := out[len(out)-1]
		last.Rollback = true
		if last != e {
			return nil, witerrors.Inconsistency(witerrors.ErrRRollbackMismatch, "log rollback %s undoes %s", &e, &out[len(out)-1])
		}
		out = out[:len(out)-1]
	}
	log.Debug(log.SorterMonitoring, "ReconcileLogs", "in", len(events), "out", len(out))
	return out, nil
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
