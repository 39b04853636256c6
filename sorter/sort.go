package sorter

import (
	"cmp"
	"runtime"

	"github.com/colorfulnotion/witgen/types"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Config controls how the initial sort is parallelised. The comparators are
// total (the insertion index breaks every tie) so any chunking yields the
// same order.
type Config struct {
	Workers     int // number of concurrent chunk sorts
	MinParallel int // inputs shorter than this are sorted on one goroutine
}

func DefaultConfig() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		MinParallel: 1 << 12,
	}
}

type compareFunc = func(a, b types.OrderedAccessEvent) int

// Number assigns insertion indices in capture order.
func Number(events []types.RawAccessEvent) []types.OrderedAccessEvent {
	out := make([]types.OrderedAccessEvent, len(events))
	for i, e := range events {
		out[i] = types.OrderedAccessEvent{Raw: e, InsertionIndex: uint32(i)}
	}
	return out
}

// compareSlot orders by (shard, address, key, insertion index).
func compareSlot(a, b types.OrderedAccessEvent) int {
	if c := a.Raw.Slot().Compare(b.Raw.Slot()); c != 0 {
		return c
	}
	return cmp.Compare(a.InsertionIndex, b.InsertionIndex)
}

// compareTransient orders by transaction first since transient slots reset
// at every transaction boundary.
func compareTransient(a, b types.OrderedAccessEvent) int {
	if c := cmp.Compare(a.Raw.TxNumberInBlock, b.Raw.TxNumberInBlock); c != 0 {
		return c
	}
	return compareSlot(a, b)
}

func sameSlot(a, b *types.OrderedAccessEvent) bool {
	return a.Raw.ShardID == b.Raw.ShardID && a.Raw.Address == b.Raw.Address && a.Raw.Key == b.Raw.Key
}

func sameTransientSlot(a, b *types.OrderedAccessEvent) bool {
	return a.Raw.TxNumberInBlock == b.Raw.TxNumberInBlock && sameSlot(a, b)
}

// sortEvents returns a sorted copy of events. Large inputs are cut into one
// run per worker, the runs are sorted concurrently and then merged pairwise.
func sortEvents(cfg Config, events []types.OrderedAccessEvent, less compareFunc) []types.OrderedAccessEvent {
	out := append([]types.OrderedAccessEvent(nil), events...)
	workers := max(cfg.Workers, 1)
	if len(out) < cfg.MinParallel || workers == 1 {
		slices.SortStableFunc(out, less)
		return out
	}

	runLen := (len(out) + workers - 1) / workers
	var runs [][]types.OrderedAccessEvent
	for start := 0; start < len(out); start += runLen {
		runs = append(runs, out[start:min(start+runLen, len(out))])
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, run := range runs {
		g.Go(func() error {
			slices.SortStableFunc(run, less)
			return nil
		})
	}
	_ = g.Wait()

	for len(runs) > 1 {
		merged := make([][]types.OrderedAccessEvent, 0, (len(runs)+1)/2)
		for i := 0; i < len(runs); i += 2 {
			if i+1 == len(runs) {
				merged = append(merged, runs[i])
				continue
			}
			merged = append(merged, mergeRuns(runs[i], runs[i+1], less))
		}
		runs = merged
	}
	return runs[0]
}

// mergeRuns merges two sorted runs, taking from the left run on ties.
func mergeRuns(a, b []types.OrderedAccessEvent, less compareFunc) []types.OrderedAccessEvent {
	out := make([]types.OrderedAccessEvent, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if less(b[j], a[i]) < 0 {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
