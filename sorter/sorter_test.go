package sorter

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witerrors"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

var (
	addrA = common.HexToAddress("0x000000000000000000000000000000000000aaaa")
	addrB = common.HexToAddress("0x000000000000000000000000000000000000bbbb")
)

func read(ts uint32, addr common.Address, key, value uint64) types.RawAccessEvent {
	return types.RawAccessEvent{
		Timestamp: types.Timestamp(ts),
		AuxByte:   types.StorageAuxByte,
		Address:   addr,
		Key:       *uint256.NewInt(key),
		ReadValue: *uint256.NewInt(value),
	}
}

func write(ts uint32, addr common.Address, key, from, to uint64) types.RawAccessEvent {
	e := read(ts, addr, key, from)
	e.WrittenValue = *uint256.NewInt(to)
	e.RWFlag = true
	return e
}

func rollback(ts uint32, addr common.Address, key, from, to uint64) types.RawAccessEvent {
	e := write(ts, addr, key, from, to)
	e.Rollback = true
	return e
}

func TestNoOpGroupProducesNothing(t *testing.T) {
	_, out, err := Reconcile(Number([]types.RawAccessEvent{
		write(1, addrA, 1, 5, 9),
		rollback(2, addrA, 1, 5, 9),
	}))
	require.NoError(t, err)
	assert.Empty(t, out)

	_, out, err = Reconcile(Number([]types.RawAccessEvent{
		write(1, addrA, 1, 5, 7),
		write(2, addrA, 1, 7, 9),
		rollback(3, addrA, 1, 7, 9),
		rollback(4, addrA, 1, 5, 7),
	}))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDegradeToProtectiveRead(t *testing.T) {
	_, out, err := Reconcile(Number([]types.RawAccessEvent{
		read(1, addrA, 1, 5),
		write(2, addrA, 1, 5, 9),
		rollback(3, addrA, 1, 5, 9),
	}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].Write)
	assert.Equal(t, uint64(5), out[0].InitialValue.Uint64())
	assert.Equal(t, uint64(5), out[0].FinalValue.Uint64())

	// writes that net out to the initial value also degrade
	_, out, err = Reconcile(Number([]types.RawAccessEvent{
		write(1, addrA, 1, 5, 9),
		write(2, addrA, 1, 9, 5),
	}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].Write)
}

func TestNetWrite(t *testing.T) {
	_, out, err := Reconcile(Number([]types.RawAccessEvent{
		read(1, addrA, 1, 5),
		write(2, addrA, 1, 5, 9),
	}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Write)
	assert.Equal(t, uint64(5), out[0].InitialValue.Uint64())
	assert.Equal(t, uint64(9), out[0].FinalValue.Uint64())
}

func TestReconcileGroupsInterleavedSlots(t *testing.T) {
	sorted, out, err := Reconcile(Number([]types.RawAccessEvent{
		write(1, addrB, 1, 0, 1),
		read(2, addrA, 2, 3),
		write(3, addrA, 1, 4, 8),
		write(4, addrB, 1, 1, 2),
		read(5, addrA, 2, 3),
	}))
	require.NoError(t, err)
	require.Len(t, sorted, 5)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, compareSlot(sorted[i-1], sorted[i]), 0)
	}
	require.Len(t, out, 3)
	assert.Equal(t, addrA, out[0].Address)
	assert.Equal(t, uint64(1), out[0].Key.Uint64())
	assert.True(t, out[0].Write)
	assert.Equal(t, uint64(2), out[1].Key.Uint64())
	assert.False(t, out[1].Write)
	assert.Equal(t, addrB, out[2].Address)
	assert.Equal(t, uint64(0), out[2].InitialValue.Uint64())
	assert.Equal(t, uint64(2), out[2].FinalValue.Uint64())
}

func TestReconcileErrors(t *testing.T) {
	cases := []struct {
		name   string
		events []types.RawAccessEvent
		want   error
	}{
		{"read mismatch", []types.RawAccessEvent{read(1, addrA, 1, 5), read(2, addrA, 1, 6)}, witerrors.ErrRReadMismatch},
		{"write mismatch", []types.RawAccessEvent{write(1, addrA, 1, 5, 6), write(2, addrA, 1, 5, 7)}, witerrors.ErrRReadMismatch},
		{"rollback underflow", []types.RawAccessEvent{read(1, addrA, 1, 5), rollback(2, addrA, 1, 5, 6)}, witerrors.ErrRRollbackUnderflow},
		{"rollback values", []types.RawAccessEvent{write(1, addrA, 1, 5, 6), rollback(2, addrA, 1, 5, 7)}, witerrors.ErrRRollbackMismatch},
		{"first touch rollback", []types.RawAccessEvent{rollback(1, addrA, 1, 5, 6)}, witerrors.ErrRRollbackOnFirstTouch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Reconcile(Number(tc.events))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.True(t, witerrors.IsTraceInconsistency(err))
		})
	}
}

func randomTrace(seed uint64, n int) []types.RawAccessEvent {
	rng := rand.New(rand.NewSource(seed))
	current := map[[2]uint64]uint64{}
	out := make([]types.RawAccessEvent, 0, n)
	for i := 0; i < n; i++ {
		addr := addrA
		if rng.Intn(2) == 1 {
			addr = addrB
		}
		key := rng.Uint64() % 16
		id := [2]uint64{key, uint64(addr[19])}
		value := current[id]
		if rng.Intn(3) == 0 {
			out = append(out, read(uint32(i), addr, key, value))
			continue
		}
		next := rng.Uint64() % 4
		out = append(out, write(uint32(i), addr, key, value, next))
		current[id] = next
	}
	return out
}

func TestParallelSortMatchesSequential(t *testing.T) {
	events := Number(randomTrace(7, 3000))
	seq := NewReconciler(Config{Workers: 1})
	par := NewReconciler(Config{Workers: 5, MinParallel: 16})

	sortedA, outA, err := seq.Reconcile(events)
	require.NoError(t, err)
	sortedB, outB, err := par.Reconcile(events)
	require.NoError(t, err)
	assert.Equal(t, sortedA, sortedB)
	assert.Equal(t, outA, outB)

	assert.Equal(t, seq.ReconcileTransient(events), par.ReconcileTransient(events))
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	events := Number(randomTrace(3, 200))
	before := append([]types.OrderedAccessEvent(nil), events...)
	_, _, err := Reconcile(events)
	require.NoError(t, err)
	assert.Equal(t, before, events)
}

func TestDeduplicatedSoundness(t *testing.T) {
	raw := randomTrace(11, 1000)
	_, out, err := Reconcile(Number(raw))
	require.NoError(t, err)

	first := map[types.SlotKey]uint64{}
	last := map[types.SlotKey]uint64{}
	for i := range raw {
		slot := raw[i].Slot()
		if _, ok := first[slot]; !ok {
			first[slot] = raw[i].ReadValue.Uint64()
		}
		if raw[i].RWFlag {
			last[slot] = raw[i].WrittenValue.Uint64()
		} else {
			last[slot] = raw[i].ReadValue.Uint64()
		}
	}
	require.Len(t, out, len(first))
	for i := 1; i < len(out); i++ {
		assert.Negative(t, out[i-1].Slot().Compare(out[i].Slot()))
	}
	for _, d := range out {
		slot := d.Slot()
		assert.Equal(t, first[slot], d.InitialValue.Uint64())
		assert.Equal(t, last[slot], d.FinalValue.Uint64())
		assert.Equal(t, first[slot] != last[slot], d.Write)
	}
}

func TestTransientOrderingAndGroups(t *testing.T) {
	a := write(1, addrA, 1, 0, 5)
	a.TxNumberInBlock = 1
	a.AuxByte = types.TransientStorageAuxByte
	b := write(2, addrA, 1, 0, 6)
	b.AuxByte = types.TransientStorageAuxByte
	c := write(3, addrA, 1, 5, 7)
	c.TxNumberInBlock = 1
	c.AuxByte = types.TransientStorageAuxByte
	d := write(4, addrA, 1, 6, 6)
	d.AuxByte = types.TransientStorageAuxByte

	sorted := ReconcileTransient(Number([]types.RawAccessEvent{a, b, c, d}))
	require.Len(t, sorted, 4)
	assert.Equal(t, []uint32{1, 3, 0, 2}, []uint32{sorted[0].InsertionIndex, sorted[1].InsertionIndex, sorted[2].InsertionIndex, sorted[3].InsertionIndex})
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}}, TransientGroups(sorted))
}

func logEntry(ts uint32, key uint64) types.RawAccessEvent {
	return types.RawAccessEvent{
		Timestamp: types.Timestamp(ts),
		AuxByte:   types.EventAuxByte,
		Address:   addrA,
		Key:       *uint256.NewInt(key),
		RWFlag:    true,
	}
}

func TestReconcileLogsCancelsRollbacks(t *testing.T) {
	undo := logEntry(2, 20)
	undo.Rollback = true
	out, err := ReconcileLogs([]types.RawAccessEvent{logEntry(3, 30), logEntry(1, 10), logEntry(2, 20), undo})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, types.Timestamp(1), out[0].Timestamp)
	assert.Equal(t, types.Timestamp(3), out[1].Timestamp)
}

func TestReconcileLogsErrors(t *testing.T) {
	orphan := logEntry(4, 40)
	orphan.Rollback = true
	_, err := ReconcileLogs([]types.RawAccessEvent{logEntry(1, 10), orphan})
	assert.True(t, errors.Is(err, witerrors.ErrRRollbackUnderflow))

	wrong := logEntry(1, 11)
	wrong.Rollback = true
	_, err = ReconcileLogs([]types.RawAccessEvent{logEntry(1, 10), wrong})
	assert.True(t, errors.Is(err, witerrors.ErrRRollbackMismatch))
}
