package witness

import (
	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/precompiles"
	"github.com/colorfulnotion/witgen/types"
	"github.com/holiman/uint256"
)

type slotID struct {
	transient bool
	tx        uint16
	address   common.Address
	key       uint64
}

type slotChange struct {
	from, to uint64
}

// Builder records a consistent trace the way an interpreter would: every
// storage access carries the slot's current value and rollbacks undo the
// latest write of their slot.
type Builder struct {
	ts    types.Timestamp
	tx    uint16
	page  types.MemoryPage
	trace Trace

	current map[slotID]uint64
	changes map[slotID][]slotChange
}

func NewBuilder() *Builder {
	return &Builder{
		ts:      1,
		page:    1,
		current: make(map[slotID]uint64),
		changes: make(map[slotID][]slotChange),
	}
}

// tick reserves two timestamps: one for reads and one for writes.
func (b *Builder) tick() types.Timestamp {
	t := b.ts
	b.ts += 2
	return t
}

// NextTx starts a new transaction; transient slots reset.
func (b *Builder) NextTx() {
	b.tx++
}

func (b *Builder) slot(transient bool, addr common.Address, key uint64) slotID {
	id := slotID{transient: transient, address: addr, key: key}
	if transient {
		id.tx = b.tx
	}
	return id
}

func (b *Builder) access(aux uint8, addr common.Address, key, read, written uint64, write, rollback bool) {
	b.trace.Events = append(b.trace.Events, types.RawAccessEvent{
		Timestamp:       b.tick(),
		TxNumberInBlock: b.tx,
		AuxByte:         aux,
		Address:         addr,
		Key:             *uint256.NewInt(key),
		ReadValue:       *uint256.NewInt(read),
		WrittenValue:    *uint256.NewInt(written),
		RWFlag:          write,
		Rollback:        rollback,
	})
}

func auxFor(transient bool) uint8 {
	if transient {
		return types.TransientStorageAuxByte
	}
	return types.StorageAuxByte
}

// Read records a read of the slot's current value.
func (b *Builder) Read(transient bool, addr common.Address, key uint64) uint64 {
	v := b.current[b.slot(transient, addr, key)]
	b.access(auxFor(transient), addr, key, v, 0, false, false)
	return v
}

// Write records a write of value over the slot's current value.
func (b *Builder) Write(transient bool, addr common.Address, key, value uint64) {
	id := b.slot(transient, addr, key)
	from := b.current[id]
	b.access(auxFor(transient), addr, key, from, value, true, false)
	b.current[id] = value
	b.changes[id] = append(b.changes[id], slotChange{from: from, to: value})
}

// Rollback undoes the latest write of the slot. It reports false when the
// slot has nothing to undo.
func (b *Builder) Rollback(transient bool, addr common.Address, key uint64) bool {
	id := b.slot(transient, addr, key)
	stack := b.changes[id]
	if len(stack) == 0 {
		return false
	}
	last := stack[len(stack)-1]
	b.changes[id] = stack[:len(stack)-1]
	b.access(auxFor(transient), addr, key, last.from, last.to, true, true)
	b.current[id] = last.from
	return true
}

// Log records an event or L1 message and returns its timestamp.
func (b *Builder) Log(aux uint8, addr common.Address, key, value uint64) types.Timestamp {
	b.access(aux, addr, key, 0, value, true, false)
	return b.trace.Events[len(b.trace.Events)-1].Timestamp
}

// RollbackLog undoes the event or L1 message recorded at ts, at most once.
func (b *Builder) RollbackLog(ts types.Timestamp) bool {
	for i := range b.trace.Events {
		if e := &b.trace.Events[i]; e.Timestamp == ts && e.Rollback {
			return false
		}
	}
	for i := range b.trace.Events {
		e := b.trace.Events[i]
		if e.Timestamp == ts && !e.Rollback && (e.AuxByte == types.EventAuxByte || e.AuxByte == types.L1MessageAuxByte) {
			e.Rollback = true
			b.trace.Events = append(b.trace.Events, e)
			return true
		}
	}
	return false
}

// Layout reserves a fresh input and output page for a precompile call.
func (b *Builder) Layout() precompiles.Layout {
	l := precompiles.Layout{
		Timestamp:  b.tick(),
		TxNumber:   b.tx,
		InputPage:  b.page,
		OutputPage: b.page + 1,
	}
	b.page += 2
	return l
}

// Call records a precompile call synthesised over a fresh layout.
func (b *Builder) Call(synth func(precompiles.Layout) precompiles.Work) precompiles.Work {
	w := synth(b.Layout())
	b.trace.Events = append(b.trace.Events, w.Request)
	b.trace.PrecompileWork = append(b.trace.PrecompileWork, w)
	return w
}

// UnroutableCall records a precompile call no circuit handles.
func (b *Builder) UnroutableCall(addr common.Address) {
	l := b.Layout()
	abi := types.PrecompileCallABI{MemoryPageToRead: l.InputPage, MemoryPageToWrite: l.OutputPage, PrecompileInterpretedData: 1}
	b.trace.Events = append(b.trace.Events, types.NewPrecompileRequest(addr, l.Timestamp, l.TxNumber, abi))
}

// Decommit records the decommitment of code into a fresh page.
func (b *Builder) Decommit(version uint8, code []uint256.Int) chunker.Work[types.DecommitQuery] {
	w := precompiles.SynthesizeDecommit(version, b.page, b.tick(), code)
	b.page++
	b.trace.Decommits = append(b.trace.Decommits, w)
	return w
}

// Trace returns the recorded trace.
func (b *Builder) Trace() *Trace {
	t := b.trace
	return &t
}
