package types

import (
	"fmt"

	"github.com/colorfulnotion/witgen/common"
	"github.com/holiman/uint256"
)

type Timestamp uint32

// Aux bytes discriminating the channel of a log event.
const (
	StorageAuxByte          uint8 = 0
	EventAuxByte            uint8 = 1
	L1MessageAuxByte        uint8 = 2
	PrecompileAuxByte       uint8 = 3
	TransientStorageAuxByte uint8 = 4
)

type Channel uint8

const (
	ChannelUnknown Channel = iota
	ChannelStorage
	ChannelTransientStorage
	ChannelEvent
	ChannelL1Message
	ChannelPrecompile
)

func (c Channel) String() string {
	switch c {
	case ChannelStorage:
		return "storage"
	case ChannelTransientStorage:
		return "transient_storage"
	case ChannelEvent:
		return "event"
	case ChannelL1Message:
		return "l1_message"
	case ChannelPrecompile:
		return "precompile"
	default:
		return "unknown"
	}
}

// RawAccessEvent is one VM-level log operation as captured by the interpreter.
type RawAccessEvent struct {
	Timestamp       Timestamp      `json:"timestamp"`
	TxNumberInBlock uint16         `json:"tx_number_in_block"`
	AuxByte         uint8          `json:"aux_byte"`
	ShardID         uint8          `json:"shard_id"`
	Address         common.Address `json:"address"`
	Key             uint256.Int    `json:"key"`
	ReadValue       uint256.Int    `json:"read_value"`
	WrittenValue    uint256.Int    `json:"written_value"`
	RWFlag          bool           `json:"rw_flag"`
	Rollback        bool           `json:"rollback"`
	IsService       bool           `json:"is_service"`
}

func (e *RawAccessEvent) Channel() Channel {
	switch e.AuxByte {
	case StorageAuxByte:
		return ChannelStorage
	case TransientStorageAuxByte:
		return ChannelTransientStorage
	case EventAuxByte:
		return ChannelEvent
	case L1MessageAuxByte:
		return ChannelL1Message
	case PrecompileAuxByte:
		return ChannelPrecompile
	default:
		return ChannelUnknown
	}
}

func (e *RawAccessEvent) Slot() SlotKey {
	return SlotKey{ShardID: e.ShardID, Address: e.Address, Key: e.Key}
}

func (e *RawAccessEvent) String() string {
	kind := "R"
	if e.RWFlag {
		kind = "W"
	}
	if e.Rollback {
		kind += "!"
	}
	return fmt.Sprintf("%s ts=%d tx=%d %s/%s key=%s %s->%s", kind, e.Timestamp, e.TxNumberInBlock, e.Channel(), e.Address.Hex(), e.Key.Hex(), e.ReadValue.Hex(), e.WrittenValue.Hex())
}

// OrderedAccessEvent pairs an event with its capture position.
type OrderedAccessEvent struct {
	Raw            RawAccessEvent `json:"raw"`
	InsertionIndex uint32         `json:"insertion_index"`
}

// SlotKey identifies a slot group.
type SlotKey struct {
	ShardID uint8          `json:"shard_id"`
	Address common.Address `json:"address"`
	Key     uint256.Int    `json:"key"`
}

// Compare orders slots by shard, address then key.
func (s SlotKey) Compare(o SlotKey) int {
	switch {
	case s.ShardID < o.ShardID:
		return -1
	case s.ShardID > o.ShardID:
		return 1
	}
	if c := s.Address.Compare(o.Address); c != 0 {
		return c
	}
	return s.Key.Cmp(&o.Key)
}

// DeduplicatedAccessEvent is the net external effect of one slot group:
// a protective read (Write false) or a net write.
type DeduplicatedAccessEvent struct {
	ShardID      uint8          `json:"shard_id"`
	Address      common.Address `json:"address"`
	Key          uint256.Int    `json:"key"`
	InitialValue uint256.Int    `json:"initial_value"`
	FinalValue   uint256.Int    `json:"final_value"`
	Write        bool           `json:"write"`
}

func (d *DeduplicatedAccessEvent) Slot() SlotKey {
	return SlotKey{ShardID: d.ShardID, Address: d.Address, Key: d.Key}
}
