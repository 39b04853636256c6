package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

type MemoryPage uint32

// MemoryQuery is one 32-byte memory access performed by a precompile or the
// code decommitter.
type MemoryQuery struct {
	Timestamp Timestamp   `json:"timestamp"`
	Page      MemoryPage  `json:"page"`
	Index     uint32      `json:"index"`
	RWFlag    bool        `json:"rw_flag"`
	Value     uint256.Int `json:"value"`
	IsPointer bool        `json:"is_pointer"`
}

func (m *MemoryQuery) String() string {
	kind := "read"
	if m.RWFlag {
		kind = "write"
	}
	return fmt.Sprintf("%s ts=%d page=%d idx=%d value=%s", kind, m.Timestamp, m.Page, m.Index, m.Value.Hex())
}

// NewRead returns a read query at page/index.
func NewRead(ts Timestamp, page MemoryPage, index uint32, value *uint256.Int) MemoryQuery {
	return MemoryQuery{Timestamp: ts, Page: page, Index: index, Value: *value}
}

// NewWrite returns a write query at page/index.
func NewWrite(ts Timestamp, page MemoryPage, index uint32, value *uint256.Int) MemoryQuery {
	return MemoryQuery{Timestamp: ts, Page: page, Index: index, RWFlag: true, Value: *value}
}
