package types

import (
	"github.com/colorfulnotion/witgen/common"
	"github.com/holiman/uint256"
)

// Formal addresses of the precompiles routed by the demultiplexer.
var (
	EcrecoverFormalAddress       = common.HexToAddress("0x0000000000000000000000000000000000000001")
	Sha256FormalAddress          = common.HexToAddress("0x0000000000000000000000000000000000000002")
	ModexpFormalAddress          = common.HexToAddress("0x0000000000000000000000000000000000000005")
	EcaddFormalAddress           = common.HexToAddress("0x0000000000000000000000000000000000000006")
	EcmulFormalAddress           = common.HexToAddress("0x0000000000000000000000000000000000000007")
	EcpairingFormalAddress       = common.HexToAddress("0x0000000000000000000000000000000000000008")
	Secp256r1VerifyFormalAddress = common.HexToAddress("0x0000000000000000000000000000000000000100")
	Keccak256FormalAddress       = common.HexToAddress("0x0000000000000000000000000000000000008010")
)

// PrecompileCallABI is the call descriptor packed into the key of a
// precompile log event. Limbs are little endian: limb 0 holds the input
// offset and length, limb 1 the output offset and length, limb 2 the read
// and write pages and limb 3 the interpreted data (round count).
type PrecompileCallABI struct {
	InputMemoryOffset         uint32     `json:"input_memory_offset"`
	InputMemoryLength         uint32     `json:"input_memory_length"`
	OutputMemoryOffset        uint32     `json:"output_memory_offset"`
	OutputMemoryLength        uint32     `json:"output_memory_length"`
	MemoryPageToRead          MemoryPage `json:"memory_page_to_read"`
	MemoryPageToWrite         MemoryPage `json:"memory_page_to_write"`
	PrecompileInterpretedData uint64     `json:"precompile_interpreted_data"`
}

func PrecompileCallABIFromU256(v *uint256.Int) PrecompileCallABI {
	return PrecompileCallABI{
		InputMemoryOffset:         uint32(v[0]),
		InputMemoryLength:         uint32(v[0] >> 32),
		OutputMemoryOffset:        uint32(v[1]),
		OutputMemoryLength:        uint32(v[1] >> 32),
		MemoryPageToRead:          MemoryPage(v[2]),
		MemoryPageToWrite:         MemoryPage(v[2] >> 32),
		PrecompileInterpretedData: v[3],
	}
}

func (a PrecompileCallABI) ToU256() *uint256.Int {
	var v uint256.Int
	v[0] = uint64(a.InputMemoryOffset) | uint64(a.InputMemoryLength)<<32
	v[1] = uint64(a.OutputMemoryOffset) | uint64(a.OutputMemoryLength)<<32
	v[2] = uint64(a.MemoryPageToRead) | uint64(a.MemoryPageToWrite)<<32
	v[3] = a.PrecompileInterpretedData
	return &v
}

// PrecompileABI decodes the call descriptor of a precompile event.
func (e *RawAccessEvent) PrecompileABI() PrecompileCallABI {
	return PrecompileCallABIFromU256(&e.Key)
}

// NewPrecompileRequest builds the log event an interpreter emits for a
// precompile call at ts.
func NewPrecompileRequest(address common.Address, ts Timestamp, txNumber uint16, abi PrecompileCallABI) RawAccessEvent {
	return RawAccessEvent{
		Timestamp:       ts,
		TxNumberInBlock: txNumber,
		AuxByte:         PrecompileAuxByte,
		Address:         address,
		Key:             *abi.ToU256(),
		RWFlag:          false,
		IsService:       true,
	}
}
