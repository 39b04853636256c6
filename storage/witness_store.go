package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/colorfulnotion/witgen/common"
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/queue"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witness"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	runPrefix        = "r/"
	circuitPrefix    = "c/"
	commitmentPrefix = "q/"

	DefaultCacheSize = 1024
)

var ErrRunExists = errors.New("run already stored")

// Commitment is the public record of one resource queue: the request queue
// state, the memory queue state and the number of circuits.
type Commitment struct {
	Requests queue.State
	Memory   queue.State
	Circuits uint32
}

// rlpCommitment is the wire form of Commitment.
type rlpCommitment struct {
	RequestsHead   common.Hash
	RequestsTail   common.Hash
	RequestsLength uint32
	MemoryHead     common.Hash
	MemoryTail     common.Hash
	MemoryLength   uint32
	Circuits       uint32
}

func (c *Commitment) encode() ([]byte, error) {
	return rlp.EncodeToBytes(&rlpCommitment{
		RequestsHead:   c.Requests.Head,
		RequestsTail:   c.Requests.Tail,
		RequestsLength: c.Requests.Length,
		MemoryHead:     c.Memory.Head,
		MemoryTail:     c.Memory.Tail,
		MemoryLength:   c.Memory.Length,
		Circuits:       c.Circuits,
	})
}

func decodeCommitment(b []byte) (*Commitment, error) {
	var w rlpCommitment
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return nil, err
	}
	return &Commitment{
		Requests: queue.State{Head: w.RequestsHead, Tail: w.RequestsTail, Length: w.RequestsLength},
		Memory:   queue.State{Head: w.MemoryHead, Tail: w.MemoryTail, Length: w.MemoryLength},
		Circuits: w.Circuits,
	}, nil
}

// RunRecord summarises a stored run.
type RunRecord struct {
	RunID        string         `json:"run_id"`
	Memory       queue.State    `json:"memory"`
	Deduplicated int            `json:"deduplicated"`
	Dropped      int            `json:"dropped"`
	DemuxInput   queue.State    `json:"demux_input"`
	Circuits     map[string]int `json:"circuits"`
}

// WitnessStore keeps circuit witnesses and queue commitments per run.
// Circuit payloads are JSON; commitments are RLP.
type WitnessStore struct {
	kv    *KV
	cache *lru.Cache[string, []byte]
	mu    sync.Mutex
}

// NewWitnessStore opens a store at path, in memory when path is empty.
func NewWitnessStore(path string, cacheSize int) (*WitnessStore, error) {
	return openWitnessStore(path, false, cacheSize)
}

// OpenWitnessStoreReadOnly opens an existing store for inspection.
func OpenWitnessStoreReadOnly(path string) (*WitnessStore, error) {
	return openWitnessStore(path, true, DefaultCacheSize)
}

func openWitnessStore(path string, readOnly bool, cacheSize int) (*WitnessStore, error) {
	kv, err := OpenKV(path, readOnly)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &WitnessStore{kv: kv, cache: cache}, nil
}

func (s *WitnessStore) Close() error {
	return s.kv.Close()
}

func circuitKey(runID string, r types.Resource, index int) []byte {
	k := []byte(circuitPrefix + runID + "/" + r.String() + "/")
	return binary.BigEndian.AppendUint32(k, uint32(index))
}

func commitmentKey(runID string, r types.Resource) []byte {
	return []byte(commitmentPrefix + runID + "/" + r.String())
}

// PutRun stores every circuit and commitment of res in one batch. Runs are
// immutable once stored.
func (s *WitnessStore) PutRun(res *witness.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.kv.Has([]byte(runPrefix + res.RunID))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("PutRun %s: %w", res.RunID, ErrRunExists)
	}

	record := RunRecord{
		RunID:        res.RunID,
		Memory:       res.Memory,
		Deduplicated: res.Deduplicated,
		Dropped:      res.Dropped,
		Circuits:     make(map[string]int),
	}
	if res.Demux != nil {
		record.DemuxInput = res.Demux.Input
	}
	var batch Batch
	for _, rr := range res.Resources {
		record.Circuits[rr.Resource.String()] = len(rr.Circuits)
		for _, c := range rr.Circuits {
			payload, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("PutRun %s: circuit %s/%d: %w", res.RunID, rr.Resource, c.CircuitIndex(), err)
			}
			batch.Put(circuitKey(res.RunID, rr.Resource, c.CircuitIndex()), payload)
		}
		commitment := Commitment{Requests: rr.Queue, Memory: rr.Memory, Circuits: uint32(len(rr.Circuits))}
		enc, err := commitment.encode()
		if err != nil {
			return fmt.Errorf("PutRun %s: commitment %s: %w", res.RunID, rr.Resource, err)
		}
		batch.Put(commitmentKey(res.RunID, rr.Resource), enc)
	}
	rec, err := json.Marshal(record)
	if err != nil {
		return err
	}
	batch.Put([]byte(runPrefix+res.RunID), rec)
	if err := s.kv.Write(&batch); err != nil {
		return fmt.Errorf("PutRun %s: %w", res.RunID, err)
	}
	log.Debug(log.StorageMonitoring, "PutRun", "run", res.RunID, "keys", batch.Len())
	return nil
}

// GetRun returns the record of runID.
func (s *WitnessStore) GetRun(runID string) (*RunRecord, bool, error) {
	data, ok, err := s.kv.Get([]byte(runPrefix + runID))
	if err != nil || !ok {
		return nil, ok, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("GetRun %s: %w", runID, err)
	}
	return &rec, true, nil
}

// Runs lists the stored run ids in key order.
func (s *WitnessStore) Runs() ([]string, error) {
	var out []string
	err := s.kv.Iterate([]byte(runPrefix), func(k, _ []byte) error {
		out = append(out, strings.TrimPrefix(string(k), runPrefix))
		return nil
	})
	return out, err
}

// GetCircuit returns the JSON payload of one circuit.
func (s *WitnessStore) GetCircuit(runID string, r types.Resource, index int) (json.RawMessage, bool, error) {
	key := circuitKey(runID, r, index)
	if v, ok := s.cache.Get(string(key)); ok {
		return v, true, nil
	}
	data, ok, err := s.kv.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.cache.Add(string(key), data)
	return data, true, nil
}

// Circuits returns the payloads of every circuit of r in index order.
func (s *WitnessStore) Circuits(runID string, r types.Resource) ([]json.RawMessage, error) {
	prefix := []byte(circuitPrefix + runID + "/" + r.String() + "/")
	var out []json.RawMessage
	err := s.kv.Iterate(prefix, func(_, v []byte) error {
		out = append(out, bytes.Clone(v))
		return nil
	})
	return out, err
}

// GetCommitment returns the commitment of r in runID.
func (s *WitnessStore) GetCommitment(runID string, r types.Resource) (*Commitment, bool, error) {
	data, ok, err := s.kv.Get(commitmentKey(runID, r))
	if err != nil || !ok {
		return nil, ok, err
	}
	c, err := decodeCommitment(data)
	if err != nil {
		return nil, false, fmt.Errorf("GetCommitment %s/%s: %w", runID, r, err)
	}
	return c, true, nil
}
