package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witness"
)

// CircuitRecord is one line of a circuit dump.
type CircuitRecord struct {
	RunID    string           `json:"run_id"`
	Resource types.Resource   `json:"resource"`
	Index    int              `json:"index"`
	Circuit  chunker.Instance `json:"circuit"`
}

// RawCircuitRecord is a CircuitRecord read back without its concrete
// witness type.
type RawCircuitRecord struct {
	RunID    string          `json:"run_id"`
	Resource types.Resource  `json:"resource"`
	Index    int             `json:"index"`
	Circuit  json.RawMessage `json:"circuit"`
}

// JSONLWriter writes circuit records as JSON Lines (one JSON object per line).
// It is safe for concurrent use by multiple goroutines.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // only set when we own the underlying writer
	closed bool
}

// ErrWriterClosed is returned when a write is attempted after Close.
var ErrWriterClosed = errors.New("jsonl writer is closed")

// NewJSONLWriter wraps w. Close flushes but does not close w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc, buf: buf}
}

// NewJSONLWriterFile creates path and returns a writer that owns it.
func NewJSONLWriterFile(path string) (*JSONLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewJSONLWriter(f)
	w.closer = f
	return w, nil
}

// WriteRecord encodes rec followed by a newline.
func (w *JSONLWriter) WriteRecord(rec *CircuitRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return w.enc.Encode(rec)
}

// WriteResult writes every circuit of res in merge order.
func (w *JSONLWriter) WriteResult(res *witness.Result) error {
	for _, rr := range res.Resources {
		for _, c := range rr.Circuits {
			rec := &CircuitRecord{RunID: res.RunID, Resource: rr.Resource, Index: c.CircuitIndex(), Circuit: c}
			if err := w.WriteRecord(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return w.buf.Flush()
}

// Close flushes any buffered data and closes the underlying file if the
// writer owns it.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			_ = w.closer.Close()
		}
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// ReadRecords decodes every line of r.
func ReadRecords(r io.Reader) ([]RawCircuitRecord, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	var out []RawCircuitRecord
	for {
		var rec RawCircuitRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
