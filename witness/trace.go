package witness

import (
	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/precompiles"
	"github.com/colorfulnotion/witgen/types"
)

// Trace is everything the interpreter hands over for one block: the log
// stream in capture order, the memory traffic of every precompile call in
// call order, and the code decommitment requests with the words they wrote.
type Trace struct {
	Events         []types.RawAccessEvent              `json:"events"`
	PrecompileWork []precompiles.Work                  `json:"precompile_work"`
	Decommits      []chunker.Work[types.DecommitQuery] `json:"decommits"`
}

// precompileWork groups the call work by resource. Work for calls the
// demultiplexer drops is dropped the same way.
func (t *Trace) precompileWork() map[types.Resource][]precompiles.Work {
	out := make(map[types.Resource][]precompiles.Work)
	for i := range t.PrecompileWork {
		w := t.PrecompileWork[i]
		if r, ok := types.PrecompileResource(&w.Request); ok {
			out[r] = append(out[r], w)
		}
	}
	return out
}
